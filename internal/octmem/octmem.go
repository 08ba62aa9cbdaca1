// Package octmem implements per-virtual-processor thread memory: one
// contiguous buffer split into a byte stack and a frame-chained local
// arena (spec.md §4.2, grounded on Headers/ThreadMemory.hpp /
// ThreadMemory.cpp). There is exactly one owner per instance, so unlike
// octalloc and octsym this package takes no internal lock.
package octmem

import "encoding/binary"

// MergeFailure is the sentinel StackMerge returns when the source pop would
// underflow; the destination stack is left untouched in that case.
const MergeFailure = -1 << 31 // INT_MIN

// frameHeaderSize is the fixed size of a Frame record written into the
// local arena.
const frameHeaderSize = 2 + 2 + 2 // Offset, Usage, previous-frame offset (all uint16)

const noFrame = ^uint16(0)

// frame mirrors Headers/ThreadMemory.hpp's Frame: Offset is this frame's
// position in the arena, Usage is bytes requested since it opened,
// Previous is the arena offset of the enclosing frame (noFrame if none) —
// an offset rather than a raw pointer so the arena can be resized in a
// future revision without invalidating the chain (spec.md §9).
type frame struct {
	Offset   uint16
	Usage    uint16
	Previous uint16
}

// PopOpt is the optional pop result: Valid is false on underflow, in which
// case Value carries the (non-negative) number of bytes that would have
// underflowed rather than the popped value.
type PopOpt struct {
	Value uint64
	Valid bool
}

// ThreadMemory is one virtual processor's stack + local arena.
type ThreadMemory struct {
	buf []byte

	stackBytes int
	stackIdx   int

	localBytes    int
	localIdx      int
	currentFrame  uint16 // offset into the local region; meaningful only while hasFrame
	hasFrame      bool
}

// New allocates a thread memory with the given stack and local region
// sizes.
func New(stackBytes, localBytes int) *ThreadMemory {
	return &ThreadMemory{
		buf:        make([]byte, stackBytes+localBytes),
		stackBytes: stackBytes,
		localBytes: localBytes,
	}
}

func (t *ThreadMemory) stackRegion() []byte { return t.buf[:t.stackBytes] }
func (t *ThreadMemory) localRegion() []byte { return t.buf[t.stackBytes:] }

// --- byte stack ---

// push writes w bytes from value (little-endian) onto the stack and
// returns the remaining free space, or a negative amount on overflow
// (in which case nothing is written) — spec.md §4.2.
func (t *ThreadMemory) push(value uint64, w int) int {
	remaining := t.stackBytes - (t.stackIdx + w)
	if remaining < 0 {
		return remaining
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	copy(t.stackRegion()[t.stackIdx:t.stackIdx+w], buf[:w])
	t.stackIdx += w
	return remaining
}

func (t *ThreadMemory) Push8(v uint8) int   { return t.push(uint64(v), 1) }
func (t *ThreadMemory) Push16(v uint16) int { return t.push(uint64(v), 2) }
func (t *ThreadMemory) Push32(v uint32) int { return t.push(uint64(v), 4) }
func (t *ThreadMemory) Push64(v uint64) int { return t.push(v, 8) }

// PushMem copies src onto the stack, identical overflow semantics to the
// fixed-width pushes above.
func (t *ThreadMemory) PushMem(src []byte) int {
	remaining := t.stackBytes - (t.stackIdx + len(src))
	if remaining < 0 {
		return remaining
	}
	copy(t.stackRegion()[t.stackIdx:t.stackIdx+len(src)], src)
	t.stackIdx += len(src)
	return remaining
}

func (t *ThreadMemory) pop(w int) PopOpt {
	if t.stackIdx-w < 0 {
		return PopOpt{Value: uint64(w - t.stackIdx), Valid: false}
	}
	t.stackIdx -= w
	buf := make([]byte, 8)
	copy(buf[:w], t.stackRegion()[t.stackIdx:t.stackIdx+w])
	return PopOpt{Value: binary.LittleEndian.Uint64(buf), Valid: true}
}

func (t *ThreadMemory) Pop8() PopOpt  { return t.pop(1) }
func (t *ThreadMemory) Pop16() PopOpt { return t.pop(2) }
func (t *ThreadMemory) Pop32() PopOpt { return t.pop(4) }
func (t *ThreadMemory) Pop64() PopOpt { return t.pop(8) }

// PopMem copies size bytes out of the stack into dst (len(dst) must equal
// size); Value is 0 on success per spec.md §4.2.
func (t *ThreadMemory) PopMem(dst []byte) PopOpt {
	size := len(dst)
	if t.stackIdx-size < 0 {
		return PopOpt{Value: uint64(size - t.stackIdx), Valid: false}
	}
	t.stackIdx -= size
	copy(dst, t.stackRegion()[t.stackIdx:t.stackIdx+size])
	return PopOpt{Value: 0, Valid: true}
}

// StackMerge transfers size bytes from src's stack onto t's stack
// atomically with respect to each stack: if src's pop would underflow,
// MergeFailure is returned and neither side is modified.
func (t *ThreadMemory) StackMerge(src *ThreadMemory, size int) int {
	if src.stackIdx-size < 0 {
		return MergeFailure
	}
	if t.stackBytes-(t.stackIdx+size) < 0 {
		return MergeFailure
	}
	chunk := make([]byte, size)
	copy(chunk, src.stackRegion()[src.stackIdx-size:src.stackIdx])
	src.stackIdx -= size
	copy(t.stackRegion()[t.stackIdx:t.stackIdx+size], chunk)
	t.stackIdx += size
	return t.stackBytes - t.stackIdx
}

// ResetStack resets the stack independently of the local arena.
func (t *ThreadMemory) ResetStack() {
	t.stackIdx = 0
}

// StackIdx exposes the current stack top index (tests / introspection).
func (t *ThreadMemory) StackIdx() int { return t.stackIdx }

// StackAt addresses the stack region as flat global storage rather than a
// push/pop discipline: offset is an absolute byte position from the base of
// the stack region, independent of stack_idx. Out-of-bounds returns nil.
// This backs the gload/gsave opcode family, the "global" counterpart to
// pload/psave's frame-relative local addressing via GetAt.
func (t *ThreadMemory) StackAt(offset, size int) []byte {
	if offset < 0 || size < 0 || offset+size > t.stackBytes {
		return nil
	}
	return t.stackRegion()[offset : offset+size]
}
