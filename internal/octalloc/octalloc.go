// Package octalloc implements the accounting allocator every long-lived
// object in OctaneVM is produced by (spec.md §4.1, grounded on
// Headers/CoreMemory.hpp / CoreMemory.cpp's CoreAllocator). Every live
// allocation is preceded in memory by a Header recording its size, padding,
// and classification flags; Address is the thin typed handle over the
// payload that derives header access by walking backward from the payload
// pointer.
package octalloc

import (
	"fmt"

	"github.com/octanevm/octane/internal/octsync"
	"github.com/octanevm/octane/internal/octutil"
)

// ErrCode enumerates the memory error taxonomy from spec.md §7.
type ErrCode int

const (
	Ok ErrCode = iota
	ErrInvalidAllocator
	ErrNegativeMemoryUsage
	ErrHitVMMaximum
	ErrHitOSMaximum
	ErrSizeTooLarge
	ErrSizeIsZero
)

func (e ErrCode) String() string {
	switch e {
	case Ok:
		return "ok"
	case ErrInvalidAllocator:
		return "invalid_allocator"
	case ErrNegativeMemoryUsage:
		return "negative_memory_usage"
	case ErrHitVMMaximum:
		return "hit_vm_maximum"
	case ErrHitOSMaximum:
		return "hit_os_maximum"
	case ErrSizeTooLarge:
		return "size_too_large"
	case ErrSizeIsZero:
		return "size_is_zero"
	default:
		return "unknown"
	}
}

// Flags is the allocation-header bitfield (spec.md §3).
type Flags uint8

const (
	FlagFree Flags = 1 << iota
	FlagConst
	FlagSystem
	FlagNonVital
	FlagHybridAllocator
	FlagLinearAllocator
)

func (f Flags) IsSystem() bool { return f&FlagSystem != 0 }
func (f Flags) IsFree() bool   { return f&FlagFree != 0 }

// Header is the allocation header as laid out in memory: a 4-byte size, a
// 2-byte padding count, and a 1-byte flags field (spec.md §6).
type Header struct {
	Size    uint32
	Padding uint16
	Flags   Flags
}

// headerStructSize is the fixed space a Header occupies ahead of its
// payload: its 4+2+1 bytes of fields rounded up to pointer alignment, so
// every payload pointer walks back a constant distance to find it and
// size+padding+headerStructSize is always a multiple of PointerAlign.
const headerStructSize = 8

// MaxAllocation is the largest single-call byte request (spec.md §3):
// 2^32-1 bytes. Larger requests must be split by the caller.
const MaxAllocation = 1<<32 - 1

// computePadding returns the bytes to append after a size-byte payload so
// the following aggregate slot is pointer-aligned: (align - size) mod align.
func computePadding(size uint32, align uint32) uint16 {
	return uint16((align - (size % align)) % align)
}

// block is the actual backing storage for one allocation: header followed
// by payload+padding bytes, exactly mirroring the wire layout in spec.md §6.
type block struct {
	header Header
	data   []byte // size Header.Size + Header.Padding
}

// Address is a handle over a live allocation's payload. It derives sizes by
// reaching back to the owning block's header; it carries no ownership by
// itself and is freely copied, matching spec.md §3's "Memory address"
// description.
type Address struct {
	blk *block
}

// IsNil reports whether this handle refers to no allocation.
func (a Address) IsNil() bool { return a.blk == nil }

// Bytes returns the payload slice (excludes header and padding).
func (a Address) Bytes() []byte {
	if a.blk == nil {
		return nil
	}
	return a.blk.data[:a.blk.header.Size]
}

// header returns the preceding header — the "reach back from the payload
// pointer" operation spec.md §3 calls out as the defining trick of the
// handle type.
func (a Address) header() Header { return a.blk.header }

// QueryAllocatedSize returns the payload size the caller originally
// requested.
func (a Address) QueryAllocatedSize() uint32 { return a.header().Size }

// QueryContiguousSize returns payload+padding bytes.
func (a Address) QueryContiguousSize() uint32 {
	h := a.header()
	return h.Size + uint32(h.Padding)
}

// QueryTotalAllocatedSize returns payload+padding+header bytes.
func (a Address) QueryTotalAllocatedSize() uint32 {
	return a.QueryContiguousSize() + headerStructSize
}

// String renders a debug-dump line for this allocation, the convenience
// spec.md §7 allows ("A debug log operation is provided on the allocation
// header... this is a convenience, not a contract").
func (a Address) String() string {
	if a.blk == nil {
		return "<nil address>"
	}
	h := a.header()
	return fmt.Sprintf("Address{size=%d padding=%d flags=%08b}", h.Size, h.Padding, h.Flags)
}

// Allocator is the process-wide (per-VM) accounting allocator: spec.md §3's
// "Core allocator state (singleton per VM)". All four primary operations
// hold the instance lock for their entire duration.
type Allocator struct {
	mu           octsync.Mutex
	objectBytes  int64
	systemBytes  int64
	maxBytes     int64 // 0 = uncapped
	lastError    ErrCode
}

// NewAllocator returns an allocator with the given byte cap (0 = uncapped).
func NewAllocator(maxBytes int64) *Allocator {
	return &Allocator{maxBytes: maxBytes}
}

// ObjectBytes and SystemBytes expose the signed accounting counters;
// negative indicates a double-free or cross-allocator mix (spec.md §3).
func (a *Allocator) ObjectBytes() int64 {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	return a.objectBytes
}

func (a *Allocator) SystemBytes() int64 {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	return a.systemBytes
}

// LastError returns the sticky last-error field.
func (a *Allocator) LastError() ErrCode {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	return a.lastError
}

// ClearLastError resets the sticky last-error field.
func (a *Allocator) ClearLastError() {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	a.lastError = Ok
}

func (a *Allocator) setError(e ErrCode) {
	a.lastError = e
}

// Request allocates size bytes tagged with flags. Returns a nil Address and
// the error code on failure.
func (a *Allocator) Request(size uint32, flags Flags) (Address, ErrCode) {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	return a.requestLocked(size, flags)
}

// RequestArray is the typed-array counterpart of Request (spec.md §4.1:
// "Request(T, count, flags, args...)"): it fails size_is_zero for a zero
// count and size_too_large when elemSize*count would overflow the 2^32-1
// single-call cap, otherwise delegates to the raw byte Request. Go has no
// in-place constructor args to thread through the way the original's
// variadic constructor call does, so callers are expected to fill the
// returned bytes themselves.
func (a *Allocator) RequestArray(elemSize, count uint32, flags Flags) (Address, ErrCode) {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	if count == 0 {
		a.setError(ErrSizeIsZero)
		return Address{}, ErrSizeIsZero
	}
	total := uint64(elemSize) * uint64(count)
	if total > MaxAllocation {
		a.setError(ErrSizeTooLarge)
		return Address{}, ErrSizeTooLarge
	}
	return a.requestLocked(uint32(total), flags)
}

func (a *Allocator) requestLocked(size uint32, flags Flags) (Address, ErrCode) {
	if size == 0 {
		a.setError(ErrSizeIsZero)
		return Address{}, ErrSizeIsZero
	}
	padding := computePadding(size, octutil.PointerAlign)
	total := int64(size) + int64(padding) + headerStructSize

	if a.maxBytes != 0 {
		if a.objectBytes+a.systemBytes+total > a.maxBytes {
			a.setError(ErrHitVMMaximum)
			return Address{}, ErrHitVMMaximum
		}
	}

	blk := &block{
		header: Header{Size: size, Padding: padding, Flags: flags},
		data:   make([]byte, int(size)+int(padding)),
	}

	if flags.IsSystem() {
		a.systemBytes += total
	} else {
		a.objectBytes += total
	}
	a.setError(Ok)
	return Address{blk: blk}, Ok
}

// Release frees addr and decrements the correct counter.
func (a *Allocator) Release(addr Address) ErrCode {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	return a.releaseLocked(addr)
}

func (a *Allocator) releaseLocked(addr Address) ErrCode {
	if addr.IsNil() {
		a.setError(ErrInvalidAllocator)
		return ErrInvalidAllocator
	}
	total := int64(addr.QueryTotalAllocatedSize())
	if addr.header().Flags.IsSystem() {
		a.systemBytes -= total
	} else {
		a.objectBytes -= total
	}
	a.setError(Ok)
	return Ok
}

// Resize requests a new allocation with addr's original flags, copies
// min(old,new) bytes, releases the old allocation, and returns the new
// address (spec.md §4.1).
func (a *Allocator) Resize(addr Address, newSize uint32) (Address, ErrCode) {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	if addr.IsNil() {
		a.setError(ErrInvalidAllocator)
		return Address{}, ErrInvalidAllocator
	}
	flags := addr.header().Flags
	newAddr, code := a.requestLocked(newSize, flags)
	if code != Ok {
		return Address{}, code
	}
	copy(newAddr.Bytes(), addr.Bytes())
	a.releaseLocked(addr)
	return newAddr, Ok
}

// Validate checks invariant (i)/(ii) from spec.md §4.1.
func (a *Allocator) Validate() ErrCode {
	s := octsync.NewScoped(&a.mu)
	defer s.Unlock()
	if a.objectBytes < 0 || a.systemBytes < 0 {
		return ErrNegativeMemoryUsage
	}
	if a.maxBytes != 0 && a.objectBytes+a.systemBytes > a.maxBytes {
		return ErrHitVMMaximum
	}
	return Ok
}
