package octmem

// writeFrame serializes a frame header at the given offset into the local
// region.
func (t *ThreadMemory) writeFrame(offset uint16, f frame) {
	region := t.localRegion()
	region[offset] = byte(f.Offset)
	region[offset+1] = byte(f.Offset >> 8)
	region[offset+2] = byte(f.Usage)
	region[offset+3] = byte(f.Usage >> 8)
	region[offset+4] = byte(f.Previous)
	region[offset+5] = byte(f.Previous >> 8)
}

func (t *ThreadMemory) readFrame(offset uint16) frame {
	region := t.localRegion()
	return frame{
		Offset:   uint16(region[offset]) | uint16(region[offset+1])<<8,
		Usage:    uint16(region[offset+2]) | uint16(region[offset+3])<<8,
		Previous: uint16(region[offset+4]) | uint16(region[offset+5])<<8,
	}
}

// GetLocalRemaining returns the unused bytes left in the local region.
func (t *ThreadMemory) GetLocalRemaining() int {
	return t.localBytes - t.localIdx
}

// NewFrame opens a new call frame at the current arena top, chaining it to
// whatever frame was current. Returns false (and makes no change) if
// sizeof(frame header) bytes aren't available (spec.md §4.2).
func (t *ThreadMemory) NewFrame() bool {
	if t.GetLocalRemaining()-frameHeaderSize < 0 {
		return false
	}
	offset := uint16(t.localIdx)
	prev := noFrame
	if t.hasFrame {
		prev = t.currentFrame
	}
	t.writeFrame(offset, frame{Offset: offset, Usage: 0, Previous: prev})
	t.localIdx += frameHeaderSize
	t.currentFrame = offset
	t.hasFrame = true
	return true
}

// DropFrame resets local_idx to the current frame's offset and pops the
// frame chain, reporting whether a previous frame remains current.
func (t *ThreadMemory) DropFrame() bool {
	if !t.hasFrame {
		return false
	}
	cur := t.readFrame(t.currentFrame)
	t.localIdx = int(cur.Offset)
	if cur.Previous == noFrame {
		t.hasFrame = false
		t.currentFrame = 0
		return false
	}
	t.currentFrame = cur.Previous
	return true
}

// ResetFrame rewinds the current frame to empty without dropping it:
// local_idx = offset + sizeof(header), usage = 0.
func (t *ThreadMemory) ResetFrame() bool {
	if !t.hasFrame {
		return false
	}
	cur := t.readFrame(t.currentFrame)
	cur.Usage = 0
	t.writeFrame(t.currentFrame, cur)
	t.localIdx = int(cur.Offset) + frameHeaderSize
	return true
}

// RequestBytes returns a slice of size bytes from the arena (advancing
// local_idx and the current frame's usage) or nil if there's no current
// frame or the arena would overflow.
func (t *ThreadMemory) RequestBytes(size int) []byte {
	if !t.hasFrame {
		return nil
	}
	if t.GetLocalRemaining()-size < 0 {
		return nil
	}
	region := t.localRegion()
	out := region[t.localIdx : t.localIdx+size]
	t.localIdx += size

	cur := t.readFrame(t.currentFrame)
	cur.Usage += uint16(size)
	t.writeFrame(t.currentFrame, cur)
	return out
}

// DropBytes returns the remaining current.usage - size if non-negative and
// applies the drop; otherwise returns a negative value and applies nothing.
func (t *ThreadMemory) DropBytes(size int) int {
	if !t.hasFrame {
		return -1
	}
	cur := t.readFrame(t.currentFrame)
	remaining := int(cur.Usage) - size
	if remaining < 0 {
		return remaining
	}
	cur.Usage = uint16(remaining)
	t.writeFrame(t.currentFrame, cur)
	t.localIdx -= size
	return remaining
}

// GetAt translates a frame-relative offset within the current frame's used
// bytes to an arena slice of length size; out-of-bounds or no current
// frame returns nil.
func (t *ThreadMemory) GetAt(offset, size int) []byte {
	if !t.hasFrame {
		return nil
	}
	cur := t.readFrame(t.currentFrame)
	dataStart := int(cur.Offset) + frameHeaderSize
	if offset < 0 || offset+size > int(cur.Usage) {
		return nil
	}
	region := t.localRegion()
	start := dataStart + offset
	return region[start : start+size]
}

// ResetLocal resets the local arena independently of the stack.
func (t *ThreadMemory) ResetLocal() {
	t.localIdx = 0
	t.hasFrame = false
	t.currentFrame = 0
}
