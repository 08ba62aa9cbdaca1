package octalloc

// HybridAllocator is the pool/slab allocator spec.md §1 explicitly puts out
// of scope ("a pool/slab allocator mentioned in the source but stubbed to
// delegate to the core allocator"), grounded on Headers/HybridAllocator.hpp
// which does exactly this in the original: every call forwards straight to
// CoreAllocator. It exists only so FlagHybridAllocator has a real, if
// minimal, producer.
type HybridAllocator struct {
	core *Allocator
}

// NewHybridAllocator wraps core; every operation below just forwards to it
// with FlagHybridAllocator set.
func NewHybridAllocator(core *Allocator) *HybridAllocator {
	return &HybridAllocator{core: core}
}

func (h *HybridAllocator) Request(size uint32, flags Flags) (Address, ErrCode) {
	return h.core.Request(size, flags|FlagHybridAllocator)
}

func (h *HybridAllocator) Release(addr Address) ErrCode {
	return h.core.Release(addr)
}

func (h *HybridAllocator) Resize(addr Address, newSize uint32) (Address, ErrCode) {
	return h.core.Resize(addr, newSize)
}
