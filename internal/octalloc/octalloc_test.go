package octalloc

import "testing"

func TestRequestZeroSize(t *testing.T) {
	a := NewAllocator(0)
	addr, code := a.Request(0, 0)
	if code != ErrSizeIsZero || !addr.IsNil() {
		t.Fatalf("Request(0) = %v, %v; want nil, ErrSizeIsZero", addr, code)
	}
}

func TestRequestArrayTooLarge(t *testing.T) {
	a := NewAllocator(0)
	_, code := a.RequestArray(2, 1<<31, 0) // 2^32 bytes, one past MaxAllocation
	if code != ErrSizeTooLarge {
		t.Fatalf("expected ErrSizeTooLarge, got %v", code)
	}
}

func TestPaddingInvariant(t *testing.T) {
	a := NewAllocator(0)
	for _, size := range []uint32{1, 7, 8, 9, 100, 4095} {
		addr, code := a.Request(size, 0)
		if code != Ok {
			t.Fatalf("Request(%d) failed: %v", size, code)
		}
		h := addr.header()
		if h.Size == 0 {
			t.Fatalf("size must be > 0")
		}
		if uint32(h.Padding) >= 8 {
			t.Fatalf("padding %d must be < pointer alignment (8)", h.Padding)
		}
		total := h.Size + uint32(h.Padding) + headerStructSize
		if total%8 != 0 {
			t.Errorf("size=%d padding=%d header=%d total=%d not 8-aligned", h.Size, h.Padding, headerStructSize, total)
		}
		a.Release(addr)
	}
}

func TestAccountingRoundTrip(t *testing.T) {
	a := NewAllocator(0)
	addr, code := a.Request(100, 0)
	if code != Ok {
		t.Fatalf("Request failed: %v", code)
	}
	if a.ObjectBytes() == 0 {
		t.Fatalf("expected object_bytes to have increased")
	}
	a.Release(addr)
	if a.ObjectBytes() != 0 {
		t.Fatalf("expected object_bytes to return to 0 after release, got %d", a.ObjectBytes())
	}
}

func TestHitVMMaximum(t *testing.T) {
	a := NewAllocator(16) // tiny cap
	_, code := a.Request(100, 0)
	if code != ErrHitVMMaximum {
		t.Fatalf("expected ErrHitVMMaximum, got %v", code)
	}
}

func TestResize(t *testing.T) {
	a := NewAllocator(0)
	addr, code := a.Request(100, 0)
	if code != Ok {
		t.Fatalf("Request failed: %v", code)
	}
	copy(addr.Bytes(), []byte("hello world this is a test"))

	before := addr.QueryAllocatedSize()
	_ = before
	newAddr, code := a.Resize(addr, 200)
	if code != Ok {
		t.Fatalf("Resize failed: %v", code)
	}
	if newAddr.QueryAllocatedSize() != 200 {
		t.Fatalf("expected resized allocation of 200, got %d", newAddr.QueryAllocatedSize())
	}
	if string(newAddr.Bytes()[:11]) != "hello world" {
		t.Fatalf("resize must preserve min(old,new) bytes, got %q", newAddr.Bytes()[:11])
	}
	a.Release(newAddr)
	if a.ObjectBytes() != 0 {
		t.Fatalf("expected object_bytes back to 0, got %d", a.ObjectBytes())
	}
}

func TestQuerySizes(t *testing.T) {
	a := NewAllocator(0)
	addr, _ := a.Request(10, 0)
	defer a.Release(addr)
	if addr.QueryAllocatedSize() != 10 {
		t.Errorf("QueryAllocatedSize = %d, want 10", addr.QueryAllocatedSize())
	}
	if addr.QueryContiguousSize() != 10+uint32(addr.header().Padding) {
		t.Errorf("QueryContiguousSize mismatch")
	}
	if addr.QueryTotalAllocatedSize() != addr.QueryContiguousSize()+headerStructSize {
		t.Errorf("QueryTotalAllocatedSize mismatch")
	}
}

func TestHybridAllocatorDelegates(t *testing.T) {
	core := NewAllocator(0)
	h := NewHybridAllocator(core)
	addr, code := h.Request(32, 0)
	if code != Ok {
		t.Fatalf("hybrid Request failed: %v", code)
	}
	if addr.header().Flags&FlagHybridAllocator == 0 {
		t.Fatalf("expected FlagHybridAllocator set")
	}
	if core.ObjectBytes() == 0 {
		t.Fatalf("expected the delegate allocator's counters to move")
	}
	h.Release(addr)
	if core.ObjectBytes() != 0 {
		t.Fatalf("expected core object_bytes back to 0 after hybrid release")
	}
}
