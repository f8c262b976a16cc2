package memory

// headerOverhead models the bookkeeping cost the original split-heuristic
// reserves for a block header. Go tracks block metadata out-of-band (see
// block below) but keeps the same split threshold so fragmentation behavior
// matches the spec.
const headerOverhead = 16

// block describes one region of the heap's backing buffer. Blocks form a
// singly-linked list in memory order, exactly as the free-list heap this is
// ported from — only the "pointer" is an index into Heap.blocks rather than
// a raw address, since Go has no legal way to embed next-pointers inside an
// allocator-owned byte slice.
type block struct {
	offset int
	size   int
	free   bool
	next   int // index into Heap.blocks, -1 for end of list
}

// Heap is a single contiguous region partitioned into blocks with a
// singly-linked free list. Allocation is first-fit; freeing coalesces with
// the immediate next block and, via an O(n) forward scan from the base,
// with the immediate previous block.
type Heap struct {
	buf    []byte
	blocks []block
	head   int // index of first block (always 0 after init)

	used      int
	peak      int
	allocated int // allocation_count
}

// NewHeap creates a heap over a size-byte backing region, starting as one
// free block spanning the whole region.
func NewHeap(size int) *Heap {
	h := &Heap{
		buf:    make([]byte, size),
		blocks: make([]block, 0, 16),
	}
	h.blocks = append(h.blocks, block{offset: 0, size: size, free: true, next: -1})
	h.head = 0
	return h
}

// Alloc reserves n bytes using first-fit search, splitting the chosen block
// when it is large enough to leave a usable remainder.
func (h *Heap) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrOOM
	}
	aligned := alignUp(n, DefaultAlignment)

	idx := h.head
	for idx != -1 {
		b := &h.blocks[idx]
		if b.free && b.size >= aligned {
			if b.size >= aligned+headerOverhead+DefaultAlignment {
				h.split(idx, aligned)
			}
			b = &h.blocks[idx]
			b.free = false
			h.used += b.size
			if h.used > h.peak {
				h.peak = h.used
			}
			h.allocated++
			out := h.buf[b.offset : b.offset+n : b.offset+b.size]
			for i := range out {
				out[i] = 0
			}
			return out, nil
		}
		idx = b.next
	}
	return nil, ErrOOM
}

// split carves a used-size prefix off block idx, inserting a new free block
// for the remainder right after it in the linked order.
func (h *Heap) split(idx, usedSize int) {
	b := h.blocks[idx]
	remainder := block{
		offset: b.offset + usedSize,
		size:   b.size - usedSize,
		free:   true,
		next:   b.next,
	}
	h.blocks = append(h.blocks, remainder)
	newIdx := len(h.blocks) - 1

	h.blocks[idx].size = usedSize
	h.blocks[idx].next = newIdx
}

// blockIndexForOffset finds the block owning the given buffer offset.
func (h *Heap) blockIndexForOffset(offset int) int {
	idx := h.head
	for idx != -1 {
		if h.blocks[idx].offset == offset {
			return idx
		}
		idx = h.blocks[idx].next
	}
	return -1
}

// Free releases b back to the heap, coalescing with adjacent free blocks.
func (h *Heap) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	offset := h.offsetOf(b)
	idx := h.blockIndexForOffset(offset)
	if idx == -1 {
		return
	}

	h.used -= h.blocks[idx].size
	h.blocks[idx].free = true

	// Coalesce with the immediate next block if it is free.
	if next := h.blocks[idx].next; next != -1 && h.blocks[next].free {
		h.blocks[idx].size += h.blocks[next].size
		h.blocks[idx].next = h.blocks[next].next
	}

	// Coalesce with the immediate previous block via a forward scan from
	// the base. Quadratic under heavy free churn; acceptable because this
	// heap serves long-lived register buffers, not hot-path allocation.
	// TODO: switch to a doubly-linked block list if free churn ever shows
	// up in a profile.
	prev := -1
	scan := h.head
	for scan != -1 && scan != idx {
		prev = scan
		scan = h.blocks[scan].next
	}
	if prev != -1 && h.blocks[prev].free {
		h.blocks[prev].size += h.blocks[idx].size
		h.blocks[prev].next = h.blocks[idx].next
	}
}

// Realloc absorbs the next block in place when it is free and large enough;
// otherwise it allocates a new block, copies, and frees the old one.
func (h *Heap) Realloc(b []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrOOM
	}
	if b == nil {
		return h.Alloc(n)
	}

	offset := h.offsetOf(b)
	idx := h.blockIndexForOffset(offset)
	if idx == -1 {
		return h.Alloc(n)
	}

	aligned := alignUp(n, DefaultAlignment)
	actualOldSize := h.blocks[idx].size

	if next := h.blocks[idx].next; next != -1 && h.blocks[next].free &&
		actualOldSize+h.blocks[next].size >= aligned {
		combined := actualOldSize + h.blocks[next].size
		h.blocks[idx].size = combined
		h.blocks[idx].next = h.blocks[next].next
		if combined >= aligned+headerOverhead+DefaultAlignment {
			h.split(idx, aligned)
		}
		// used adjusts by the genuinely added size, not the whole merged
		// block. The original C source mis-derives this as
		// (combined - actual_old_size_before_merge) against the
		// post-split block size, double counting the split remainder;
		// that accounting bug is intentionally not reproduced here so
		// that used/peak bookkeeping remains exact across alloc/free/
		// realloc cycles (see DESIGN.md).
		h.used += h.blocks[idx].size - actualOldSize
		if h.used > h.peak {
			h.peak = h.used
		}
		return h.buf[offset : offset+n : offset+h.blocks[idx].size], nil
	}

	nb, err := h.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	h.Free(b)
	return nb, nil
}

func (h *Heap) offsetOf(b []byte) int {
	base := &h.buf[0]
	target := &b[0]
	// Pointer-difference via conversion to uintptr is the standard Go idiom
	// for relating a sub-slice to its backing array's base; both slices
	// are known to share the same backing array here.
	return int(ptrDiff(base, target))
}

// Used returns currently allocated bytes.
func (h *Heap) Used() int { return h.used }

// Peak returns the high-water mark of Used across the heap's lifetime.
func (h *Heap) Peak() int { return h.peak }

// AllocationCount returns the number of successful Alloc calls.
func (h *Heap) AllocationCount() int { return h.allocated }
