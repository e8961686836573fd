package malloc

import "sync"

// recyclerBinSizes are the fixed size classes the Recycler bins chunks
// into, taken directly from the C++ original's class_bytes table:
// 64 KiB, 256 KiB, 1 MiB, 4 MiB, 16 MiB, 64 MiB.
var recyclerBinSizes = [...]int{
	64 * 1024,
	256 * 1024,
	1 * 1024 * 1024,
	4 * 1024 * 1024,
	16 * 1024 * 1024,
	64 * 1024 * 1024,
}

func recyclerBinIndex(minBytes int) int {
	for i, sz := range recyclerBinSizes {
		if sz >= minBytes {
			return i
		}
	}
	return len(recyclerBinSizes) - 1
}

// Recycler (the "Arena Group" / slab recycler) is a synchronized cache of
// freed chunks binned by size class, shared across arenas that attach to
// it. It reduces chunk-source churn for workloads that repeatedly create
// and destroy arenas. A single mutex guards all bins: acquire/release are
// rare relative to bump allocation, so contention here is acceptable.
type Recycler struct {
	mu     sync.Mutex
	bins   [len(recyclerBinSizes)][]chunk
	source ChunkSource
}

// NewRecycler creates a Recycler backed by the given ChunkSource. A nil
// source defaults to HeapChunkSource{}.
func NewRecycler(source ChunkSource) *Recycler {
	if source == nil {
		source = HeapChunkSource{}
	}
	return &Recycler{source: source}
}

// Acquire selects the smallest bin whose class size is >= minBytes; if
// that bin's most recently cached chunk holds at least minBytes, it is
// popped (with its offset reset to zero) and returned. Otherwise a fresh
// chunk of max(minBytes, class size) is requested from the chunk source.
func (r *Recycler) Acquire(minBytes int, guards, preferHuge bool) chunk {
	idx := recyclerBinIndex(minBytes)

	r.mu.Lock()
	bin := r.bins[idx]
	if n := len(bin); n > 0 && bin[n-1].size() >= minBytes {
		c := bin[n-1]
		r.bins[idx] = bin[:n-1]
		r.mu.Unlock()
		c.offset = 0
		return c
	}
	r.mu.Unlock()

	want := minBytes
	if recyclerBinSizes[idx] > want {
		want = recyclerBinSizes[idx]
	}
	return r.source.AcquireChunk(want, guards, preferHuge)
}

// Release returns a chunk to the bin indexed by its actual size.
func (r *Recycler) Release(c chunk) {
	if c.base == nil {
		return
	}
	idx := recyclerBinIndex(c.size())
	c.offset = 0
	r.mu.Lock()
	r.bins[idx] = append(r.bins[idx], c)
	r.mu.Unlock()
}

// Close drops every cached chunk back to the underlying chunk source.
// Intended for use at process/test teardown; a Recycler with live arenas
// still attached should not be closed.
func (r *Recycler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bins {
		for _, c := range r.bins[i] {
			r.source.ReleaseChunk(c)
		}
		r.bins[i] = nil
	}
}
