package malloc

import "sync/atomic"

// Histogram is a fixed-range linear-bucket counter with atomically
// incremented buckets, ported from the C++ original's
// include/utils/histogram.hpp. Values below min clamp into bucket 0;
// values at or above max clamp into the last bucket.
type Histogram struct {
	min     uint64
	max     uint64
	buckets uint64
	width   uint64
	counts  []atomic.Uint64
}

// NewHistogram creates a Histogram covering [min, max] with the given
// number of buckets (at least 1).
func NewHistogram(min, max uint64, buckets int) *Histogram {
	if max < min {
		max = min
	}
	if buckets < 1 {
		buckets = 1
	}
	width := uint64(1)
	if max > min {
		width = (max - min + 1 + uint64(buckets) - 1) / uint64(buckets)
		if width == 0 {
			width = 1
		}
	}
	return &Histogram{
		min:     min,
		max:     max,
		buckets: uint64(buckets),
		width:   width,
		counts:  make([]atomic.Uint64, buckets),
	}
}

// Record increments the bucket that v falls into.
func (h *Histogram) Record(v uint64) {
	h.counts[h.indexFor(v)].Add(1)
}

func (h *Histogram) indexFor(v uint64) uint64 {
	if v <= h.min {
		return 0
	}
	if v >= h.max {
		return h.buckets - 1
	}
	idx := (v - h.min) / h.width
	if idx >= h.buckets {
		idx = h.buckets - 1
	}
	return idx
}

// HistogramSnapshot is a value copy of a Histogram's counters.
type HistogramSnapshot struct {
	Min     uint64
	Max     uint64
	Buckets int
	Counts  []uint64
}

// Snapshot returns a value copy of h's current counts.
func (h *Histogram) Snapshot() HistogramSnapshot {
	counts := make([]uint64, len(h.counts))
	for i := range h.counts {
		counts[i] = h.counts[i].Load()
	}
	return HistogramSnapshot{
		Min:     h.min,
		Max:     h.max,
		Buckets: int(h.buckets),
		Counts:  counts,
	}
}
