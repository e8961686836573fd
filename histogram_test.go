package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogramClampsEndpoints(t *testing.T) {
	h := NewHistogram(0, 100, 10)

	h.Record(0)   // below/at min -> bucket 0
	h.Record(200) // above max -> last bucket
	h.Record(50)  // interior

	snap := h.Snapshot()
	assert.EqualValues(t, 1, snap.Counts[0])
	assert.EqualValues(t, 1, snap.Counts[snap.Buckets-1])

	total := uint64(0)
	for _, c := range snap.Counts {
		total += c
	}
	assert.EqualValues(t, 3, total)
}

func TestHistogramSingleBucket(t *testing.T) {
	h := NewHistogram(0, 0, 1)
	h.Record(5)
	snap := h.Snapshot()
	assert.Equal(t, []uint64{1}, snap.Counts)
}
