package malloc

import "unsafe"

// DefaultPoisonByte is the fill byte written into a freed slot's tail
// when PoisonOnFree is enabled.
const DefaultPoisonByte = 0xA5

// DefaultHistogramBuckets is the bucket count used when SampleHistograms
// is enabled and HistogramBuckets is left at zero.
const DefaultHistogramBuckets = 64

// PoolOptions configures the debug-hygiene pipeline shared by Pool and
// LockFreePool, ported directly from the C++ original's PoolOptions
// (include/allocators/poolConfig.hpp).
type PoolOptions struct {
	ZeroOnAlloc         bool
	PoisonOnFree        bool
	VerifyPoisonOnAlloc bool
	PoisonByte          byte // Default: DefaultPoisonByte.

	// QuarantineSize bounds a FIFO quarantine of recently freed slots;
	// 0 disables quarantine (slots are pushed straight to the free
	// list).
	QuarantineSize int

	SampleHistograms bool
	HistogramBuckets int // Default: DefaultHistogramBuckets.

	// OnAlloc runs after zeroing (if enabled); OnFree runs before
	// poisoning (if enabled). Both are best-effort and must never panic
	// across the pool — a panicking hook aborts the calling goroutine,
	// which is treated as a caller bug, not a pool contract violation.
	OnAlloc func(ptr unsafe.Pointer, size int)
	OnFree  func(ptr unsafe.Pointer, size int)
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.PoisonByte == 0 {
		o.PoisonByte = DefaultPoisonByte
	}
	if o.HistogramBuckets <= 0 {
		o.HistogramBuckets = DefaultHistogramBuckets
	}
	return o
}

// DebugStrong returns a PoolOptions with the full hygiene pipeline
// enabled: zeroing on allocate, poisoning on free, poison verification on
// allocate, a bounded quarantine, and occupancy histograms.
func DebugStrong(quarantine int) PoolOptions {
	if quarantine <= 0 {
		quarantine = 64
	}
	return PoolOptions{
		ZeroOnAlloc:         true,
		PoisonOnFree:        true,
		VerifyPoisonOnAlloc: true,
		QuarantineSize:      quarantine,
		SampleHistograms:    true,
	}
}

// MinimalOverhead returns a PoolOptions with every hygiene feature
// disabled — the fastest possible configuration.
func MinimalOverhead() PoolOptions {
	return PoolOptions{}
}
