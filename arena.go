package malloc

import (
	"unsafe"

	"github.com/lowlatency/malloc/internal/destructors"
)

// DefaultInitialChunkSize is the starting chunk size for a new Arena
// (1 MiB), matching the C++ original's default.
const DefaultInitialChunkSize = 1 << 20

// DefaultMaxChunkSize caps how large a single grown chunk may be (64
// MiB), matching the C++ original's default.
const DefaultMaxChunkSize = 1 << 26

// DefaultGrowthFactor is the geometric growth multiplier applied to the
// "next requested chunk size" after every growth event.
const DefaultGrowthFactor = 2.0

// DefaultCanaryByte is the fill byte written into canary regions when
// UseCanaries is enabled.
const DefaultCanaryByte = 0xCA

// DefaultJournalCapacity is the ring buffer size used when Journaling is
// enabled and no explicit JournalCapacity is configured.
const DefaultJournalCapacity = 1024

// ArenaOptions configures an Arena's growth strategy and debug/bookkeeping
// features. The zero value is not directly usable for every field — use
// NewArena, which fills in defaults for zero-valued fields the way the
// C++ original treats its struct's default member initializers.
type ArenaOptions struct {
	// InitialChunkSize is the size of the first chunk and the floor for
	// every subsequently grown chunk; any chunk request below
	// minChunkBytes (4096) is raised to it. Default: DefaultInitialChunkSize.
	InitialChunkSize int
	// GrowthFactor multiplies the "next requested chunk size" after each
	// growth event. Default: DefaultGrowthFactor.
	GrowthFactor float64
	// MaxChunkSize caps how large a single chunk may grow.
	// Default: DefaultMaxChunkSize.
	MaxChunkSize int

	// GuardPages and PreferHuge are no-ops in the portable ChunkSource;
	// a host-specific ChunkSource may act on them.
	GuardPages bool
	PreferHuge bool

	// UseCanaries enables canary regions before/after every payload (the
	// block header itself is always written), used by external tooling
	// (ScanHeaderAt) to detect
	// over/underruns. The arena itself never verifies canaries on free.
	UseCanaries bool
	CanarySize  int
	CanaryByte  byte // Default: DefaultCanaryByte.

	// Journaling enables a fixed-capacity ring buffer recording
	// (size, alignment, caller pc) for allocations >= JournalThresholdBytes.
	Journaling            bool
	JournalThresholdBytes int
	JournalCapacity       int // Default: DefaultJournalCapacity.
	CaptureCallerPC       bool

	// ChunkSource supplies backing memory. Default: HeapChunkSource{}.
	ChunkSource ChunkSource
}

func (o ArenaOptions) withDefaults() ArenaOptions {
	if o.InitialChunkSize <= 0 {
		o.InitialChunkSize = DefaultInitialChunkSize
	}
	if o.GrowthFactor <= 1.0 {
		o.GrowthFactor = DefaultGrowthFactor
	}
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.CanaryByte == 0 {
		o.CanaryByte = DefaultCanaryByte
	}
	if o.JournalCapacity <= 0 {
		o.JournalCapacity = DefaultJournalCapacity
	}
	if o.ChunkSource == nil {
		o.ChunkSource = HeapChunkSource{}
	}
	return o
}

// Arena is a chunked bump allocator: memory is handed out by advancing a
// cursor within the current chunk, and chunks are acquired on demand as
// the arena grows. Arena is single-owner and not goroutine-safe; use
// distinct arenas per goroutine (ThreadLocalArena does this for you) or
// guard a shared Arena with your own mutex.
type Arena struct {
	opts           ArenaOptions
	chunks         []*chunk
	nextChunkBytes int
	totalBytes     int
	group          *Recycler
	journal        journalRing
	destructors    destructors.Registry
	released       bool
}

// NewArena creates an Arena with one initial chunk already allocated.
func NewArena(opts ArenaOptions) *Arena {
	opts = opts.withDefaults()
	a := &Arena{
		opts:           opts,
		nextChunkBytes: opts.InitialChunkSize,
	}
	if opts.Journaling {
		a.journal = newJournalRing(opts.JournalCapacity)
	}
	first := a.newChunk(0)
	a.chunks = append(a.chunks, &first)
	return a
}

// AttachGroup attaches a Recycler that future chunk growth requests will
// be routed through, and that Release will return chunks to.
func (a *Arena) AttachGroup(g *Recycler) {
	a.group = g
}

// ChunkCount returns the number of chunks currently owned by the arena.
func (a *Arena) ChunkCount() int {
	return len(a.chunks)
}

// BytesRemaining returns the unused space in the current (last) chunk.
func (a *Arena) BytesRemaining() int {
	if len(a.chunks) == 0 {
		return 0
	}
	return a.chunks[len(a.chunks)-1].remaining()
}

// BytesServed returns the total number of user bytes handed out since
// construction or the last Reset.
func (a *Arena) BytesServed() int {
	return a.totalBytes
}

// Allocate reserves bytes bytes aligned to alignment and returns a slice
// viewing the reserved region. bytes <= 0 is treated as bytes = 1.
// alignment is rounded up to the platform's maximum natural alignment and
// to the next power of two. Allocate never returns nil on the common
// path: growth is automatic. The only failure mode is chunk source
// exhaustion or a retry-logic fault, both of which are fatal (see
// errors.go).
func (a *Arena) Allocate(bytes, alignment int) []byte {
	if a.released {
		fatalf("arena: use after Release()")
	}
	if bytes <= 0 {
		bytes = 1
	}
	align := uintptr(alignment)
	if align < maxNaturalAlignment {
		align = maxNaturalAlignment
	}
	if !isPow2(align) {
		align = nextPow2(align)
	}
	size := uintptr(bytes)

	if n := len(a.chunks); n > 0 {
		if out, ok := a.tryAllocFromChunk(a.chunks[n-1], size, align); ok {
			a.totalBytes += bytes
			a.maybeJournal(size, align)
			return out
		}
	}
	return a.allocateSlow(size, align)
}

// Construct allocates sizeof(T) bytes aligned to alignof(T) and returns a
// zero-valued *T backed by that storage. The arena does not track T's
// destructor; use ConstructTracked if you need Reset/Release to run one.
func Construct[T any](a *Arena) *T {
	return constructIn[T](a)
}

// ConstructTracked is Construct, but registers destroy to run (in LIFO
// order relative to other tracked constructions in the same epoch) the
// next time Reset or Release is called. This is an opt-in escape hatch
// from the arena's default bulk-free, no-destructor-calls behavior.
func ConstructTracked[T any](a *Arena, destroy func(*T)) *T {
	p := constructIn[T](a)
	if destroy != nil {
		a.destructors.Register(p, func(v any) { destroy(v.(*T)) })
	}
	return p
}

// Reset rewinds every owned chunk's offset to zero, keeping the chunks
// themselves for reuse. Any destructors registered via ConstructTracked
// in this epoch are drained (LIFO) before offsets are rewound. This is
// O(chunk count) and never calls the chunk source.
func (a *Arena) Reset() {
	if a.released {
		fatalf("arena: use after Release()")
	}
	a.destructors.Drain()
	for _, c := range a.chunks {
		c.offset = 0
	}
	a.totalBytes = 0
}

// Release drains any tracked destructors, then returns every chunk to the
// attached Recycler (if any) or the configured ChunkSource, and restores
// the arena to an unusable state. Allocate or Reset on a released Arena
// is fatal; a second Release is a no-op.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.destructors.Drain()
	for _, c := range a.chunks {
		if a.group != nil {
			a.group.Release(*c)
		} else {
			a.opts.ChunkSource.ReleaseChunk(*c)
		}
	}
	a.chunks = nil
	a.totalBytes = 0
	a.nextChunkBytes = a.opts.InitialChunkSize
	a.released = true
}

// tryAllocFromChunk attempts to carve a header + (optional canaries) +
// user region out of c, returning the user slice. It returns ok=false if
// the fresh reservation would run past the chunk's capacity.
//
// Alignment is applied to addresses, not chunk-relative offsets: the
// caller's alignment request is a guarantee about the returned pointer,
// which only holds relative to offsets if the chunk base happens to share
// the alignment.
func (a *Arena) tryAllocFromChunk(c *chunk, userSize, alignment uintptr) ([]byte, bool) {
	base := uintptr(unsafe.Pointer(&c.base[0]))
	cur := base + uintptr(c.offset)
	hdrAddr := alignUp(cur, maxNaturalAlignment)
	hdrEnd := hdrAddr + blockHeaderSize

	var pre, post uintptr
	if a.opts.UseCanaries {
		pre = uintptr(a.opts.CanarySize)
		post = uintptr(a.opts.CanarySize)
	}

	userAddr := alignUp(hdrEnd+pre, alignment)
	end := userAddr + userSize + post

	if end > base+uintptr(len(c.base)) {
		return nil, false
	}

	hdrOff := hdrAddr - base
	userOff := userAddr - base
	writeHeaderAndCanaries(c.base, hdrOff, userOff, userSize, alignment, pre, post, a.opts.CanaryByte)
	c.offset = int(end - base)
	return c.base[userOff : userOff+userSize : userOff+userSize], true
}

// allocateSlow handles the case where the current chunk can't satisfy
// the request: it sizes and acquires a fresh chunk, retries, and falls
// back to an exact-fit chunk if the fresh chunk still can't satisfy a
// pathological alignment+size combination.
func (a *Arena) allocateSlow(size, alignment uintptr) []byte {
	var pre, post uintptr
	if a.opts.UseCanaries {
		pre = uintptr(a.opts.CanarySize)
		post = uintptr(a.opts.CanarySize)
	}
	// Worst case within a fresh chunk: slack to align the header address,
	// the header, the pre-canary, slack to align the user address, the
	// payload, the post-canary.
	worst := maxNaturalAlignment + blockHeaderSize + pre + alignment + size + post

	want := uintptr(a.nextChunkBytes)
	if worst > want {
		want = worst
	}
	lo := uintptr(a.opts.InitialChunkSize)
	if worst > lo {
		lo = worst
	}
	hi := uintptr(a.opts.MaxChunkSize)
	want = clampUintptr(want, lo, hi)

	c := a.newChunk(int(want))
	a.chunks = append(a.chunks, &c)

	next := uintptr(float64(want) * a.opts.GrowthFactor)
	if next < worst {
		next = worst
	}
	next = clampUintptr(next, uintptr(a.opts.InitialChunkSize), uintptr(a.opts.MaxChunkSize))
	a.nextChunkBytes = int(next)

	out, ok := a.tryAllocFromChunk(a.chunks[len(a.chunks)-1], size, alignment)
	if !ok {
		// Pathological alignment+size combination: allocate an
		// exact-fit chunk sized at worst and retry once more.
		exact := a.newChunk(int(worst))
		a.chunks = append(a.chunks, &exact)
		out, ok = a.tryAllocFromChunk(a.chunks[len(a.chunks)-1], size, alignment)
		if !ok {
			fatalf("arena: allocateSlow: could not satisfy allocation of %d bytes (alignment %d)", size, alignment)
		}
	}
	a.totalBytes += int(size)
	a.maybeJournal(size, alignment)
	return out
}

// newChunk requests a chunk of at least minBytes from the Recycler (if
// attached) or the configured ChunkSource.
func (a *Arena) newChunk(minBytes int) chunk {
	want := minBytes
	if a.nextChunkBytes > want {
		want = a.nextChunkBytes
	}
	if want < minChunkBytes {
		want = minChunkBytes
	}
	var c chunk
	if a.group != nil {
		c = a.group.Acquire(want, a.opts.GuardPages, a.opts.PreferHuge)
	} else {
		c = a.opts.ChunkSource.AcquireChunk(want, a.opts.GuardPages, a.opts.PreferHuge)
	}
	if c.base == nil {
		fatalf("%v: %d bytes requested", ErrOutOfMemory, want)
	}
	return c
}

func (a *Arena) maybeJournal(size, alignment uintptr) {
	if !a.opts.Journaling {
		return
	}
	if int(size) < a.opts.JournalThresholdBytes {
		return
	}
	a.journal.record(size, alignment, a.opts.CaptureCallerPC)
}

func clampUintptr(v, lo, hi uintptr) uintptr {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
