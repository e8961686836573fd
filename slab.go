package malloc

import "unsafe"

// slab-layout helpers shared by Pool and LockFreePool: both allocate a
// single contiguous []byte subdivided into alignedObjectSize-sized slots
// and need the same slot addressing, poisoning, and zeroing primitives.

func newSlab(objectSize, capacity int) (slab []byte, alignedObjectSize int) {
	aligned := uintptr(objectSize)
	if aligned < ptrSize {
		aligned = ptrSize
	}
	aligned = alignUp(aligned, maxNaturalAlignment)
	return alignedBytes(int(aligned) * capacity), int(aligned)
}

// alignedBytes returns a buffer of exactly n bytes whose base address is
// aligned to maxNaturalAlignment. Go guarantees only element alignment
// for a []byte, so the buffer is over-allocated and re-sliced to an
// aligned base; the extra head bytes stay reachable through the backing
// array.
func alignedBytes(n int) []byte {
	raw := make([]byte, n+maxNaturalAlignment)
	base := uintptr(unsafe.Pointer(&raw[0]))
	off := alignUp(base, maxNaturalAlignment) - base
	return raw[off : off+uintptr(n) : off+uintptr(n)]
}

func slotAt(slab []byte, alignedObjectSize, i int) unsafe.Pointer {
	return unsafe.Pointer(&slab[i*alignedObjectSize])
}

func slabBase(slab []byte) uintptr {
	if len(slab) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&slab[0]))
}

// slotIndexOf returns the slot index of ptr within slab, validating that
// ptr lies within [base, base + capacity*alignedObjectSize) and is
// slot-aligned. Any violation is a program bug (use-after-free, wild
// pointer, or cross-pool pointer) and aborts fatally.
func slotIndexOf(slab []byte, alignedObjectSize int, ptr unsafe.Pointer) int {
	base := slabBase(slab)
	p := uintptr(ptr)
	if p < base || p >= base+uintptr(len(slab)) {
		fatalf("pool: pointer %#x out of range [%#x, %#x)", p, base, base+uintptr(len(slab)))
	}
	off := p - base
	if off%uintptr(alignedObjectSize) != 0 {
		fatalf("pool: pointer %#x is not slot-aligned (slot size %d)", p, alignedObjectSize)
	}
	return int(off / uintptr(alignedObjectSize))
}

func tailBytesOf(slab []byte, alignedObjectSize int, slot unsafe.Pointer) []byte {
	base := uintptr(slot) - slabBase(slab)
	start := int(base) + int(ptrSize)
	end := int(base) + alignedObjectSize
	return slab[start:end]
}

func poisonTailOf(slab []byte, alignedObjectSize int, slot unsafe.Pointer, poisonByte byte) {
	tail := tailBytesOf(slab, alignedObjectSize, slot)
	for i := range tail {
		tail[i] = poisonByte
	}
}

// verifyPoisonOf aborts fatally on the first byte that doesn't match
// poisonByte, reporting its offset within the tail region.
func verifyPoisonOf(slab []byte, alignedObjectSize int, slot unsafe.Pointer, poisonByte byte) {
	tail := tailBytesOf(slab, alignedObjectSize, slot)
	for i, b := range tail {
		if b != poisonByte {
			fatalf("pool: poison mismatch at byte offset %d (want 0x%02X, got 0x%02X)", i, poisonByte, b)
		}
	}
}

func zeroSlotOf(slab []byte, alignedObjectSize int, slot unsafe.Pointer) {
	base := uintptr(slot) - slabBase(slab)
	clear(slab[base : int(base)+alignedObjectSize])
}
