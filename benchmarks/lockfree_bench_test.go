package malloc_test

import (
	"fmt"
	"runtime"
	"testing"

	malloc "github.com/lowlatency/malloc"
)

// BenchmarkLockFreePool covers the "lockfree" selector: concurrent
// allocate/deallocate against a single shared pool under varying
// GOMAXPROCS settings, plus a DebugStrong shared pool and a lock-free
// SizeClassPool under the same parallel load.
func BenchmarkLockFreePool(b *testing.B) {
	threadCounts := []int{1, 2, 4, 8, 16}

	for _, threads := range threadCounts {
		b.Run(fmt.Sprintf("Shared_%dThreads", threads), func(b *testing.B) {
			p := malloc.NewLockFreePool(64, 4096, malloc.MinimalOverhead())

			oldProcs := runtime.GOMAXPROCS(threads)
			defer runtime.GOMAXPROCS(oldProcs)

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					ptr := p.Allocate()
					if ptr != nil {
						p.Deallocate(ptr)
					}
				}
			})
		})
	}

	b.Run("DebugStrongContention", func(b *testing.B) {
		p := malloc.NewLockFreePool(64, 4096, malloc.DebugStrong(64))

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				ptr := p.Allocate()
				if ptr != nil {
					p.Deallocate(ptr)
				}
			}
		})
	})

	b.Run("SizeClassLockFreeRouted", func(b *testing.B) {
		s := malloc.NewSizeClassPool(malloc.SizeClassPoolOptions{
			MaxObjectSize:    4096,
			ObjectsPerBucket: 4096,
			LockFree:         true,
		})

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				ptr := s.Allocate(100)
				s.Deallocate(ptr, 100)
			}
		})
	})
}
