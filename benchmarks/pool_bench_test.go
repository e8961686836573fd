package malloc_test

import (
	"fmt"
	"testing"
	"unsafe"

	malloc "github.com/lowlatency/malloc"
)

// BenchmarkPool covers the "pool" selector: single-threaded fixed-size
// allocate/deallocate cycling, with an optional live-set size that holds N
// outstanding slots before freeing them, converting the usual
// immediate-free pattern into sustained churn against a smaller effective
// free list.
func BenchmarkPool(b *testing.B) {
	sizes := []int{16, 64, 256}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("AllocFree_%dB", size), func(b *testing.B) {
			p := malloc.NewPool(size, 1024, malloc.MinimalOverhead())

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ptr := p.Allocate()
				p.Deallocate(ptr)
			}
		})
	}

	liveSets := []int{0, 64, 512}
	for _, live := range liveSets {
		b.Run(fmt.Sprintf("LiveSet_%d", live), func(b *testing.B) {
			p := malloc.NewPool(64, 1024, malloc.MinimalOverhead())
			outstanding := make([]unsafe.Pointer, 0, live+1)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ptr := p.Allocate()
				outstanding = append(outstanding, ptr)
				if len(outstanding) > live {
					p.Deallocate(outstanding[0])
					outstanding = outstanding[1:]
				}
			}
		})
	}

	b.Run("DebugStrong", func(b *testing.B) {
		p := malloc.NewPool(64, 1024, malloc.DebugStrong(64))

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ptr := p.Allocate()
			p.Deallocate(ptr)
		}
	})

	b.Run("SizeClassRouted", func(b *testing.B) {
		s := malloc.NewSizeClassPool(malloc.SizeClassPoolOptions{
			MaxObjectSize:    4096,
			ObjectsPerBucket: 1024,
		})

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ptr := s.Allocate(100)
			s.Deallocate(ptr, 100)
		}
	})
}
