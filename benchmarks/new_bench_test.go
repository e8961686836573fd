package malloc_test

import (
	"fmt"
	"testing"

	malloc "github.com/lowlatency/malloc"
)

// BenchmarkNew is the "new" selector: the system-allocator baseline
// (plain make/new, letting the garbage collector reclaim) that every other
// selector is measured against.
func BenchmarkNew(b *testing.B) {
	sizes := []int{8, 64, 256, 4096}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Make_%dB", size), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = make([]byte, size)
			}
		})
	}

	b.Run("NewStruct", func(b *testing.B) {
		type widget struct{ A, B, C int64 }

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = new(widget)
		}
	})

	b.Run("ArenaVsNewStruct", func(b *testing.B) {
		type widget struct{ A, B, C int64 }
		a := malloc.NewArena(malloc.ArenaOptions{InitialChunkSize: 64 * 1024})
		defer a.Release()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			malloc.Construct[widget](a)
			if i%1000 == 999 {
				a.Reset()
			}
		}
	})
}
