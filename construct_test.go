package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vec3 struct{ X, Y, Z float64 }

func TestConstructInPoolRoundTrip(t *testing.T) {
	p := NewPool(int(unsafe.Sizeof(vec3{})), 4, PoolOptions{})

	v := ConstructInPool[vec3](p)
	require.NotNil(t, v)
	v.X, v.Y, v.Z = 1, 2, 3
	DestroyInPool(p, v)

	assert.Zero(t, p.Used())
}

func TestConstructInLockFreePoolRoundTrip(t *testing.T) {
	p := NewLockFreePool(int(unsafe.Sizeof(vec3{})), 4, PoolOptions{})

	v := ConstructInLockFreePool[vec3](p)
	require.NotNil(t, v)
	DestroyInLockFreePool(p, v)
}

func TestDestroyInPoolNilIsNoOp(t *testing.T) {
	p := NewPool(8, 2, PoolOptions{})
	assert.NotPanics(t, func() { DestroyInPool[vec3](p, nil) })
}
