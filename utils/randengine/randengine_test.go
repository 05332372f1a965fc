package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/solarsim/utils/randengine"
)

func TestReproducible(t *testing.T) {
	a, b := randengine.New(42), randengine.New(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uniform(20, 60), b.Uniform(20, 60))
	}
}

func TestUniformBounds(t *testing.T) {
	e := randengine.New(1)
	for i := 0; i < 1000; i++ {
		v := e.Uniform(20, 30)
		assert.GreaterOrEqual(t, v, 20.0)
		assert.Less(t, v, 30.0)
	}
}

func TestDistinct(t *testing.T) {
	e := randengine.New(3)
	for i := 0; i < 100; i++ {
		idx := e.Distinct(5, 3, 2)
		assert.Len(t, idx, 3)
		assert.NotContains(t, idx, 2)
		assert.NotEqual(t, idx[0], idx[1])
		assert.NotEqual(t, idx[1], idx[2])
		assert.NotEqual(t, idx[0], idx[2])
	}
}
