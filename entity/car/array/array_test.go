package array_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/array"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

func TestProducedEnergy(t *testing.T) {
	a := array.New(config.Array{PanelEfficiency: 0.2, PanelSize: 4})
	assert.InDeltaSlice(t, []float64{0, 800, 400}, a.ProducedEnergy([]float64{0, 1000, 500}, 1), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 1600}, a.ProducedEnergy([]float64{0, 1000}, 2), 1e-9)
}

func TestCorrection(t *testing.T) {
	// 常数修正：整体打九折
	a := array.New(config.Array{PanelEfficiency: 0.2, PanelSize: 4, Correction: []float64{0.9}})
	assert.InDeltaSlice(t, []float64{720}, a.ProducedEnergy([]float64{1000}, 1), 1e-9)
	// 线性修正：factor = 1 - 1e-4·E
	b := array.New(config.Array{PanelEfficiency: 0.2, PanelSize: 4, Correction: []float64{-1e-4, 1}})
	assert.InDeltaSlice(t, []float64{800 * 0.92}, b.ProducedEnergy([]float64{1000}, 1), 1e-9)
}
