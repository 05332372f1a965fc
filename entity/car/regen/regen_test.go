package regen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/regen"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

func TestProducedEnergy(t *testing.T) {
	r := regen.New(config.Vehicle{Mass: 100}, config.Regen{Efficiency: 0.5, MinSpeed: 1, MaxPower: 1e6})
	speeds := []float64{36, 18, 18, 36, 0}
	elevations := []float64{0, 0, 0, 0, 0}
	got := r.ProducedEnergy(speeds, elevations, 1)
	// 10m/s -> 5m/s：ΔE = 0.5·100·(25-100) = -3750J
	assert.InDeltaSlice(t, []float64{1875, 0, 0, 2500, 0}, got, 1e-6)
}

func TestDownhillAndLimits(t *testing.T) {
	r := regen.New(config.Vehicle{Mass: 100}, config.Regen{Efficiency: 0.5, MinSpeed: 3, MaxPower: 1000})
	speeds := []float64{36, 36, 7.2, 7.2}
	elevations := []float64{10, 9, 9, 9}
	got := r.ProducedEnergy(speeds, elevations, 1)
	// 下坡1m：ΔE = -981J，回收490.5J
	assert.InDelta(t, 490.5, got[0], 1e-6)
	// 减速 10m/s -> 2m/s 回收2400J，被最大功率截断
	assert.InDelta(t, 1000, got[1], 1e-6)
	// 2m/s低于最低回收车速
	assert.Equal(t, 0.0, got[2])
	assert.Equal(t, 0.0, got[3])
}
