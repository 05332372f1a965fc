package regen

import (
	"math"

	"github.com/tsinghua-fib-lab/solarsim/utils"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

const gravity = 9.81

// Regen 再生制动
type Regen struct {
	mass       float64
	efficiency float64
	minSpeed   float64 // m/s
	maxPower   float64 // W
}

func New(v config.Vehicle, c config.Regen) *Regen {
	return &Regen{
		mass:       v.Mass,
		efficiency: c.Efficiency,
		minSpeed:   c.MinSpeed,
		maxPower:   c.MaxPower,
	}
}

// ProducedEnergy 回收能量（J）
// 算法说明：
// 1. 机械能 E = ½mv² + mgh，ΔE[i] = E[i+1] - E[i]，末尾补0
// 2. ΔE < 0 且车速不低于最低回收车速时回收 |ΔE|·效率
// 3. 回收能量不超过 最大功率·tick
func (r *Regen) ProducedEnergy(speedKmh, elevations []float64, tick float64) []float64 {
	n := len(speedKmh)
	mechanical := make([]float64, n)
	for i, kmh := range speedKmh {
		v := kmh / 3.6
		mechanical[i] = 0.5*r.mass*v*v + r.mass*gravity*elevations[i]
	}
	delta := utils.Diff(mechanical, 0)
	if n > 0 {
		// 末尾补0：最后一个tick没有后续状态
		delta[n-1] = 0
	}
	out := make([]float64, n)
	for i, d := range delta {
		if d >= 0 || speedKmh[i]/3.6 < r.minSpeed {
			continue
		}
		out[i] = math.Min(-d*r.efficiency, r.maxPower*tick)
	}
	return out
}
