package array

import (
	"github.com/tsinghua-fib-lab/solarsim/utils"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

// Array 太阳能阵列
type Array struct {
	efficiency float64
	area       float64
	correction []float64 // 对发电量的修正多项式（最高次在前）
}

func New(c config.Array) *Array {
	return &Array{
		efficiency: c.PanelEfficiency,
		area:       c.PanelSize,
		correction: c.Correction,
	}
}

// ProducedEnergy 光伏发电量（J）
// 功能：E = 辐照度·效率·面积·tick；配置了修正多项式时再乘以 polyval(修正系数, E)
func (a *Array) ProducedEnergy(irradiance []float64, tick float64) []float64 {
	out := make([]float64, len(irradiance))
	for i, g := range irradiance {
		e := g * a.efficiency * a.area * tick
		if len(a.correction) > 0 {
			e *= utils.Polyval(a.correction, e)
		}
		out[i] = e
	}
	return out
}
