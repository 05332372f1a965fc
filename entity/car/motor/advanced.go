package motor

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"gonum.org/v1/gonum/interp"
)

// DefaultSlipCurve 默认轮胎侧向力-侧偏角曲线
var DefaultSlipCurve = []config.SlipPoint{
	{Force: 0, AngleDeg: 0},
	{Force: 1000, AngleDeg: 0.5},
	{Force: 2000, AngleDeg: 1.0},
	{Force: 3000, AngleDeg: 1.6},
	{Force: 4000, AngleDeg: 2.3},
	{Force: 5000, AngleDeg: 3.1},
	{Force: 6000, AngleDeg: 4.0},
	{Force: 8000, AngleDeg: 6.5},
}

// Advanced 带弯道损耗的电机模型
// 功能：在Basic的输出能量上叠加轮胎侧偏引起的摩擦功
type Advanced struct {
	*Basic
	radii       []float64 // 单圈每个路线点的转弯半径（m）
	coefficient float64
	slip        interp.PiecewiseLinear
}

// NewAdvanced 创建带弯道损耗的电机模型
// 返回：转弯半径为空或侧偏曲线不合法时返回错误
func NewAdvanced(v config.Vehicle, m config.Motor, corneringRadii []float64) (*Advanced, error) {
	if len(corneringRadii) == 0 {
		return nil, errors.New("advanced motor requires cornering radii")
	}
	curve := m.SlipCurve
	if len(curve) == 0 {
		curve = DefaultSlipCurve
	}
	a := &Advanced{
		Basic:       NewBasic(v, m),
		radii:       corneringRadii,
		coefficient: m.CorneringCoefficient,
	}
	if a.coefficient == 0 {
		a.coefficient = 1
	}
	forces := lo.Map(curve, func(p config.SlipPoint, _ int) float64 { return p.Force })
	angles := lo.Map(curve, func(p config.SlipPoint, _ int) float64 { return p.AngleDeg })
	if err := a.slip.Fit(forces, angles); err != nil {
		return nil, errors.Wrap(err, "fit slip curve")
	}
	return a, nil
}

// SlipAngle 侧向力对应的侧偏角（度），超出曲线范围取端点值
func (a *Advanced) SlipAngle(lateralForce float64) float64 {
	return a.slip.Predict(lateralForce)
}

// CorneringWork 弯道摩擦功（J）
// 算法说明：
// 1. 路线下标按单圈长度取模得到转弯半径（多圈路线的下标不随圈重置）
// 2. 侧向力 F = m·v²/r
// 3. 侧偏距离 = tan(侧偏角)·v·tick，功 = 侧偏距离·F·系数
// 半径非正或为无穷时视为直道
func (a *Advanced) CorneringWork(speedKmh []float64, gisIndices []int, tick float64) []float64 {
	out := make([]float64, len(speedKmh))
	for i, kmh := range speedKmh {
		r := a.radii[gisIndices[i]%len(a.radii)]
		if r <= 0 || math.IsInf(r, 1) {
			continue
		}
		v := kmh / 3.6
		force := a.mass * v * v / r
		slip := a.SlipAngle(force) * math.Pi / 180
		out[i] = math.Tan(slip) * v * tick * force * a.coefficient
	}
	return out
}

// EnergyIn 电机控制器输入能量（J），含弯道损耗
func (a *Advanced) EnergyIn(speedKmh, gradients, windSpeeds []float64, gisIndices []int, tick float64) []float64 {
	extra := a.CorneringWork(speedKmh, gisIndices, tick)
	return a.inputEnergies(speedKmh, a.outputEnergies(speedKmh, gradients, windSpeeds, tick, extra), tick)
}
