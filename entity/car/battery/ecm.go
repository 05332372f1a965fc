package battery

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"gonum.org/v1/gonum/interp"
)

// EquivalentCircuit 一阶Thevenin等效电路电池
// 功能：欧姆内阻R0串联一个RC极化环节，参数与开路电压均按SOC查表（线性插值，端点外取端点值）
type EquivalentCircuit struct {
	r0, rp, cp, uoc interp.PiecewiseLinear
	qTotal          float64 // 总容量（C）
	initialSOC      float64
}

// NewEquivalentCircuit 创建等效电路电池
// 返回：查表数据不合法（长度不一致、SOC不严格递增）时返回错误
func NewEquivalentCircuit(c config.Battery, initialSOC float64) (*EquivalentCircuit, error) {
	if c.QTotal <= 0 {
		return nil, errors.New("equivalent circuit battery requires q_total > 0")
	}
	e := &EquivalentCircuit{qTotal: c.QTotal, initialSOC: lo.Clamp(initialSOC, 0, 1)}
	tables := []struct {
		name string
		pl   *interp.PiecewiseLinear
		data []float64
	}{
		{"r0_data", &e.r0, c.R0Data},
		{"rp_data", &e.rp, c.RPData},
		{"cp_data", &e.cp, c.CPData},
		{"uoc_data", &e.uoc, c.UocData},
	}
	for _, tb := range tables {
		if len(tb.data) != len(c.SOCData) {
			return nil, errors.Errorf("%s has %d points, soc_data has %d", tb.name, len(tb.data), len(c.SOCData))
		}
		if err := tb.pl.Fit(c.SOCData, tb.data); err != nil {
			return nil, errors.Wrapf(err, "fit %s", tb.name)
		}
	}
	return e, nil
}

// current 给定端口功率（W，正为放电）求电流（A，正为放电）
// 算法说明：P = (Uoc - Up - R0·I)·I，取较小根；判别式为负时取功率极大点 I = (Uoc-Up)/(2R0)
func current(uoc, up, r0, power float64) float64 {
	emf := uoc - up
	if r0 <= 0 {
		if emf == 0 {
			return 0
		}
		return power / emf
	}
	disc := emf*emf - 4*r0*power
	if disc < 0 {
		return emf / (2 * r0)
	}
	return (emf - math.Sqrt(disc)) / (2 * r0)
}

// EnergyBalance 等效电路逐tick积分
// 算法说明：
// 1. 查表得到当前SOC下的R0、Rp、Cp、Uoc
// 2. 由能量变化求端口功率与电流
// 3. 极化电压 Up = Up·e^(-dt/τ) + Rp·(1-e^(-dt/τ))·I，τ = Rp·Cp
// 4. SOC -= I·dt/Q，截断到[0, 1]
func (e *EquivalentCircuit) EnergyBalance(cumulativeDeltaEnergy []float64, tick float64) entity.BatteryTrace {
	trace := newTrace(len(cumulativeDeltaEnergy))
	soc, raw, up := e.initialSOC, e.initialSOC, 0.0
	for t, d := range deltas(cumulativeDeltaEnergy) {
		power := 0.0
		if tick > 0 {
			power = -d / tick
		}
		r0, rp, cp, uoc := e.r0.Predict(soc), e.rp.Predict(soc), e.cp.Predict(soc), e.uoc.Predict(soc)
		i := current(uoc, up, r0, power)
		if tau := rp * cp; tau > 0 {
			decay := math.Exp(-tick / tau)
			up = up*decay + rp*(1-decay)*i
		} else {
			up = rp * i
		}
		step := i * tick / e.qTotal
		raw -= step
		soc = lo.Clamp(soc-step, 0, 1)
		trace.SOC[t] = soc
		trace.SOH[t] = 1
		trace.DOD[t] = 1 - soc
		trace.RawSOC[t] = raw
		trace.Exhausted[t] = step > 0 && soc <= 0
	}
	return trace
}
