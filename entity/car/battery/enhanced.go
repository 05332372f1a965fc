package battery

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

// Enhanced 增强库伦计数电池
type Enhanced struct {
	capacityMAh         float64
	maxVoltage          float64
	minVoltage          float64
	chargeEfficiency    float64
	dischargeEfficiency float64
	initialSOC          float64
}

// NewEnhanced 创建增强库伦计数电池，效率未配置时取1
func NewEnhanced(c config.Battery, initialSOC float64) *Enhanced {
	e := &Enhanced{
		capacityMAh:         c.MaxCurrentCapacity * 1000,
		maxVoltage:          c.MaxVoltage,
		minVoltage:          c.MinVoltage,
		chargeEfficiency:    c.ChargeEfficiency,
		dischargeEfficiency: c.DischargeEfficiency,
		initialSOC:          lo.Clamp(initialSOC, 0, 1),
	}
	if e.chargeEfficiency <= 0 {
		e.chargeEfficiency = 1
	}
	if e.dischargeEfficiency <= 0 {
		e.dischargeEfficiency = 1
	}
	return e
}

func (e *Enhanced) voltage(soc float64) float64 {
	return e.minVoltage + (e.maxVoltage-e.minVoltage)*soc
}

// ΔDOD = -I·Δt / (3.6·capacity_mAh)
func (e *Enhanced) deltaDOD(current, tick float64) float64 {
	return -current * tick / (3.6 * e.capacityMAh)
}

// EnergyBalance 增强库伦计数
// 功能：由每个tick的能量变化推出电流，积分DOD得到SOC/SOH
// 算法说明：
// 1. 电压 V = Vmin + (Vmax-Vmin)·SOC[t-1]，电流 I = ΔE[t]/tick/V（正为充电）
// 2. 充电：若SOC[t-1]已满，SOH = SOC = 1，DOD保持；否则 DOD += η充·ΔDOD
// 3. 放电：若V不高于截止电压，SOH与DOD取DOD[t-1]，SOC保持；否则 DOD += η放·ΔDOD
// 4. DOD截断到[0, SOH]，SOC = SOH - DOD，SOC与SOH截断到[0, 1]
// 5. 放电时已到截止电压或SOC为0记为Exhausted
func (e *Enhanced) EnergyBalance(cumulativeDeltaEnergy []float64, tick float64) entity.BatteryTrace {
	trace := newTrace(len(cumulativeDeltaEnergy))
	soc, soh, dod := e.initialSOC, 1.0, 1-e.initialSOC
	raw := soc
	for t, d := range deltas(cumulativeDeltaEnergy) {
		v := e.voltage(soc)
		current := 0.0
		if v > 0 && tick > 0 {
			current = d / tick / v
		}
		step := e.deltaDOD(current, tick)
		raw -= step
		if current > 0 {
			if soc >= 1 {
				soh, soc = 1, 1
			} else {
				dod += e.chargeEfficiency * step
				dod = lo.Clamp(dod, 0, soh)
				soc = soh - dod
			}
		} else {
			if v <= e.minVoltage && current < 0 {
				soh = dod
			} else {
				dod += e.dischargeEfficiency * step
				dod = lo.Clamp(dod, 0, soh)
				soc = soh - dod
			}
		}
		soc = lo.Clamp(soc, 0, 1)
		soh = lo.Clamp(soh, 0, 1)
		trace.SOC[t] = soc
		trace.SOH[t] = soh
		trace.DOD[t] = dod
		trace.RawSOC[t] = raw
		trace.Exhausted[t] = current < 0 && (v <= e.minVoltage || soc <= 0)
	}
	return trace
}
