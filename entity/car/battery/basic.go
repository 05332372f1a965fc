package battery

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

// Basic 线性能量记账电池
// 功能：以固定能量容量记账，充电到满为止，放电到空为止
// 说明：Charge/Discharge修改内部存储能量（非并发安全）；EnergyBalance只读取初始状态，为纯函数
type Basic struct {
	maxEnergy  float64 // 能量容量（J）
	initial    float64 // 初始能量（J）
	stored     float64 // 当前能量（J）
	maxVoltage float64
	minVoltage float64
}

// NewBasic 创建线性电池
func NewBasic(c config.Battery, initialSOC float64) *Basic {
	maxEnergy := c.MaxEnergyCapacity * jPerWh
	initial := lo.Clamp(initialSOC, 0, 1) * maxEnergy
	return &Basic{
		maxEnergy:  maxEnergy,
		initial:    initial,
		stored:     initial,
		maxVoltage: c.MaxVoltage,
		minVoltage: c.MinVoltage,
	}
}

// StoredEnergy 当前能量（J）
func (b *Basic) StoredEnergy() float64 { return b.stored }

// SOC 当前荷电状态
func (b *Basic) SOC() float64 {
	if b.maxEnergy <= 0 {
		return 0
	}
	return b.stored / b.maxEnergy
}

// Voltage 端电压，按SOC在截止电压与满电电压间线性插值
func (b *Basic) Voltage() float64 {
	return b.minVoltage + (b.maxVoltage-b.minVoltage)*b.SOC()
}

// Empty 是否已放空
func (b *Basic) Empty() bool { return b.stored <= 0 }

// Charge 充电energy焦耳，超过容量部分丢弃
func (b *Basic) Charge(energy float64) {
	b.stored = min(b.stored+energy, b.maxEnergy)
}

// Discharge 放电
// 参数：energy-请求放出的能量（J）
// 返回：实际放出的能量；请求超过剩余能量时剩余能量置0并返回ErrBatteryEmpty
func (b *Basic) Discharge(energy float64) (float64, error) {
	if b.stored-energy < 0 {
		delivered := b.stored
		b.stored = 0
		return delivered, ErrBatteryEmpty
	}
	b.stored -= energy
	return energy, nil
}

// EnergyBalance 逐tick能量记账
// 算法说明：
// 1. 在初始能量的副本上逐tick Charge(ΔE>0)或Discharge(ΔE<0)，即E[t] = clamp(E[t-1] + ΔE[t], 0, 容量)
// 2. Discharge返回ErrBatteryEmpty的tick记为Exhausted
// 3. SOC = E/容量，SOH恒为1，DOD = 1-SOC
// 4. RawSOC = (初始能量 + 累计ΔE)/容量，不截断
func (b *Basic) EnergyBalance(cumulativeDeltaEnergy []float64, tick float64) entity.BatteryTrace {
	trace := newTrace(len(cumulativeDeltaEnergy))
	if b.maxEnergy <= 0 {
		return trace
	}
	cell := *b
	cell.stored = b.initial
	for t, d := range deltas(cumulativeDeltaEnergy) {
		switch {
		case d > 0:
			cell.Charge(d)
		case d < 0:
			if _, err := cell.Discharge(-d); errors.Is(err, ErrBatteryEmpty) {
				trace.Exhausted[t] = true
			}
		}
		trace.SOC[t] = cell.SOC()
		trace.SOH[t] = 1
		trace.DOD[t] = 1 - trace.SOC[t]
		trace.RawSOC[t] = (b.initial + cumulativeDeltaEnergy[t]) / b.maxEnergy
	}
	return trace
}
