package battery

import (
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

// ErrBatteryEmpty 放电量超过剩余能量，剩余能量已置0
var ErrBatteryEmpty = errors.New("battery empty")

// 1Wh = 3600J
const jPerWh = 3600.0

// New 按配置中的判别字段创建电池模型
// 参数：c-电池配置，initialSOC-初始荷电状态 [0, 1]
// 返回：电池模型；未知类型返回错误
func New(c config.Battery, initialSOC float64) (entity.IBattery, error) {
	switch c.Type {
	case config.BatteryBasic:
		return NewBasic(c, initialSOC), nil
	case config.BatteryEnhanced:
		return NewEnhanced(c, initialSOC), nil
	case config.BatteryEquivalentCircuit:
		return NewEquivalentCircuit(c, initialSOC)
	default:
		return nil, errors.Errorf("unknown battery type %q", c.Type)
	}
}

// deltas 由累计能量序列还原每个tick的能量变化
func deltas(cumulative []float64) []float64 {
	out := make([]float64, len(cumulative))
	prev := 0.0
	for i, c := range cumulative {
		out[i] = c - prev
		prev = c
	}
	return out
}

func newTrace(n int) entity.BatteryTrace {
	return entity.BatteryTrace{
		SOC:    make([]float64, n),
		SOH:    make([]float64, n),
		DOD:    make([]float64, n),
		RawSOC: make([]float64, n),

		Exhausted: make([]bool, n),
	}
}
