package lvs

import "github.com/tsinghua-fib-lab/solarsim/utils/config"

// LVS 低压系统，恒流恒压负载
type LVS struct {
	current float64
	voltage float64
}

func New(c config.LVS) *LVS {
	return &LVS{current: c.Current, voltage: c.Voltage}
}

// ConsumedEnergy 每个tick耗能 I·V·tick（J）
func (l *LVS) ConsumedEnergy(tick float64) float64 {
	return l.current * l.voltage * tick
}
