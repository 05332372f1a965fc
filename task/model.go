package task

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/simulation"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

var log = logrus.WithField("module", "task")

// ErrPrematureResult 模型运行前请求结果
var ErrPrematureResult = errors.New("results requested before the model has run")

// Model 仿真模型（对外入口）
// 功能：把粗粒度速度数组整形为tick速度，调用仿真并按返回类型给出结果
// 说明：Model持有最近一次运行的结果，非线程安全；并发评估时每个协程使用独立的Model
type Model struct {
	sim   *simulation.Simulation
	route entity.IRoute
	race  entity.IRace

	startTime          int64
	speedDt            int64
	maxAcceleration    float64 // km/h每秒
	maxDeceleration    float64 // km/h每秒
	enforceSpeedLimits bool
	returnType         string

	trace *simulation.Trace
}

// DrivingDivisions 输入速度数组应有的长度
func (m *Model) DrivingDivisions() int {
	return m.race.DrivingDivisions(m.startTime, m.speedDt)
}

// Ticks tick总数
func (m *Model) Ticks() int { return m.sim.Ticks() }

// TickSpeeds 把粗粒度速度整形为tick速度
// 参数：speeds-每个允许行驶块的速度（km/h），长度必须为DrivingDivisions()
// 返回：长度为Ticks()的tick速度
// 算法说明：
// 1. 速度依次放入允许行驶的speed_dt块，禁止行驶的块为0
// 2. 每块展开为speed_dt/simulation_dt个tick，补齐或截断到tick总数
// 3. 可选：按路线限速裁剪
// 4. 正向限制加速度，反向限制减速度
func (m *Model) TickSpeeds(speeds []float64) ([]float64, error) {
	blocks, err := PlaceSpeeds(speeds, m.race.ReducedDrivingBlocks(m.startTime, m.speedDt))
	if err != nil {
		return nil, err
	}
	dt := m.sim.Clock().DT
	ticks := ExpandSpeeds(blocks, int(m.speedDt/dt), m.sim.Ticks())
	if m.enforceSpeedLimits {
		ticks = ConstrainSpeeds(ticks, m.route, float64(dt))
	}
	ticks = LimitAcceleration(ticks, m.maxAcceleration*float64(dt))
	return LimitDeceleration(ticks, m.maxDeceleration*float64(dt)), nil
}

// Run 运行一次仿真
// 参数：speeds-每个允许行驶块的速度（km/h）
// 返回：按返回类型：time_taken为[-完赛时间]，distance_travelled为[距离]，
// distance_and_time为[距离, 完赛时间]，void为nil
func (m *Model) Run(speeds []float64) ([]float64, error) {
	ticks, err := m.TickSpeeds(speeds)
	if err != nil {
		return nil, err
	}
	trace, err := m.sim.Run(ticks)
	if err != nil {
		return nil, err
	}
	m.trace = trace
	switch m.returnType {
	case config.ReturnTimeTaken:
		return []float64{-trace.TimeTaken}, nil
	case config.ReturnDistanceTravelled:
		return []float64{trace.DistanceTravelled}, nil
	case config.ReturnDistanceAndTime:
		return []float64{trace.DistanceTravelled, trace.TimeTaken}, nil
	default:
		return nil, nil
	}
}

// Trace 最近一次运行的完整结果
func (m *Model) Trace() (*simulation.Trace, error) {
	if m.trace == nil {
		return nil, ErrPrematureResult
	}
	return m.trace, nil
}

// Results 按名称取最近一次运行的结果
// 参数：names-字段名，支持default
// 返回：与展开后的字段名顺序一致的结果
func (m *Model) Results(names ...string) ([]any, error) {
	t, err := m.Trace()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(names))
	for _, name := range simulation.ExpandFields(names) {
		v, err := t.Field(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// WasSuccessful 所需能量是否从未超过电池电量（未截断SOC始终非负）
func (m *Model) WasSuccessful() (bool, error) {
	t, err := m.Trace()
	if err != nil {
		return false, err
	}
	if len(t.RawSOC) == 0 {
		return true, nil
	}
	return lo.Min(t.RawSOC) >= 0, nil
}

// DistanceBeforeExhaustion 电量首次耗尽（SOC为0或电池放空）时的累计距离（km）
// 返回：距离，是否耗尽；未耗尽时为总行驶距离
func (m *Model) DistanceBeforeExhaustion() (float64, bool, error) {
	t, err := m.Trace()
	if err != nil {
		return 0, false, err
	}
	for i, soc := range t.StateOfCharge {
		if soc == 0 || t.BatteryExhausted[i] {
			return t.Distances[i], true, nil
		}
	}
	return t.DistanceTravelled, false, nil
}
