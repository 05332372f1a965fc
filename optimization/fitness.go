package optimization

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/task"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

// Fitness 以仿真模型构造目标函数
// 参数：tmpl-编译完成的模型模板，objective-优化目标
// 返回：目标函数，每次调用新建独立的Model
// 说明：distance目标为行驶距离，途中电量耗尽记为0；time目标为完赛时间的相反数
func Fitness(tmpl *task.Template, objective string) (Objective, error) {
	switch objective {
	case config.ObjectiveDistance, config.ObjectiveTime:
	default:
		return nil, errors.Wrapf(config.ErrInvalid, "optimization objective %q", objective)
	}
	return func(genes []float64) (float64, error) {
		m, err := tmpl.NewModel()
		if err != nil {
			return 0, err
		}
		if _, err := m.Run(genes); err != nil {
			return 0, err
		}
		t, err := m.Trace()
		if err != nil {
			return 0, err
		}
		if objective == config.ObjectiveTime {
			return -t.TimeTaken, nil
		}
		if lo.Contains(t.StateOfCharge, 0) || lo.Contains(t.BatteryExhausted, true) {
			return 0, nil
		}
		return t.DistanceTravelled, nil
	}, nil
}

// Optimize 对模板的速度数组做差分进化优化
// 参数：tmpl-模型模板，cfg-优化器配置，warmStart-热启动解（可为nil），onGeneration-每代回调（可为nil）
func Optimize(tmpl *task.Template, cfg config.Optimization, warmStart []float64, onGeneration func(Progress)) (*Result, error) {
	fitness, err := Fitness(tmpl, cfg.Objective)
	if err != nil {
		return nil, err
	}
	return New(cfg, tmpl.DrivingDivisions(), fitness).
		SetWarmStart(warmStart).
		OnGeneration(onGeneration).
		Run()
}
