package input

import (
	"os"

	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"gopkg.in/yaml.v2"
)

// loadYAML 严格模式读取yaml文件，未知字段报错
func loadYAML(path string, out any) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := yaml.UnmarshalStrict(file, out); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

// checkPeriod 样本间隔与配置的预报粒度不一致时告警
func checkPeriod(f *weather.Forecast, period int64) {
	if period <= 0 {
		return
	}
	for i, s := range f.Stations {
		for j := 1; j < len(s.Samples); j++ {
			if gap := s.Samples[j].Timestamp - s.Samples[j-1].Timestamp; gap != period {
				log.Warnf("weather station %d: sample gap %ds at %d, expected period %ds", i, gap, j, period)
				break
			}
		}
	}
}
