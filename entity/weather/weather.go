package weather

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/utils"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

var log = logrus.WithField("module", "weather")

// Station 一个天气站点（路线上的稀疏采样点）及其按时间排序的预报
type Station struct {
	Coord   entity.Coord           `yaml:"coord" bson:"coord"`
	Samples []entity.WeatherSample `yaml:"samples" bson:"samples"`
}

// Forecast 天气查询结果
type Forecast struct {
	Provider string    `yaml:"provider" bson:"provider"`
	Stations []Station `yaml:"stations" bson:"stations"`
}

// Validate 检查站点非空、每个站点有样本且时间严格递增
func (f *Forecast) Validate() error {
	if len(f.Stations) == 0 {
		return errors.New("weather forecast has no station")
	}
	for i, s := range f.Stations {
		if len(s.Samples) == 0 {
			return errors.Errorf("weather station %d has no sample", i)
		}
		for j := 1; j < len(s.Samples); j++ {
			if s.Samples[j].Timestamp <= s.Samples[j-1].Timestamp {
				return errors.Errorf("weather station %d samples not sorted at %d", i, j)
			}
		}
	}
	return nil
}

// Meteorology 气象模型
// 功能：把稀疏的天气样本对齐到任意仿真tick
// 说明：不可变，方法均为纯函数，可在多个并发仿真间共享
type Meteorology struct {
	forecast *Forecast
	// 单站点假设：场地赛赛道短，全路线使用0号站点的天气
	singleStation     bool
	stationCumulative []float64
	irradiance        func(s entity.WeatherSample, coord entity.Coord, unix int64, elevation float64) float64
}

// New 创建气象模型
// 参数：f-天气数据，singleStation-是否启用单站点假设（场地赛）
// 返回：气象模型；未知数据提供方返回错误
func New(f *Forecast, singleStation bool) (*Meteorology, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m := &Meteorology{
		forecast:      f,
		singleStation: singleStation,
	}
	switch f.Provider {
	case config.WeatherSolcast:
		m.irradiance = func(s entity.WeatherSample, _ entity.Coord, _ int64, _ float64) float64 {
			return math.Max(s.GHI, 0)
		}
	case config.WeatherOpenweather:
		m.irradiance = func(s entity.WeatherSample, coord entity.Coord, unix int64, elevation float64) float64 {
			return CloudAdjustedGHI(ClearSkyGHI(coord, unix, elevation), s.CloudCover)
		}
	default:
		return nil, errors.Errorf("unknown weather provider %q", f.Provider)
	}
	coords := make([]entity.Coord, len(f.Stations))
	for i, s := range f.Stations {
		coords[i] = s.Coord
	}
	m.stationCumulative = utils.CumSum(route.PathDistances(coords))
	if singleStation && len(f.Stations) > 1 {
		log.Infof("single-station policy: %d stations collapse to station 0", len(f.Stations))
	}
	return m, nil
}

// Forecast 原始数据
func (m *Meteorology) Forecast() *Forecast { return m.forecast }

// SingleStation 是否启用单站点假设
func (m *Meteorology) SingleStation() bool { return m.singleStation }

// ClosestWeatherIndices 最近天气站点下标
// 功能：与路线最近点相同的单调扫描，只是扫描对象为站点累计距离
// 说明：单站点假设下全部返回0
func (m *Meteorology) ClosestWeatherIndices(cumulativeDistances []float64) []int {
	if m.singleStation {
		return make([]int, len(cumulativeDistances))
	}
	return utils.ClosestIndices(m.stationCumulative, cumulativeDistances)
}

// ForecastAt 每个tick选择时间戳最近的天气记录
func (m *Meteorology) ForecastAt(weatherIndices []int, unixTimes []int64) []entity.WeatherSample {
	out := make([]entity.WeatherSample, len(weatherIndices))
	for i, idx := range weatherIndices {
		out[i] = nearestSample(m.forecast.Stations[idx].Samples, unixTimes[i])
	}
	return out
}

func nearestSample(samples []entity.WeatherSample, unix int64) entity.WeatherSample {
	j := sort.Search(len(samples), func(k int) bool { return samples[k].Timestamp >= unix })
	switch {
	case j == 0:
		return samples[0]
	case j == len(samples):
		return samples[j-1]
	case samples[j].Timestamp-unix < unix-samples[j-1].Timestamp:
		return samples[j]
	default:
		return samples[j-1]
	}
}

// SolarIrradiances 每个tick的GHI（W/m^2）
func (m *Meteorology) SolarIrradiances(samples []entity.WeatherSample, coords []entity.Coord, unixTimes []int64, elevations []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = m.irradiance(s, coords[i], unixTimes[i], elevations[i])
	}
	return out
}

// DirectionalWindSpeed 风速在车辆行驶方向上的投影（m/s，正为逆风）
// 风向为气象学约定（0表示从北方吹来）
func DirectionalWindSpeed(bearings, windSpeeds, windDirections []float64) []float64 {
	out := make([]float64, len(bearings))
	for i := range bearings {
		out[i] = windSpeeds[i] * cosD(windDirections[i]-bearings[i])
	}
	return out
}
