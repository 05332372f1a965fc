package simulation

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
)

// ErrUnknownField 请求的结果字段不存在
var ErrUnknownField = errors.New("unknown result field")

// Trace 一次仿真的全部结果
// 说明：每次Run新建，只归属于该次调用，计算完成后不再修改
type Trace struct {
	Timestamps []int64   // 每个tick距起始的秒数
	TickArray  []float64 // 每个tick的时长，tick 0为0

	SpeedKmh     []float64 // 实际车速（电量耗尽、禁止行驶时为0）
	Distances    []float64 // 累计行驶距离（km），不超过路线长度
	Distance     []float64 // 每个tick的行驶距离（km）
	TimeInMotion []float64

	ClosestGISIndices     []int
	ClosestWeatherIndices []int
	Elevations            []float64 // 每个tick所在路线点的海拔
	Bearings              []float64
	Gradients             []float64
	TimeZones             []float64
	LocalTimes            []int64 // 按当地时区换算的比赛秒

	SolarIrradiances   []float64
	WindSpeeds         []float64 // 行驶方向上的风速（m/s，正为逆风）
	AbsoluteWindSpeeds []float64
	WindDirections     []float64
	CloudCovers        []float64

	MotorConsumedEnergy []float64
	LVSConsumedEnergy   float64 // 每个tick
	ArrayProducedEnergy []float64
	RegenProducedEnergy []float64
	ConsumedEnergy      []float64
	ProducedEnergy      []float64
	DeltaEnergy         []float64

	DrivingAllowed  []bool // 逐tick是否允许行驶
	ChargingAllowed []bool // 逐tick是否允许充电

	StateOfCharge    []float64
	StateOfHealth    []float64
	DepthOfDischarge []float64
	RawSOC           []float64
	BatteryExhausted []bool // 电池放空的tick

	TimeTaken         float64 // 完赛时间（秒），未完赛为仿真时长
	FinishTime        string  // 完赛时刻的比赛时间，Day X HH:MM:SS
	DistanceTravelled float64 // km
	FinalSOC          float64 // 百分比
	RouteLength       float64 // km
	MaxRouteDistance  float64 // m
	MapDataIndices    []int   // 所在路线点发生变化的tick
	PathCoordinates   []entity.Coord
}

// DefaultFields default请求对应的字段
var DefaultFields = []string{
	"speed_kmh",
	"distances",
	"state_of_charge",
	"delta_energy",
	"solar_irradiances",
	"wind_speeds",
	"gis_route_elevations_at_each_tick",
	"cloud_covers",
	"distance_travelled",
	"time_taken",
	"final_soc",
}

func (t *Trace) fields() map[string]any {
	return map[string]any{
		"speed_kmh":                         t.SpeedKmh,
		"distances":                         t.Distances,
		"distance":                          t.Distance,
		"state_of_charge":                   t.StateOfCharge,
		"state_of_health":                   t.StateOfHealth,
		"depth_of_discharge":                t.DepthOfDischarge,
		"delta_energy":                      t.DeltaEnergy,
		"solar_irradiances":                 t.SolarIrradiances,
		"wind_speeds":                       t.WindSpeeds,
		"gis_route_elevations_at_each_tick": t.Elevations,
		"cloud_covers":                      t.CloudCovers,
		"route_length":                      t.RouteLength,
		"time_taken":                        t.TimeTaken,
		"finish_time":                       t.FinishTime,
		"tick_array":                        t.TickArray,
		"timestamps":                        t.Timestamps,
		"time_zones":                        t.TimeZones,
		"local_times":                       t.LocalTimes,
		"closest_gis_indices":               t.ClosestGISIndices,
		"closest_weather_indices":           t.ClosestWeatherIndices,
		"max_route_distance":                t.MaxRouteDistance,
		"gis_vehicle_bearings":              t.Bearings,
		"gradients":                         t.Gradients,
		"absolute_wind_speeds":              t.AbsoluteWindSpeeds,
		"wind_directions":                   t.WindDirections,
		"lvs_consumed_energy":               t.LVSConsumedEnergy,
		"motor_consumed_energy":             t.MotorConsumedEnergy,
		"array_produced_energy":             t.ArrayProducedEnergy,
		"regen_produced_energy":             t.RegenProducedEnergy,
		"driving_allowed":                   t.DrivingAllowed,
		"charging_allowed":                  t.ChargingAllowed,
		"consumed_energy":                   t.ConsumedEnergy,
		"produced_energy":                   t.ProducedEnergy,
		"time_in_motion":                    t.TimeInMotion,
		"final_soc":                         t.FinalSOC,
		"distance_travelled":                t.DistanceTravelled,
		"map_data_indices":                  t.MapDataIndices,
		"path_coordinates":                  t.PathCoordinates,
		"raw_soc":                           t.RawSOC,
		"battery_exhausted":                 t.BatteryExhausted,
	}
}

// Field 按名称取结果
func (t *Trace) Field(name string) (any, error) {
	v, ok := t.fields()[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownField, "%q", name)
	}
	return v, nil
}

// ExpandFields 展开请求中的default
// 功能：default替换为DefaultFields中未被显式请求的字段，其余字段保持请求顺序
func ExpandFields(names []string) []string {
	out := make([]string, 0, len(names)+len(DefaultFields))
	for _, name := range names {
		if name != "default" {
			out = append(out, name)
			continue
		}
		for _, d := range DefaultFields {
			if !lo.Contains(names, d) {
				out = append(out, d)
			}
		}
	}
	return out
}

// Fields 按名称批量取结果，支持default
func (t *Trace) Fields(names ...string) (map[string]any, error) {
	all := t.fields()
	out := make(map[string]any, len(names))
	for _, name := range ExpandFields(names) {
		v, ok := all[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownField, "%q", name)
		}
		out[name] = v
	}
	return out, nil
}
