package simulation

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/solarsim/clock"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"github.com/tsinghua-fib-lab/solarsim/utils"
)

var log = logrus.WithField("module", "simulation")

// SOC绝对值低于该阈值视为0
const socEpsilon = 1e-3

// Car 车辆各子系统模型
type Car struct {
	Battery entity.IBattery
	Motor   entity.IMotor
	Array   entity.IArray
	Regen   entity.IRegen
	LVS     entity.ILVS
}

// Simulation 逐tick能量平衡仿真
// 功能：把tick级车速映射到路线、天气，计算各子系统能量与电池SOC，得到行驶距离与完赛时间
// 说明：路线、比赛、天气与车辆模型只读共享；时钟归属于本实例，不可在并发仿真间共享
type Simulation struct {
	route       entity.IRoute
	race        entity.IRace
	meteorology entity.IMeteorology
	car         Car
	clock       *clock.Clock
}

// New 创建仿真
func New(route entity.IRoute, race entity.IRace, meteorology entity.IMeteorology, car Car, clk *clock.Clock) *Simulation {
	return &Simulation{
		route:       route,
		race:        race,
		meteorology: meteorology,
		car:         car,
		clock:       clk,
	}
}

// Ticks tick总数，即Run需要的车速数组长度
func (s *Simulation) Ticks() int { return s.clock.Ticks() }

// Clock 仿真时钟
func (s *Simulation) Clock() *clock.Clock { return s.clock }

// Run 运行一次仿真
// 参数：speedKmh-每个tick的目标车速（km/h），长度必须为Ticks()
// 返回：新建的仿真结果
// 算法说明：
// 1. 由目标车速求理论累计距离，单调扫描得到每个tick的路线点与天气站点
// 2. 按路线点时区换算当地比赛秒，查询行驶/充电掩码；按UTC时间查询天气
// 3. 并发计算电机、光伏、再生制动、低压系统能量
// 4. 禁止行驶时电机能耗置0，禁止充电时光伏发电置0，ΔE = 产能 - 耗能
// 5. 累计ΔE一次性输入电池模型得到SOC
// 6. SOC为0、电池放空或禁止行驶的tick车速置0，累计距离截断到路线长度
// 7. 首次到达路线终点的时刻为完赛时间，否则为仿真时长；FinishTime为其比赛时间表示
func (s *Simulation) Run(speedKmh []float64) (*Trace, error) {
	n := s.clock.Ticks()
	if len(speedKmh) != n {
		return nil, errors.Errorf("speed array has %d ticks, simulation needs %d", len(speedKmh), n)
	}
	dt := float64(s.clock.DT)
	t := &Trace{Timestamps: s.clock.Timestamps()}
	t.TickArray = make([]float64, n)
	for i := 1; i < n; i++ {
		t.TickArray[i] = float64(t.Timestamps[i] - t.Timestamps[i-1])
	}

	// 理论位置
	theoretical := make([]float64, n)
	for i, v := range speedKmh {
		theoretical[i] = t.TickArray[i] * v / 3.6
	}
	cumulative := utils.CumSum(theoretical)
	t.ClosestGISIndices = s.route.ClosestIndices(cumulative)
	t.ClosestWeatherIndices = s.meteorology.ClosestWeatherIndices(cumulative)

	t.MaxRouteDistance = s.route.Length()
	t.RouteLength = t.MaxRouteDistance / 1000
	t.PathCoordinates = s.route.Coords()
	t.Elevations = utils.Gather(s.route.Elevations(), t.ClosestGISIndices)
	t.Bearings = lo.Map(t.ClosestGISIndices, func(j, _ int) float64 { return s.route.HeadingAt(j) })
	t.Gradients = s.route.Gradients(t.ClosestGISIndices)
	t.TimeZones = utils.Gather(s.route.TimeZones(), t.ClosestGISIndices)
	coords := utils.Gather(s.route.Coords(), t.ClosestGISIndices)

	// 时间
	tz0 := s.route.TimeZones()[0]
	t.LocalTimes = make([]int64, n)
	unix := make([]int64, n)
	t.DrivingAllowed = make([]bool, n)
	t.ChargingAllowed = make([]bool, n)
	for i, ts := range t.Timestamps {
		t.LocalTimes[i] = s.clock.RaceSecond(ts, int64(t.TimeZones[i]-tz0))
		unix[i] = s.clock.Unix(ts)
		t.DrivingAllowed[i] = s.race.DrivingAllowed(t.LocalTimes[i])
		t.ChargingAllowed[i] = s.race.ChargingAllowed(t.LocalTimes[i])
	}

	// 天气
	samples := s.meteorology.ForecastAt(t.ClosestWeatherIndices, unix)
	t.AbsoluteWindSpeeds = lo.Map(samples, func(w entity.WeatherSample, _ int) float64 { return w.WindSpeed })
	t.WindDirections = lo.Map(samples, func(w entity.WeatherSample, _ int) float64 { return w.WindDirection })
	t.CloudCovers = lo.Map(samples, func(w entity.WeatherSample, _ int) float64 { return w.CloudCover })
	t.WindSpeeds = weather.DirectionalWindSpeed(t.Bearings, t.AbsoluteWindSpeeds, t.WindDirections)
	t.SolarIrradiances = s.meteorology.SolarIrradiances(samples, coords, unix, t.Elevations)

	// 能量，各子系统互不依赖
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		t.MotorConsumedEnergy = s.car.Motor.EnergyIn(speedKmh, t.Gradients, t.WindSpeeds, t.ClosestGISIndices, dt)
	}()
	go func() {
		defer wg.Done()
		t.ArrayProducedEnergy = s.car.Array.ProducedEnergy(t.SolarIrradiances, dt)
	}()
	go func() {
		defer wg.Done()
		t.RegenProducedEnergy = s.car.Regen.ProducedEnergy(speedKmh, t.Elevations, dt)
	}()
	t.LVSConsumedEnergy = s.car.LVS.ConsumedEnergy(dt)
	wg.Wait()

	t.ConsumedEnergy = make([]float64, n)
	t.ProducedEnergy = make([]float64, n)
	t.DeltaEnergy = make([]float64, n)
	for i := range t.DeltaEnergy {
		if !t.ChargingAllowed[i] {
			t.ArrayProducedEnergy[i] = 0
		}
		t.ConsumedEnergy[i] = t.LVSConsumedEnergy
		if t.DrivingAllowed[i] {
			t.ConsumedEnergy[i] += t.MotorConsumedEnergy[i]
		}
		t.ProducedEnergy[i] = t.ArrayProducedEnergy[i] + t.RegenProducedEnergy[i]
		t.DeltaEnergy[i] = t.ProducedEnergy[i] - t.ConsumedEnergy[i]
	}

	// 电池
	battery := s.car.Battery.EnergyBalance(utils.CumSum(t.DeltaEnergy), dt)
	t.StateOfCharge = battery.SOC
	for i, soc := range t.StateOfCharge {
		if math.Abs(soc) < socEpsilon {
			t.StateOfCharge[i] = 0
		}
	}
	t.StateOfHealth = battery.SOH
	t.DepthOfDischarge = battery.DOD
	t.RawSOC = battery.RawSOC
	t.BatteryExhausted = battery.Exhausted
	if n > 0 {
		t.FinalSOC = t.StateOfCharge[n-1] * 100
	}

	// 实际行驶
	t.SpeedKmh = make([]float64, n)
	t.TimeInMotion = make([]float64, n)
	t.Distance = make([]float64, n)
	for i, v := range speedKmh {
		if !t.DrivingAllowed[i] || t.StateOfCharge[i] == 0 || t.BatteryExhausted[i] {
			continue
		}
		t.SpeedKmh[i] = v
		if v != 0 {
			t.TimeInMotion[i] = t.TickArray[i]
		}
		t.Distance[i] = v * t.TimeInMotion[i] / 3600
	}
	t.Distances = utils.CumSum(t.Distance)
	for i, d := range t.Distances {
		t.Distances[i] = lo.Clamp(d, 0, t.RouteLength)
	}
	t.MapDataIndices = mapDataIndices(t.ClosestGISIndices)

	t.TimeTaken = float64(s.clock.Duration())
	if n > 0 {
		t.DistanceTravelled = t.Distances[n-1]
		if t.DistanceTravelled >= t.RouteLength {
			_, k, _ := lo.FindIndexOf(t.Distances, func(d float64) bool { return d >= t.RouteLength })
			t.TimeTaken = float64(t.Timestamps[k])
		}
	}
	t.FinishTime = s.clock.FormatTimestamp(int64(t.TimeTaken))
	log.Debugf("simulated %d ticks: %.3f km, final soc %.2f%%, time taken %.0fs (%s)",
		n, t.DistanceTravelled, t.FinalSOC, t.TimeTaken, t.FinishTime)
	return t, nil
}

// mapDataIndices 路线点发生变化的tick（首个tick总包含在内）
func mapDataIndices(gisIndices []int) []int {
	if len(gisIndices) == 0 {
		return []int{}
	}
	out := []int{0}
	for i := 1; i < len(gisIndices); i++ {
		if gisIndices[i] != gisIndices[i-1] {
			out = append(out, i)
		}
	}
	return out
}
