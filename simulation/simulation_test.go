package simulation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/solarsim/clock"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/array"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/battery"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/lvs"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/motor"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/regen"
	"github.com/tsinghua-fib-lab/solarsim/entity/race"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"github.com/tsinghua-fib-lab/solarsim/simulation"
	"github.com/tsinghua-fib-lab/solarsim/utils"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

const (
	dt       = 10
	start    = 36000
	capacity = 5000.0 // Wh
)

var epoch = time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC).Unix()

type fixture struct {
	driving  config.TimeRange
	ghi      float64
	capacity float64
	soc      float64
}

func defaultFixture() fixture {
	return fixture{
		driving:  config.TimeRange{Begin: 0, End: race.DaySeconds},
		ghi:      800,
		capacity: capacity,
		soc:      0.8,
	}
}

func (f fixture) build(t *testing.T) *simulation.Simulation {
	t.Helper()
	d := route.Data{}
	for i := 0; i < 101; i++ {
		d.Coords = append(d.Coords, entity.Coord{Lat: 0.001 * float64(i)})
		d.Elevations = append(d.Elevations, 0)
		d.TimeZones = append(d.TimeZones, 0)
	}
	r, err := route.New(d, 1)
	require.NoError(t, err)

	rc, err := race.New(config.Competition{
		Type: config.CompetitionRoad,
		Date: "2024-07-16",
		Days: []config.DayRanges{{
			Driving:  []config.TimeRange{f.driving},
			Charging: []config.TimeRange{{Begin: 0, End: race.DaySeconds}},
		}},
	})
	require.NoError(t, err)

	station := weather.Station{Coord: d.Coords[0]}
	for h := int64(0); h <= 24; h++ {
		station.Samples = append(station.Samples, entity.WeatherSample{
			Timestamp:     epoch + h*3600,
			WindSpeed:     2,
			WindDirection: 180,
			GHI:           f.ghi,
		})
	}
	met, err := weather.New(&weather.Forecast{Provider: config.WeatherSolcast, Stations: []weather.Station{station}}, false)
	require.NoError(t, err)

	vehicle := config.Vehicle{Mass: 350, MaxAcceleration: 6, MaxDeceleration: 6}
	car := simulation.Car{
		Battery: battery.NewBasic(config.Battery{Type: config.BatteryBasic, MaxEnergyCapacity: f.capacity}, f.soc),
		Motor: motor.NewBasic(vehicle, config.Motor{
			Type:            config.MotorBasic,
			RoadFriction:    0.0055,
			TireRadius:      0.283,
			FrontalArea:     1.13,
			DragCoefficient: 0.11,
		}),
		Array: array.New(config.Array{PanelEfficiency: 0.24, PanelSize: 4}),
		Regen: regen.New(vehicle, config.Regen{Efficiency: 0.5, MinSpeed: 1, MaxPower: 10000}),
		LVS:   lvs.New(config.LVS{Voltage: 12, Current: 1.5}),
	}
	return simulation.New(r, rc, met, car, clock.New(dt, start, rc.Duration(), epoch))
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRunRejectsWrongLength(t *testing.T) {
	s := defaultFixture().build(t)
	_, err := s.Run(constant(30, s.Ticks()-1))
	assert.Error(t, err)
}

func TestIdempotent(t *testing.T) {
	s := defaultFixture().build(t)
	speeds := constant(45, s.Ticks())
	a, err := s.Run(speeds)
	require.NoError(t, err)
	b, err := s.Run(speeds)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEnergyConservation(t *testing.T) {
	s := defaultFixture().build(t)
	speeds := constant(50, s.Ticks())
	for i := 100; i < 200; i++ {
		speeds[i] = 20
	}
	tr, err := s.Run(speeds)
	require.NoError(t, err)
	delta := utils.CumSum(tr.DeltaEnergy)
	produced := utils.CumSum(tr.ProducedEnergy)
	consumed := utils.CumSum(tr.ConsumedEnergy)
	for i := range delta {
		require.InDelta(t, produced[i]-consumed[i], delta[i], 1e-6*(produced[i]+consumed[i]+1), "tick %d", i)
	}
}

func TestAllZeroSpeed(t *testing.T) {
	f := defaultFixture()
	f.ghi = 0
	s := f.build(t)
	tr, err := s.Run(make([]float64, s.Ticks()))
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.DistanceTravelled)
	assert.Equal(t, float64(s.Clock().Duration()), tr.TimeTaken)
	// 低压系统持续耗电
	assert.Less(t, tr.FinalSOC, 80.0)
	for i := 1; i < len(tr.StateOfCharge); i++ {
		require.LessOrEqual(t, tr.StateOfCharge[i], tr.StateOfCharge[i-1])
	}
}

func TestCompletesRoute(t *testing.T) {
	s := defaultFixture().build(t)
	tr, err := s.Run(constant(60, s.Ticks()))
	require.NoError(t, err)
	assert.InDelta(t, 11.12, tr.RouteLength, 0.01)
	assert.Equal(t, tr.RouteLength, tr.DistanceTravelled)
	assert.InDelta(t, tr.RouteLength/60*3600, tr.TimeTaken, dt)
	assert.Equal(t, clock.Format(start+int64(tr.TimeTaken)), tr.FinishTime)
	assert.True(t, strings.HasPrefix(tr.FinishTime, "Day 1 10:1"), tr.FinishTime)
	for _, d := range tr.Distances {
		require.LessOrEqual(t, d, tr.RouteLength)
	}
	// 路线点单调不减
	for i := 1; i < len(tr.ClosestGISIndices); i++ {
		require.GreaterOrEqual(t, tr.ClosestGISIndices[i], tr.ClosestGISIndices[i-1])
	}
	assert.Equal(t, 0, tr.MapDataIndices[0])
	// 南风，向北行驶为顺风
	assert.InDelta(t, -2, tr.WindSpeeds[0], 1e-9)
}

func TestDrivingWindow(t *testing.T) {
	f := defaultFixture()
	f.driving = config.TimeRange{Begin: 40000, End: 41000}
	s := f.build(t)
	tr, err := s.Run(constant(30, s.Ticks()))
	require.NoError(t, err)
	for i, local := range tr.LocalTimes {
		if local < 40000 || local >= 41000 {
			require.Equal(t, 0.0, tr.SpeedKmh[i], "tick %d", i)
			require.Equal(t, tr.LVSConsumedEnergy, tr.ConsumedEnergy[i], "tick %d", i)
		}
	}
	// 只允许行驶1000秒
	assert.InDelta(t, 30.0*1000/3600, tr.DistanceTravelled, 30.0*dt/3600+1e-9)
	assert.Less(t, tr.DistanceTravelled, tr.RouteLength)
}

func TestBatteryExhaustion(t *testing.T) {
	f := defaultFixture()
	f.capacity = 20
	f.ghi = 0
	f.soc = 1
	s := f.build(t)
	tr, err := s.Run(constant(60, s.Ticks()))
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.FinalSOC)
	assert.Less(t, tr.DistanceTravelled, tr.RouteLength)
	assert.Equal(t, float64(s.Clock().Duration()), tr.TimeTaken)
	for i, soc := range tr.StateOfCharge {
		if soc == 0 {
			require.Equal(t, 0.0, tr.SpeedKmh[i])
		}
		if tr.BatteryExhausted[i] {
			require.Equal(t, 0.0, tr.SpeedKmh[i], "tick %d", i)
			require.Equal(t, 0.0, soc, "tick %d", i)
		}
	}
	assert.Contains(t, tr.BatteryExhausted, true)
	v, err := tr.Field("battery_exhausted")
	require.NoError(t, err)
	assert.Equal(t, tr.BatteryExhausted, v)
}

func TestFields(t *testing.T) {
	s := defaultFixture().build(t)
	tr, err := s.Run(constant(40, s.Ticks()))
	require.NoError(t, err)

	v, err := tr.Field("distance_travelled")
	require.NoError(t, err)
	assert.Equal(t, tr.DistanceTravelled, v)

	all, err := tr.Fields("default", "gradients")
	require.NoError(t, err)
	assert.Len(t, all, len(simulation.DefaultFields)+1)

	_, err = tr.Field("temperature")
	assert.ErrorIs(t, err, simulation.ErrUnknownField)

	assert.Equal(t,
		[]string{"time_taken", "speed_kmh", "distances", "state_of_charge", "delta_energy", "solar_irradiances",
			"wind_speeds", "gis_route_elevations_at_each_tick", "cloud_covers", "distance_travelled", "final_soc"},
		simulation.ExpandFields([]string{"time_taken", "default"}))
}
