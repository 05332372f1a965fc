package task_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/solarsim/cache"
	"github.com/tsinghua-fib-lab/solarsim/task"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"github.com/tsinghua-fib-lab/solarsim/utils/input"
)

var epoch = time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC).Unix()

// writeInputs 生成一条向北约11.12km的平直路线和一个逐小时的天气站点
func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	var r strings.Builder
	r.WriteString("coords:\n")
	for i := 0; i < 101; i++ {
		fmt.Fprintf(&r, "  - {lat: %.3f, lon: 0}\n", 0.001*float64(i))
	}
	r.WriteString("elevations: [" + strings.TrimSuffix(strings.Repeat("0, ", 101), ", ") + "]\n")
	r.WriteString("time_zones: [" + strings.TrimSuffix(strings.Repeat("0, ", 101), ", ") + "]\n")
	routePath := filepath.Join(dir, "route.yaml")
	require.NoError(t, os.WriteFile(routePath, []byte(r.String()), 0o644))

	var w strings.Builder
	w.WriteString("stations:\n  - coord: {lat: 0, lon: 0}\n    samples:\n")
	for h := int64(0); h <= 24; h++ {
		fmt.Fprintf(&w, "      - {timestamp: %d, wind_speed: 1, wind_direction: 0, ghi: 700}\n", epoch+h*3600)
	}
	weatherPath := filepath.Join(dir, "weather.yaml")
	require.NoError(t, os.WriteFile(weatherPath, []byte(w.String()), 0o644))
	return routePath, weatherPath
}

func testConfig(t *testing.T) config.Config {
	routePath, weatherPath := writeInputs(t)
	return config.Config{
		Car: config.Car{
			Name:    "test",
			Vehicle: config.Vehicle{Mass: 350, MaxAcceleration: 6, MaxDeceleration: 6},
			Array:   config.Array{PanelEfficiency: 0.24, PanelSize: 4},
			LVS:     config.LVS{Voltage: 12, Current: 1.5},
			Battery: config.Battery{Type: config.BatteryBasic, MaxEnergyCapacity: 5000},
			Motor: config.Motor{
				Type:            config.MotorBasic,
				RoadFriction:    0.0055,
				TireRadius:      0.283,
				FrontalArea:     1.13,
				DragCoefficient: 0.11,
			},
		},
		Environment: config.Environment{
			Competition: config.Competition{
				Type: config.CompetitionRoad,
				Date: "2024-07-16",
				Days: []config.DayRanges{{
					Driving:  []config.TimeRange{{Begin: 36000, End: 64800}},
					Charging: []config.TimeRange{{Begin: 0, End: 86400}},
				}},
			},
			Route: config.InputPath{File: routePath},
			Weather: config.Weather{
				Provider: config.WeatherSolcast,
				Period:   3600,
				Input:    config.InputPath{File: weatherPath},
			},
		},
		InitialConditions: config.InitialConditions{InitialBatterySOC: 0.9, StartTime: 36000},
		Hyperparameters: config.Hyperparameters{
			SpeedDt:      3600,
			SimulationDt: 60,
			ReturnType:   config.ReturnDistanceAndTime,
		},
	}
}

func compile(t *testing.T, c config.Config, store cache.Store) *task.Template {
	t.Helper()
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	tmpl, err := task.FromConfig(context.Background(), rc, store, input.NewSource(nil))
	require.NoError(t, err)
	return tmpl
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCompileMissingConfig(t *testing.T) {
	c := testConfig(t)
	_, err := task.NewBuilder(nil, input.NewSource(nil)).
		SetCar(c.Car).
		SetEnvironment(c.Environment).
		Compile(context.Background())
	assert.ErrorIs(t, err, task.ErrMissingConfig)
}

func TestCompileUnknownCompetition(t *testing.T) {
	c := testConfig(t)
	c.Environment.Competition.Type = "rally"
	_, err := task.NewBuilder(nil, input.NewSource(nil)).
		SetCar(c.Car).
		SetEnvironment(c.Environment).
		SetInitialConditions(c.InitialConditions).
		SetHyperparameters(c.Hyperparameters).
		Compile(context.Background())
	assert.ErrorIs(t, err, task.ErrNotImplemented)
}

func TestCompileUsesCache(t *testing.T) {
	c := testConfig(t)
	dir := t.TempDir()
	store, err := cache.NewFS(dir)
	require.NoError(t, err)
	first := compile(t, c, store)

	for _, kind := range []string{cache.KindRoute, cache.KindRace, cache.KindWeather} {
		entries, err := os.ReadDir(filepath.Join(dir, kind))
		require.NoError(t, err)
		assert.Len(t, entries, 1, kind)
	}

	// 删除输入文件后仍能从缓存编译
	require.NoError(t, os.Remove(c.Environment.Route.File))
	require.NoError(t, os.Remove(c.Environment.Weather.Input.File))
	second := compile(t, c, store)
	assert.Equal(t, first.Route().Length(), second.Route().Length())
	assert.Equal(t, first.Race().DrivingBoolean(), second.Race().DrivingBoolean())

	c.Cache.ForceRebuild.Route = true
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	_, err = task.FromConfig(context.Background(), rc, store, input.NewSource(nil))
	assert.Error(t, err)
}

func TestModelRun(t *testing.T) {
	tmpl := compile(t, testConfig(t), nil)
	// 10:00起每小时一块，18:00后禁止行驶
	require.Equal(t, 8, tmpl.DrivingDivisions())

	m, err := tmpl.NewModel()
	require.NoError(t, err)
	_, err = m.Results("default")
	assert.ErrorIs(t, err, task.ErrPrematureResult)

	_, err = m.Run(constant(40, 7))
	assert.ErrorIs(t, err, task.ErrSpeedLength)

	out, err := m.Run(constant(40, m.DrivingDivisions()))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 11.12, out[0], 0.01)
	// 约1000秒跑完11.12km
	assert.InDelta(t, 11.12/40*3600, out[1], 120)

	ok, err := m.WasSuccessful()
	require.NoError(t, err)
	assert.True(t, ok)
	d, exhausted, err := m.DistanceBeforeExhaustion()
	require.NoError(t, err)
	assert.False(t, exhausted)
	assert.Equal(t, out[0], d)

	results, err := m.Results("time_taken", "default")
	require.NoError(t, err)
	assert.Len(t, results, 11)
	assert.Equal(t, out[1], results[0])
}

func TestDistanceBeforeExhaustion(t *testing.T) {
	c := testConfig(t)
	c.Car.Battery.MaxEnergyCapacity = 50
	c.Car.Array.PanelEfficiency = 0
	m, err := compile(t, c, nil).NewModel()
	require.NoError(t, err)
	out, err := m.Run(constant(40, m.DrivingDivisions()))
	require.NoError(t, err)

	d, exhausted, err := m.DistanceBeforeExhaustion()
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, out[0]+1e-9)
	assert.Less(t, out[0], 11.12)

	trace, err := m.Trace()
	require.NoError(t, err)
	assert.Contains(t, trace.BatteryExhausted, true)
	ok, err := m.WasSuccessful()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTickSpeeds(t *testing.T) {
	tmpl := compile(t, testConfig(t), nil)
	m, err := tmpl.NewModel()
	require.NoError(t, err)
	speeds := []float64{30, 60, 30, 60, 30, 60, 30, 60}
	ticks, err := m.TickSpeeds(speeds)
	require.NoError(t, err)
	require.Len(t, ticks, m.Ticks())
	// 起步受加速度限制：每分钟最多6*60km/h
	assert.Equal(t, 30.0, ticks[0])
	// 8个小时块之后全部为0
	for i := 8 * 60; i < len(ticks)-1; i++ {
		require.Equal(t, 0.0, ticks[i], "tick %d", i)
	}
	assert.Equal(t, 60.0, ticks[60+1])
}

func TestReturnTypes(t *testing.T) {
	for _, tc := range []struct {
		returnType string
		length     int
	}{
		{config.ReturnTimeTaken, 1},
		{config.ReturnDistanceTravelled, 1},
		{config.ReturnDistanceAndTime, 2},
		{config.ReturnVoid, 0},
	} {
		c := testConfig(t)
		c.Hyperparameters.ReturnType = tc.returnType
		m, err := compile(t, c, nil).NewModel()
		require.NoError(t, err)
		out, err := m.Run(constant(40, m.DrivingDivisions()))
		require.NoError(t, err)
		assert.Len(t, out, tc.length, tc.returnType)
		if tc.returnType == config.ReturnTimeTaken {
			assert.Less(t, out[0], 0.0)
		}
	}
}
