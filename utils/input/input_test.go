package input_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"github.com/tsinghua-fib-lab/solarsim/utils/input"
)

const routeYAML = `coords:
  - {lat: 43.0, lon: -89.0}
  - {lat: 43.1, lon: -89.1}
elevations: [260, 265]
time_zones: [-18000, -18000]
`

const weatherYAML = `provider: solcast
stations:
  - coord: {lat: 43.0, lon: -89.0}
    samples:
      - {timestamp: 1721120400, wind_speed: 3, wind_direction: 270, ghi: 500}
      - {timestamp: 1721124000, wind_speed: 4, wind_direction: 260, ghi: 650}
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRouteFromFile(t *testing.T) {
	s := input.NewSource(nil)
	d, err := s.Route(context.Background(), config.InputPath{File: write(t, "route.yaml", routeYAML)})
	require.NoError(t, err)
	assert.Len(t, d.Coords, 2)
	assert.Equal(t, []float64{260, 265}, d.Elevations)

	_, err = s.Route(context.Background(), config.InputPath{File: write(t, "bad.yaml", routeYAML+"extra: 1\n")})
	assert.Error(t, err)

	_, err = s.Route(context.Background(), config.InputPath{DB: "solar", Col: "route"})
	assert.ErrorIs(t, err, input.ErrNoSource)
}

func TestForecastFromFile(t *testing.T) {
	s := input.NewSource(nil)
	path := write(t, "weather.yaml", weatherYAML)
	f, err := s.Forecast(context.Background(), config.Weather{
		Provider: config.WeatherSolcast,
		Period:   3600,
		Input:    config.InputPath{File: path},
	})
	require.NoError(t, err)
	require.Len(t, f.Stations, 1)
	assert.Equal(t, 650.0, f.Stations[0].Samples[1].GHI)

	_, err = s.Forecast(context.Background(), config.Weather{
		Provider: config.WeatherOpenweather,
		Input:    config.InputPath{File: path},
	})
	assert.Error(t, err)
}
