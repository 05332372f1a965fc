package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"git.fiblab.net/general/common/v2/protoutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/solarsim/cache"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/race"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func routeData() route.Data {
	return route.Data{
		Coords:      []entity.Coord{{Lat: 43.1, Lon: -89.4}, {Lat: 43.2, Lon: -89.5}, {Lat: 43.3, Lon: -89.6}},
		Elevations:  []float64{260, 270.5, 255},
		TimeZones:   []float64{-18000, -18000, -21600},
		SpeedLimits: []float64{80, 100, 60},
	}
}

func TestKey(t *testing.T) {
	a, err := cache.Key(cache.KindRoute, config.InputPath{File: "route.yaml"})
	require.NoError(t, err)
	b, err := cache.Key(cache.KindRoute, config.InputPath{File: "route.yaml"})
	require.NoError(t, err)
	c, err := cache.Key(cache.KindRoute, config.InputPath{File: "other.yaml"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("route/")+12)
	assert.Equal(t, "route/", a[:6])
}

func TestRouteCodec(t *testing.T) {
	var codec cache.RouteCodec
	d := routeData()
	got, err := codec.Decode(codec.Encode(d))
	require.NoError(t, err)
	assert.Equal(t, d, got)

	d.SpeedLimits = nil
	got, err = codec.Decode(codec.Encode(d))
	require.NoError(t, err)
	assert.Nil(t, got.SpeedLimits)
}

func TestRaceCodec(t *testing.T) {
	r, err := race.New(config.Competition{
		Type:   config.CompetitionTrack,
		Date:   "2024-07-16",
		Tiling: 40,
		Days: []config.DayRanges{
			{Driving: []config.TimeRange{{Begin: 36000, End: 64800}}, Charging: []config.TimeRange{{Begin: 25200, End: 72000}}},
			{Driving: []config.TimeRange{{Begin: 32400, End: 61200}}},
		},
		CorneringRadii: []float64{30, 45.5},
	})
	require.NoError(t, err)
	var codec cache.RaceCodec
	got, err := codec.Decode(codec.Encode(r))
	require.NoError(t, err)
	assert.Equal(t, r.Type(), got.Type())
	assert.True(t, r.Date().Equal(got.Date()))
	assert.Equal(t, r.Tiling(), got.Tiling())
	assert.Equal(t, r.Days(), got.Days())
	assert.Equal(t, r.CorneringRadii(), got.CorneringRadii())
	assert.Equal(t, r.DrivingBoolean(), got.DrivingBoolean())
	assert.Equal(t, r.ChargingBoolean(), got.ChargingBoolean())
	assert.Equal(t, r.DrivingDivisions(0, 3600), got.DrivingDivisions(0, 3600))
}

func TestForecastCodec(t *testing.T) {
	f := &weather.Forecast{
		Provider: config.WeatherOpenweather,
		Stations: []weather.Station{
			{Coord: entity.Coord{Lat: 1, Lon: 2}, Samples: []entity.WeatherSample{
				{Timestamp: 1721120400, WindSpeed: 3.5, WindDirection: 270, CloudCover: 40},
				{Timestamp: 1721124000, WindSpeed: 4, WindDirection: 260, CloudCover: 55},
			}},
		},
	}
	var codec cache.ForecastCodec
	got, err := codec.Decode(codec.Encode(f))
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestCorrupted(t *testing.T) {
	var codec cache.RouteCodec
	data := codec.Encode(routeData())
	_, err := codec.Decode(data[:len(data)-3])
	assert.ErrorIs(t, err, cache.ErrCorrupted)

	_, err = cache.RaceCodec{}.Decode([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, cache.ErrCorrupted)
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	s, err := cache.NewFS(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	_, err = s.Get(ctx, "route/abc")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, s.Put(ctx, "route/abc", []byte("x")))
	data, err := s.Get(ctx, "route/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = cache.NewFS(file)
	assert.Error(t, err)
}

func TestFSStoreFileFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := cache.NewFS(dir)
	require.NoError(t, err)

	// 文件为BytesValue消息
	require.NoError(t, s.Put(ctx, "race/x", []byte{1, 2, 3}))
	var v wrapperspb.BytesValue
	require.NoError(t, protoutil.UnmarshalFromFile(&v, filepath.Join(dir, "race", "x.pb")))
	assert.Equal(t, []byte{1, 2, 3}, v.GetValue())
	assert.NoFileExists(t, filepath.Join(dir, "race", "x.pb.tmp"))

	// 空值也能往返
	require.NoError(t, s.Put(ctx, "race/empty", nil))
	data, err := s.Get(ctx, "race/empty")
	require.NoError(t, err)
	assert.Empty(t, data)

	// 被外部改写的文件
	require.NoError(t, os.WriteFile(filepath.Join(dir, "race", "x.pb"), []byte{0xff}, 0o644))
	_, err = s.Get(ctx, "race/x")
	assert.ErrorIs(t, err, cache.ErrCorrupted)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := cache.NewFS(dir)
	require.NoError(t, err)
	var codec cache.RouteCodec
	builds := 0
	build := func() (route.Data, error) {
		builds++
		return routeData(), nil
	}

	for i := 0; i < 3; i++ {
		d, err := cache.Load(ctx, s, "route/key", codec, false, build)
		require.NoError(t, err)
		assert.Equal(t, routeData(), d)
	}
	assert.Equal(t, 1, builds)

	_, err = cache.Load(ctx, s, "route/key", codec, true, build)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)

	// 损坏的缓存报错，强制重建后恢复
	require.NoError(t, s.Put(ctx, "route/key", []byte{0x0a}))
	_, err = cache.Load(ctx, s, "route/key", codec, false, build)
	assert.ErrorIs(t, err, cache.ErrCorrupted)
	assert.Equal(t, 2, builds)
	_, err = cache.Load(ctx, s, "route/key", codec, true, build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
	_, err = cache.Load(ctx, s, "route/key", codec, false, build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)

	// 文件本身不是合法的缓存记录
	require.NoError(t, os.WriteFile(filepath.Join(dir, "route", "key.pb"), []byte{0xff}, 0o644))
	_, err = cache.Load(ctx, s, "route/key", codec, false, build)
	assert.ErrorIs(t, err, cache.ErrCorrupted)
	assert.Contains(t, err.Error(), "force_rebuild")
	assert.Equal(t, 3, builds)

	// 不使用缓存
	_, err = cache.Load(ctx, nil, "route/key", codec, false, build)
	require.NoError(t, err)
	assert.Equal(t, 4, builds)

	boom := errors.New("boom")
	_, err = cache.Load(ctx, s, "route/other", codec, false, func() (route.Data, error) { return route.Data{}, boom })
	assert.ErrorIs(t, err, boom)
}
