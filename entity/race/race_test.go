package race_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/solarsim/entity/race"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

func twoDayTrack() config.Competition {
	day := config.DayRanges{
		Driving:  []config.TimeRange{{Begin: 36000, End: 64800}},
		Charging: []config.TimeRange{{Begin: 25200, End: 72000}},
	}
	return config.Competition{
		Type:   config.CompetitionTrack,
		Date:   "2024-07-16",
		Tiling: 4,
		Days:   []config.DayRanges{day, day},
	}
}

func TestMasks(t *testing.T) {
	r, err := race.New(twoDayTrack())
	require.NoError(t, err)
	assert.Equal(t, int64(2*86400), r.Duration())
	assert.Len(t, r.DrivingBoolean(), 2*86400)
	assert.False(t, r.DrivingAllowed(35999))
	assert.True(t, r.DrivingAllowed(36000))
	assert.True(t, r.DrivingAllowed(64799))
	assert.False(t, r.DrivingAllowed(64800))
	assert.True(t, r.DrivingAllowed(86400+40000))
	assert.False(t, r.DrivingAllowed(-1))
	assert.False(t, r.DrivingAllowed(3*86400))
	assert.True(t, r.ChargingAllowed(25200))
	assert.False(t, r.ChargingAllowed(72000))
	assert.Equal(t, 4, r.Tiling())
	assert.True(t, r.IsTrack())
}

func TestRoadIgnoresTiling(t *testing.T) {
	c := twoDayTrack()
	c.Type = config.CompetitionRoad
	r, err := race.New(c)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Tiling())
	assert.False(t, r.IsTrack())
}

func TestUnknownTypeNotImplemented(t *testing.T) {
	c := twoDayTrack()
	c.Type = "hillclimb"
	_, err := race.New(c)
	assert.True(t, errors.Is(err, race.ErrNotImplemented))
}

func TestDrivingDivisions(t *testing.T) {
	r, err := race.New(twoDayTrack())
	require.NoError(t, err)
	// 每天 10:00-18:00 共8小时
	assert.Equal(t, 16, r.DrivingDivisions(0, 3600))
	assert.Equal(t, 16*6, r.DrivingDivisions(0, 600))
	// 从10:30开始按小时分块，两天各只有7个完整块
	assert.Equal(t, 7+7, r.DrivingDivisions(37800, 3600))
	blocks := r.ReducedDrivingBlocks(36000, 3600)
	assert.True(t, blocks[0])
	assert.False(t, blocks[8])
}

func TestRestore(t *testing.T) {
	r, err := race.New(twoDayTrack())
	require.NoError(t, err)
	back, err := race.Restore(r.Type(), r.Date(), r.Tiling(), r.Days(), r.CorneringRadii(), r.DrivingBoolean(), r.ChargingBoolean())
	require.NoError(t, err)
	assert.Equal(t, r.DrivingDivisions(0, 600), back.DrivingDivisions(0, 600))

	_, err = race.Restore(r.Type(), r.Date(), r.Tiling(), r.Days(), nil, r.DrivingBoolean()[:10], r.ChargingBoolean())
	assert.Error(t, err)
}
