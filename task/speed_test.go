package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/task"
	"golang.org/x/exp/rand"
)

func TestPlaceSpeeds(t *testing.T) {
	out, err := task.PlaceSpeeds([]float64{10, 20, 30}, []bool{true, false, true, true, false})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0, 20, 30, 0}, out)

	_, err = task.PlaceSpeeds([]float64{10, 20}, []bool{true, false, true, true})
	assert.ErrorIs(t, err, task.ErrSpeedLength)
}

func TestExpandSpeeds(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2, 2}, task.ExpandSpeeds([]float64{1, 2}, 3, 7))
	assert.Equal(t, []float64{1, 1, 1, 2}, task.ExpandSpeeds([]float64{1, 2}, 3, 4))
}

func TestLimitAcceleration(t *testing.T) {
	assert.Equal(t, []float64{6, 12, 18, 0, 6, 10}, task.LimitAcceleration([]float64{50, 50, 50, 0, 50, 10}, 6))
}

func TestLimitDeceleration(t *testing.T) {
	// 末元素不变
	assert.Equal(t, []float64{24, 18, 12, 6, 0, 50}, task.LimitDeceleration([]float64{50, 50, 50, 50, 0, 50}, 6))
	// 首元素到第二个元素的减速同样受限
	assert.Equal(t, []float64{5, 1, 1}, task.LimitDeceleration(task.LimitAcceleration([]float64{50, 1, 1}, 6), 4))
}

func TestLimitersProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const accel, decel = 6.0, 4.0
	for trial := 0; trial < 200; trial++ {
		n := 2 + r.Intn(50)
		original := make([]float64, n)
		for i := range original {
			if r.Float64() < 0.2 {
				continue
			}
			original[i] = 100 * r.Float64()
		}
		speeds := append([]float64(nil), original...)
		speeds = task.LimitDeceleration(task.LimitAcceleration(speeds, accel), decel)

		require.LessOrEqual(t, speeds[0], accel)
		for i := range speeds {
			require.LessOrEqual(t, speeds[i], original[i]+1e-9)
			require.GreaterOrEqual(t, speeds[i], 0.0)
			if original[i] == 0 {
				require.Equal(t, 0.0, speeds[i])
			}
			if i > 0 {
				require.LessOrEqual(t, speeds[i]-speeds[i-1], accel+1e-9, "trial %d tick %d", trial, i)
			}
			if i >= 1 {
				require.LessOrEqual(t, speeds[i-1]-speeds[i], decel+1e-9, "trial %d tick %d", trial, i)
			}
		}
	}
}

func TestConstrainSpeeds(t *testing.T) {
	d := route.Data{}
	for i := 0; i < 11; i++ {
		d.Coords = append(d.Coords, entity.Coord{Lat: 0.001 * float64(i)})
		d.Elevations = append(d.Elevations, 0)
		d.TimeZones = append(d.TimeZones, 0)
		limit := 30.0
		if i >= 5 {
			limit = 60
		}
		d.SpeedLimits = append(d.SpeedLimits, limit)
	}
	r, err := route.New(d, 1)
	require.NoError(t, err)

	speeds := make([]float64, 30)
	for i := range speeds {
		speeds[i] = 100
	}
	speeds[3] = 20
	out := task.ConstrainSpeeds(speeds, r, 10)
	assert.Equal(t, 30.0, out[0])
	assert.Equal(t, 20.0, out[3])
	assert.Equal(t, 60.0, out[len(out)-1])
	for _, v := range out {
		assert.LessOrEqual(t, v, 60.0)
	}
}
