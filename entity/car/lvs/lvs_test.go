package lvs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/lvs"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

func TestConsumedEnergy(t *testing.T) {
	l := lvs.New(config.LVS{Voltage: 12, Current: 1.5})
	assert.InDelta(t, 18, l.ConsumedEnergy(1), 1e-12)
	assert.InDelta(t, 180, l.ConsumedEnergy(10), 1e-12)
}
