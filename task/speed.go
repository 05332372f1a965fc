package task

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils"
)

// ErrSpeedLength 输入速度数组长度与允许行驶的块数不一致
var ErrSpeedLength = errors.New("speed array length does not match driving divisions")

// PlaceSpeeds 把粗粒度速度放入允许行驶的块
// 参数：speeds-每个允许行驶块的速度（km/h），blocks-按块压缩的行驶掩码
// 返回：与blocks等长的块速度，禁止行驶的块为0
func PlaceSpeeds(speeds []float64, blocks []bool) ([]float64, error) {
	n := lo.CountBy(blocks, func(b bool) bool { return b })
	if len(speeds) != n {
		return nil, errors.Wrapf(ErrSpeedLength, "got %d, want %d", len(speeds), n)
	}
	out := make([]float64, len(blocks))
	k := 0
	for i, b := range blocks {
		if b {
			out[i] = speeds[k]
			k++
		}
	}
	return out, nil
}

// ExpandSpeeds 块速度展开到tick粒度
// 参数：blockSpeeds-块速度，ticksPerBlock-每块的tick数，ticks-目标长度
// 返回：长度为ticks的速度数组，多余部分截断，不足部分用最后一个值补齐
func ExpandSpeeds(blockSpeeds []float64, ticksPerBlock, ticks int) []float64 {
	fine := make([]float64, 0, len(blockSpeeds)*ticksPerBlock)
	for _, v := range blockSpeeds {
		for k := 0; k < ticksPerBlock; k++ {
			fine = append(fine, v)
		}
	}
	return utils.Repeat(fine, ticks)
}

// LimitAcceleration 正向限制加速度（原地修改）
// 参数：speeds-tick速度（km/h），perTick-每个tick允许的最大增量（km/h）
// 算法说明：
// 1. 车辆从静止出发，首个元素不超过perTick
// 2. 之后每个元素相对前一元素的增量不超过perTick
// 说明：只会降低速度，指令为0的tick保持为0
func LimitAcceleration(speeds []float64, perTick float64) []float64 {
	for i := range speeds {
		if i == 0 {
			speeds[i] = min(speeds[i], perTick)
			continue
		}
		if speeds[i]-speeds[i-1] > perTick {
			speeds[i] = speeds[i-1] + perTick
		}
	}
	return speeds
}

// LimitDeceleration 反向限制减速度（原地修改）
// 参数：speeds-tick速度（km/h），perTick-每个tick允许的最大减量（km/h）
// 说明：从倒数第二个元素向前扫描到首元素，末元素不修改
func LimitDeceleration(speeds []float64, perTick float64) []float64 {
	for i := len(speeds) - 2; i >= 0; i-- {
		if speeds[i]-speeds[i+1] > perTick {
			speeds[i] = speeds[i+1] + perTick
		}
	}
	return speeds
}

// ConstrainSpeeds 按路线限速裁剪车速（原地修改）
// 参数：speeds-tick速度（km/h），route-路线，tick-步长（秒）
// 算法说明：按裁剪后的速度推进车辆位置，每个tick取当前位置的路线限速
func ConstrainSpeeds(speeds []float64, route entity.IRoute, tick float64) []float64 {
	if route.Len() == 0 {
		return speeds
	}
	position := 0.0
	for i, v := range speeds {
		speeds[i] = min(v, route.SpeedLimitAt(position))
		position += speeds[i] / 3.6 * tick
	}
	return speeds
}
