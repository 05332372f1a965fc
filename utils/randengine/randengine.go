// 随机数引擎，包装了golang.org/x/exp/rand，提供优化器使用的随机数生成方法
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数生成功能
// 说明：基于golang.org/x/exp/rand库，非线程安全
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true（非线程安全）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 在[low, high)上均匀采样（非线程安全）
func (e *Engine) Uniform(low, high float64) float64 {
	return low + (high-low)*e.Float64()
}

// Distinct 从[0, n)中无放回地选出k个不等于exclude的下标（非线程安全）
// 参数：n-范围上限，k-数量，exclude-排除的下标（小于0表示不排除）
// 说明：调用方保证可选下标数不少于k
func (e *Engine) Distinct(n, k, exclude int) []int {
	out := make([]int, 0, k)
	for _, i := range e.Perm(n) {
		if i == exclude {
			continue
		}
		out = append(out, i)
		if len(out) == k {
			break
		}
	}
	return out
}
