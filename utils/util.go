package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CumSum 累加和，返回新数组
func CumSum(s []float64) []float64 {
	if len(s) == 0 {
		return []float64{}
	}
	return floats.CumSum(make([]float64, len(s)), s)
}

// Diff 相邻元素差分，末尾补 appendValue（与 s 等长）
// 功能：out[i] = s[i+1] - s[i]，最后一个元素为 appendValue - s[n-1]
func Diff(s []float64, appendValue float64) []float64 {
	out := make([]float64, len(s))
	for i := range s {
		if i+1 < len(s) {
			out[i] = s[i+1] - s[i]
		} else {
			out[i] = appendValue - s[i]
		}
	}
	return out
}

// ClosestIndices 单调扫描求最近索引
// 功能：对单调不减的查询序列targets，逐个求cumulative中与其最接近的元素下标
// 参数：cumulative-单调不减的累计距离，targets-单调不减的查询距离
// 返回：与targets等长的下标数组，保证单调不减
// 算法说明：
// 1. 游标j从0开始
// 2. 对每个查询值，只要下一个位置不比当前位置更远就前移游标
// 3. 记录游标位置
// 说明：总复杂度O(len(cumulative)+len(targets))，不会对每个查询重新二分
func ClosestIndices(cumulative []float64, targets []float64) []int {
	out := make([]int, len(targets))
	if len(cumulative) == 0 {
		return out
	}
	j := 0
	last := len(cumulative) - 1
	for i, t := range targets {
		for j < last && math.Abs(cumulative[j+1]-t) <= math.Abs(cumulative[j]-t) {
			j++
		}
		out[i] = j
	}
	return out
}

// Repeat 将数组按块重复展开至指定长度
// 功能：每个元素重复 length/len(s) 次，余数用最后一个元素补齐；若 s 已足够长则截断
func Repeat(s []float64, length int) []float64 {
	if len(s) == 0 || length <= 0 {
		return make([]float64, max(length, 0))
	}
	if len(s) >= length {
		return append([]float64(nil), s[:length]...)
	}
	quotient, remainder := length/len(s), length%len(s)
	out := make([]float64, 0, length)
	for _, v := range s {
		for k := 0; k < quotient; k++ {
			out = append(out, v)
		}
	}
	tail := out[len(out)-1]
	for k := 0; k < remainder; k++ {
		out = append(out, tail)
	}
	return out
}

// Gather 按下标取值
func Gather[T any](s []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = s[idx]
	}
	return out
}

// Polyval 计算多项式，系数按最高次在前排列
func Polyval(coefficients []float64, x float64) float64 {
	y := 0.
	for _, c := range coefficients {
		y = y*x + c
	}
	return y
}
