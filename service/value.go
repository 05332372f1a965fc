package service

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"google.golang.org/protobuf/types/known/structpb"
)

// floatList 读取数值数组，缺省为nil
func floatList(v *structpb.Value) ([]float64, error) {
	if v == nil {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, errors.New("must be a list of numbers")
	}
	out := make([]float64, len(list.GetValues()))
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, errors.Errorf("element %d is not a number", i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

// stringList 读取字符串数组，缺省为nil
func stringList(v *structpb.Value) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, errors.New("must be a list of strings")
	}
	out := make([]string, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.Errorf("element %d is not a string", i)
		}
		out[i] = s.StringValue
	}
	return out, nil
}

// finite 非有限值（失败候选的-Inf适应度）转为null，JSON无法表示Inf/NaN
func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

// plain 将仿真结果字段转为structpb.NewValue可接受的类型
func plain(v any) any {
	switch x := v.(type) {
	case []float64:
		return lo.ToAnySlice(x)
	case []int:
		return lo.ToAnySlice(x)
	case []int64:
		return lo.ToAnySlice(x)
	case []bool:
		return lo.ToAnySlice(x)
	case []entity.Coord:
		return lo.Map(x, func(c entity.Coord, _ int) any {
			return map[string]any{"lat": c.Lat, "lon": c.Lon}
		})
	default:
		return v
	}
}
