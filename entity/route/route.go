package route

import (
	"sort"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils"
)

// Data GIS查询结果（单圈）
// 说明：外部GIS服务、yaml文件、MongoDB文档、缓存记录都解码为该结构
type Data struct {
	Coords      []entity.Coord `yaml:"coords" bson:"coords"`
	Elevations  []float64      `yaml:"elevations" bson:"elevations"`                         // 海拔（m）
	TimeZones   []float64      `yaml:"time_zones" bson:"time_zones"`                         // UTC偏移（秒）
	SpeedLimits []float64      `yaml:"speed_limits,omitempty" bson:"speed_limits,omitempty"` // 限速（km/h），为空表示不限速
}

// Validate 检查各数组长度一致
func (d Data) Validate() error {
	n := len(d.Coords)
	if n < 2 {
		return errors.Errorf("route needs at least 2 coordinates, got %d", n)
	}
	if len(d.Elevations) != n || len(d.TimeZones) != n {
		return errors.Errorf("route arrays length mismatch: coords %d elevations %d time_zones %d",
			n, len(d.Elevations), len(d.TimeZones))
	}
	if len(d.SpeedLimits) != 0 && len(d.SpeedLimits) != n {
		return errors.Errorf("route speed_limits length %d != %d", len(d.SpeedLimits), n)
	}
	return nil
}

// Route 路线模型
// 功能：不可变的路线几何描述，支持多圈重复（tiling）
// 说明：创建后只读，可在多个并发仿真间共享
type Route struct {
	lapLength int // 单圈坐标数
	tiling    int // 圈数

	coords      []entity.Coord
	elevations  []float64
	timeZones   []float64
	speedLimits []float64

	pathDistances []float64 // 相邻点距离，首元素为0
	cumulative    []float64 // 累计距离（m）
	bearings      []float64 // 各点行驶方位角（度）
	gradients     []float64 // 各点坡度，正为上坡
}

// New 创建路线
// 功能：按tiling重复单圈数据并预计算距离、方位角、坡度
// 参数：d-单圈GIS数据，tiling-圈数（<=0视为1）
// 返回：路线指针，数据不一致时返回错误
// 算法说明：
// 1. 各数组重复tiling次
// 2. 相邻点大圆距离及累计距离
// 3. 方位角：i指向i+1，最后一个点沿用i-1指向i
// 4. 坡度：(elev[i]-elev[i-1])/distance(i-1,i)，零距离时为0
func New(d Data, tiling int) (*Route, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	tiling = max(tiling, 1)
	n := len(d.Coords)
	limits := d.SpeedLimits
	if len(limits) == 0 {
		limits = lo.Times(n, func(int) float64 { return mathutil.INF })
	}
	r := &Route{
		lapLength:   n,
		tiling:      tiling,
		coords:      tile(d.Coords, tiling),
		elevations:  tile(d.Elevations, tiling),
		timeZones:   tile(d.TimeZones, tiling),
		speedLimits: tile(limits, tiling),
	}
	r.pathDistances = PathDistances(r.coords)
	r.cumulative = utils.CumSum(r.pathDistances)

	total := len(r.coords)
	r.bearings = make([]float64, total)
	for i := 0; i < total; i++ {
		if i+1 < total {
			r.bearings[i] = Bearing(r.coords[i], r.coords[i+1])
		} else {
			r.bearings[i] = Bearing(r.coords[i-1], r.coords[i])
		}
	}
	r.gradients = make([]float64, total)
	for i := 1; i < total; i++ {
		if r.pathDistances[i] > 0 {
			r.gradients[i] = (r.elevations[i] - r.elevations[i-1]) / r.pathDistances[i]
		}
	}
	return r, nil
}

func tile[T any](s []T, n int) []T {
	out := make([]T, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return out
}

// Len 坐标总数（含重复圈）
func (r *Route) Len() int { return len(r.coords) }

// LapLength 单圈坐标数
func (r *Route) LapLength() int { return r.lapLength }

// Tiling 圈数
func (r *Route) Tiling() int { return r.tiling }

// LapIndex 把全局下标映射回单圈下标
func (r *Route) LapIndex(i int) int { return i % r.lapLength }

func (r *Route) Coords() []entity.Coord { return r.coords }
func (r *Route) Elevations() []float64 { return r.elevations }
func (r *Route) TimeZones() []float64 { return r.timeZones }
func (r *Route) PathDistances() []float64 { return r.pathDistances }
func (r *Route) CumulativeDistances() []float64 { return r.cumulative }

// Length 路线总长（m）
func (r *Route) Length() float64 { return r.cumulative[len(r.cumulative)-1] }

// HeadingAt 第i个路线点的行驶方位角（度，正北为0顺时针）
func (r *Route) HeadingAt(i int) float64 { return r.bearings[i] }

// ClosestIndices 对单调不减的累计行驶距离，求最近的路线点下标
func (r *Route) ClosestIndices(cumulativeDistances []float64) []int {
	return utils.ClosestIndices(r.cumulative, cumulativeDistances)
}

// Gradients 按下标取坡度
func (r *Route) Gradients(indices []int) []float64 {
	return utils.Gather(r.gradients, indices)
}

// SpeedLimitAt 某一位置（距起点m）的限速（km/h）
// 算法说明：二分查找累计距离最近的路线点，距离相等时取靠后的点，与ClosestIndices一致
func (r *Route) SpeedLimitAt(position float64) float64 {
	j := sort.SearchFloat64s(r.cumulative, position)
	if j == len(r.cumulative) || (j > 0 && position-r.cumulative[j-1] < r.cumulative[j]-position) {
		j--
	}
	for j < len(r.cumulative)-1 && r.cumulative[j+1] == r.cumulative[j] {
		j++
	}
	return r.speedLimits[j]
}

// Data 导出单圈数据（用于缓存）
func (r *Route) Data() Data {
	n := r.lapLength
	d := Data{
		Coords:     append([]entity.Coord(nil), r.coords[:n]...),
		Elevations: append([]float64(nil), r.elevations[:n]...),
		TimeZones:  append([]float64(nil), r.timeZones[:n]...),
	}
	if lo.SomeBy(r.speedLimits[:n], func(v float64) bool { return v < mathutil.INF }) {
		d.SpeedLimits = append([]float64(nil), r.speedLimits[:n]...)
	}
	return d
}
