package race

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

// ErrNotImplemented 不支持的比赛类型
var ErrNotImplemented = errors.New("competition type not implemented")

// 一天的秒数
const DaySeconds = 24 * 60 * 60

// Race 比赛时间规则模型
// 功能：保存每天的行驶/充电时间窗，预先计算整场比赛逐秒的布尔掩码
// 说明：创建后只读，可在多个并发仿真间共享
type Race struct {
	raceType       string
	date           time.Time
	tiling         int
	days           []config.DayRanges
	corneringRadii []float64

	duration int64  // 比赛总时长（秒）
	driving  []bool // 逐秒是否允许行驶
	charging []bool // 逐秒是否允许充电
}

// New 根据比赛配置创建Race
// 功能：校验比赛类型并生成逐秒掩码
// 参数：c-比赛配置
// 返回：Race指针；未知类型返回ErrNotImplemented
// 算法说明：
// 1. track保留tiling，road的tiling固定为1
// 2. 总时长 = 天数 * 86400
// 3. 对第d天每个区间[begin, end)，把 d*86400+begin 到 d*86400+end 置为true
func New(c config.Competition) (*Race, error) {
	tiling := c.Tiling
	switch c.Type {
	case config.CompetitionTrack:
		tiling = max(tiling, 1)
	case config.CompetitionRoad:
		tiling = 1
	default:
		return nil, errors.Wrapf(ErrNotImplemented, "%q", c.Type)
	}
	date, err := c.StartDate()
	if err != nil {
		return nil, err
	}
	r := &Race{
		raceType:       c.Type,
		date:           date,
		tiling:         tiling,
		days:           c.Days,
		corneringRadii: c.CorneringRadii,
		duration:       int64(len(c.Days)) * DaySeconds,
	}
	r.driving = makeTimeBoolean(c.Days, func(d config.DayRanges) []config.TimeRange { return d.Driving })
	r.charging = makeTimeBoolean(c.Days, func(d config.DayRanges) []config.TimeRange { return d.Charging })
	return r, nil
}

func makeTimeBoolean(days []config.DayRanges, pick func(config.DayRanges) []config.TimeRange) []bool {
	out := make([]bool, int64(len(days))*DaySeconds)
	for d, day := range days {
		offset := int64(d) * DaySeconds
		for _, tr := range pick(day) {
			for s := tr.Begin; s < tr.End; s++ {
				out[offset+s] = true
			}
		}
	}
	return out
}

func (r *Race) Type() string { return r.raceType }

// IsTrack 是否为场地赛
func (r *Race) IsTrack() bool { return r.raceType == config.CompetitionTrack }

func (r *Race) Tiling() int { return r.tiling }

// Date 第一天日期（UTC零点）
func (r *Race) Date() time.Time { return r.date }

// Days 每天的时间规则
func (r *Race) Days() []config.DayRanges { return r.days }

// Duration 比赛总时长（秒）
func (r *Race) Duration() int64 { return r.duration }

// CorneringRadii 单圈各路线点的转弯半径（m）
func (r *Race) CorneringRadii() []float64 { return r.corneringRadii }

// DrivingBoolean 逐秒行驶掩码
func (r *Race) DrivingBoolean() []bool { return r.driving }

// ChargingBoolean 逐秒充电掩码
func (r *Race) ChargingBoolean() []bool { return r.charging }

func at(mask []bool, second int64) bool {
	if second < 0 || second >= int64(len(mask)) {
		return false
	}
	return mask[second]
}

// DrivingAllowed 比赛开始后第second秒是否允许行驶，越界视为不允许
func (r *Race) DrivingAllowed(second int64) bool { return at(r.driving, second) }

// ChargingAllowed 比赛开始后第second秒是否允许充电，越界视为不允许
func (r *Race) ChargingAllowed(second int64) bool { return at(r.charging, second) }

// ReducedDrivingBlocks 按块压缩的行驶掩码
// 功能：从startTime开始，每blockSeconds秒合并为一个块，块内全部允许行驶才为true
// 参数：startTime-起始秒，blockSeconds-块长度（秒）
// 返回：块掩码，末尾不足一块的部分同样按“全部允许”判定
func (r *Race) ReducedDrivingBlocks(startTime, blockSeconds int64) []bool {
	if startTime >= r.duration || blockSeconds <= 0 {
		return []bool{}
	}
	mask := r.driving[startTime:]
	n := int(math.Ceil(float64(len(mask)) / float64(blockSeconds)))
	out := make([]bool, n)
	for b := 0; b < n; b++ {
		lower := int64(b) * blockSeconds
		upper := min(lower+blockSeconds, int64(len(mask)))
		out[b] = lo.EveryBy(mask[lower:upper], func(v bool) bool { return v })
	}
	return out
}

// DrivingDivisions 允许行驶的块数，即速度输入数组应有的长度
func (r *Race) DrivingDivisions(startTime, blockSeconds int64) int {
	return lo.CountBy(r.ReducedDrivingBlocks(startTime, blockSeconds), func(v bool) bool { return v })
}

// Restore 由已计算好的各部分恢复Race（用于缓存解码）
func Restore(raceType string, date time.Time, tiling int, days []config.DayRanges, radii []float64, driving, charging []bool) (*Race, error) {
	switch raceType {
	case config.CompetitionTrack, config.CompetitionRoad:
	default:
		return nil, errors.Wrapf(ErrNotImplemented, "%q", raceType)
	}
	if len(driving) != len(charging) || int64(len(driving)) != int64(len(days))*DaySeconds {
		return nil, errors.Errorf("race masks length %d/%d do not match %d days", len(driving), len(charging), len(days))
	}
	return &Race{
		raceType:       raceType,
		date:           date,
		tiling:         tiling,
		days:           days,
		corneringRadii: radii,
		duration:       int64(len(days)) * DaySeconds,
		driving:        driving,
		charging:       charging,
	}, nil
}
