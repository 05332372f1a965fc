package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/solarsim/entity/race"
)

// Clock 仿真时钟
// 功能：把比赛时间轴离散为固定步长的tick，提供tick时间戳、比赛秒与UTC时间之间的换算
// 说明：tick 0 对应start_time时刻的初始静止状态，最后一个tick对应比赛结束时刻
type Clock struct {
	DT    int64 // tick步长（秒）
	START int64 // 起始时刻，距第一天午夜的秒数
	END   int64 // 结束时刻（比赛总时长），仿真区间[START, END]
	EPOCH int64 // 第一天午夜对应的UTC Unix秒（按起点时区）
}

// New 创建仿真时钟
// 参数：dt-步长（秒），start-起始秒，end-结束秒，epoch-第一天午夜的UTC Unix秒
func New(dt, start, end, epoch int64) *Clock {
	if dt <= 0 {
		dt = 1
	}
	return &Clock{
		DT:    dt,
		START: start,
		END:   max(end, start),
		EPOCH: epoch,
	}
}

// Duration 仿真时长（秒）
func (c *Clock) Duration() int64 { return c.END - c.START }

// Ticks tick总数（含tick 0）
func (c *Clock) Ticks() int {
	return int(c.Duration()/c.DT) + 1
}

// Timestamps 每个tick距起始的秒数
func (c *Clock) Timestamps() []int64 {
	out := make([]int64, c.Ticks())
	for i := range out {
		out[i] = int64(i) * c.DT
	}
	return out
}

// RaceSecond tick对应的比赛秒（距第一天午夜），tzOffset为当地时区相对起点时区的偏移（秒）
func (c *Clock) RaceSecond(timestamp, tzOffset int64) int64 {
	return c.START + timestamp + tzOffset
}

// Unix tick对应的UTC Unix秒
func (c *Clock) Unix(timestamp int64) int64 {
	return c.EPOCH + c.START + timestamp
}

// FormatTimestamp 距起始timestamp秒时的比赛时间，格式同Format
func (c *Clock) FormatTimestamp(timestamp int64) string {
	return Format(c.START + timestamp)
}

// Format 把比赛秒格式化为 Day X HH:MM:SS，X从1开始
func Format(raceSecond int64) string {
	day := raceSecond / race.DaySeconds
	h, m, s := HourMinuteSecond(raceSecond)
	return fmt.Sprintf("Day %d %02d:%02d:%02d", day+1, h, m, s)
}

// HourMinuteSecond 比赛秒在当天的时、分、秒
func HourMinuteSecond(raceSecond int64) (int, int, int) {
	t := raceSecond % race.DaySeconds
	hour := int(t / 3600)
	minute := int(t % 3600 / 60)
	second := int(t % 60)
	return hour, minute, second
}
