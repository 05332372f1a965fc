package entity

import "fmt"

// Coord 经纬度坐标（度）
type Coord struct {
	Lat float64 `yaml:"lat" bson:"lat"`
	Lon float64 `yaml:"lon" bson:"lon"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// BatteryTrace 电池模型对整段累计能量序列的输出
type BatteryTrace struct {
	SOC    []float64 // 荷电状态 [0, 1]
	SOH    []float64 // 健康状态 [0, 1]
	DOD    []float64 // 放电深度
	RawSOC []float64 // 未截断的SOC，仅用于诊断
	// 放电请求未被满足（电池已放空）的tick，仿真在这些tick停车
	Exhausted []bool
}

// entity/car/battery的依赖倒置
type IBattery interface {
	// 输入每个tick的累计能量变化（J，正为充电），整段一次计算
	EnergyBalance(cumulativeDeltaEnergy []float64, tick float64) BatteryTrace
}

// entity/car/motor的依赖倒置
type IMotor interface {
	// 电机控制器输入能量（J），每个tick一个值，非负
	EnergyIn(speedKmh, gradients, windSpeeds []float64, gisIndices []int, tick float64) []float64
}

// entity/car/array的依赖倒置
type IArray interface {
	ProducedEnergy(irradiance []float64, tick float64) []float64 // 光伏发电量（J）
}

// entity/car/regen的依赖倒置
type IRegen interface {
	ProducedEnergy(speedKmh, elevations []float64, tick float64) []float64 // 回收能量（J）
}

// entity/car/lvs的依赖倒置
type ILVS interface {
	ConsumedEnergy(tick float64) float64 // 每个tick低压系统耗能（J）
}

// WeatherSample 某一站点、某一时刻的天气
type WeatherSample struct {
	Timestamp     int64   `yaml:"timestamp" bson:"timestamp"`           // UTC Unix秒
	WindSpeed     float64 `yaml:"wind_speed" bson:"wind_speed"`         // m/s
	WindDirection float64 `yaml:"wind_direction" bson:"wind_direction"` // 度，气象学约定（0=北风）
	GHI           float64 `yaml:"ghi,omitempty" bson:"ghi"`             // W/m^2（solcast）
	CloudCover    float64 `yaml:"cloud_cover,omitempty" bson:"cloud_cover"`
}

// entity/weather的依赖倒置
type IMeteorology interface {
	// 每个tick最近的天气站点下标（单调不减）
	ClosestWeatherIndices(cumulativeDistances []float64) []int
	// 每个tick时间最接近的天气记录
	ForecastAt(weatherIndices []int, unixTimes []int64) []WeatherSample
	// 每个tick的水平面总辐照度（W/m^2）
	SolarIrradiances(samples []WeatherSample, coords []Coord, unixTimes []int64, elevations []float64) []float64
}

// entity/route的依赖倒置
type IRoute interface {
	Len() int
	Coords() []Coord
	Elevations() []float64
	TimeZones() []float64
	HeadingAt(i int) float64 // 度
	CumulativeDistances() []float64
	Length() float64 // 全程长度（m）
	// 对单调不减的累计行驶距离求最近路线点下标
	ClosestIndices(cumulativeDistances []float64) []int
	Gradients(indices []int) []float64
	SpeedLimitAt(position float64) float64 // km/h
}

// entity/race的依赖倒置
type IRace interface {
	Duration() int64
	DrivingAllowed(second int64) bool
	ChargingAllowed(second int64) bool
	ReducedDrivingBlocks(startTime, blockSeconds int64) []bool
	DrivingDivisions(startTime, blockSeconds int64) int
}
