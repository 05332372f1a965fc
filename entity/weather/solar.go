package weather

import (
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/tsinghua-fib-lab/solarsim/entity"
)

const (
	SolarConstant = 1353.0 // 大气层外太阳辐照度（W/m^2）
	j2000         = 2451545.0
)

func sinD(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }
func cosD(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

// SolarZenith 太阳天顶角（度）
// 功能：按NOAA太阳位置算法计算给定位置、UTC时刻的天顶角
// 参数：coord-经纬度，unix-UTC Unix秒
// 算法说明：
// 1. 儒略日 -> 儒略世纪T
// 2. 太阳平黄经、平近点角、轨道偏心率、中心差 -> 视黄经
// 3. 黄赤交角修正 -> 赤纬
// 4. 时差（分钟）-> 真太阳时 -> 时角
// 5. cos(z) = sinφ·sinδ + cosφ·cosδ·cosH
func SolarZenith(coord entity.Coord, unix int64) float64 {
	t := time.Unix(unix, 0).UTC()
	jd := julian.TimeToJD(t)
	T := (jd - j2000) / 36525

	l0 := math.Mod(280.46646+T*(36000.76983+T*0.0003032), 360)
	m := 357.52911 + T*(35999.05029-0.0001537*T)
	e := 0.016708634 - T*(0.000042037+0.0000001267*T)
	c := sinD(m)*(1.914602-T*(0.004817+0.000014*T)) + sinD(2*m)*(0.019993-0.000101*T) + sinD(3*m)*0.000289
	omega := 125.04 - 1934.136*T
	lambda := l0 + c - 0.00569 - 0.00478*sinD(omega)
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := eps0 + 0.00256*cosD(omega)
	decl := math.Asin(sinD(eps)*sinD(lambda)) * 180 / math.Pi

	y := math.Pow(math.Tan(eps/2*math.Pi/180), 2)
	eot := 4 * 180 / math.Pi * (y*sinD(2*l0) - 2*e*sinD(m) + 4*e*y*sinD(m)*cosD(2*l0) -
		0.5*y*y*sinD(4*l0) - 1.25*e*e*sinD(2*m))

	minutes := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
	trueSolar := math.Mod(minutes+eot+4*coord.Lon, 1440)
	if trueSolar < 0 {
		trueSolar += 1440
	}
	hourAngle := trueSolar/4 - 180

	cosZ := sinD(coord.Lat)*sinD(decl) + cosD(coord.Lat)*cosD(decl)*cosD(hourAngle)
	return math.Acos(lo.Clamp(cosZ, -1, 1)) * 180 / math.Pi
}

// ClearSkyGHI 晴空水平面总辐照度（W/m^2）
// 功能：DNI = S0·((1-0.14h)·0.7^(AM^0.678) + 0.14h)，h为海拔（km），AM = 1/cos(z)
// DHI = 0.1·DNI，GHI = DNI·cos(z) + DHI；太阳在地平线下时为0
func ClearSkyGHI(coord entity.Coord, unix int64, elevation float64) float64 {
	zenith := SolarZenith(coord, unix)
	if zenith >= 90 {
		return 0
	}
	h := math.Max(elevation, 0) / 1000
	airMass := 1 / cosD(zenith)
	dni := SolarConstant * ((1-0.14*h)*math.Pow(0.7, math.Pow(airMass, 0.678)) + 0.14*h)
	return dni*cosD(zenith) + 0.1*dni
}

// CloudAdjustedGHI 云量修正（Kasten-Czeplak），cloudCover为百分比 [0, 100]
func CloudAdjustedGHI(ghi, cloudCover float64) float64 {
	c := lo.Clamp(cloudCover, 0, 100) / 100
	return ghi * (1 - 0.75*math.Pow(c, 3.4))
}
