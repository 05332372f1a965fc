package route

import (
	"math"

	"github.com/tsinghua-fib-lab/solarsim/entity"
)

// 地球平均半径（m）
const EarthRadius = 6371009.0

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// DistanceBetween 两点间大圆距离（m），haversine公式
func DistanceBetween(a, b entity.Coord) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	dPhi := phi2 - phi1
	dLambda := radians(b.Lon - a.Lon)
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Bearing 从a指向b的初始方位角（度，[0, 360)，0为正北，顺时针）
func Bearing(a, b entity.Coord) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	dLambda := radians(b.Lon - a.Lon)
	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(degrees(math.Atan2(y, x))+360, 360)
}

// PathDistances 相邻坐标间距离，首元素为0，与coords等长
func PathDistances(coords []entity.Coord) []float64 {
	out := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		out[i] = DistanceBetween(coords[i-1], coords[i])
	}
	return out
}
