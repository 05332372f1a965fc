package motor

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
)

const (
	AirDensity = 1.225 // 空气密度（kg/m^3）
	Gravity    = 9.81  // 重力加速度（m/s^2）

	minMotorEfficiency      = 0.7382
	minControllerEfficiency = 0.9
)

// New 按配置中的判别字段创建电机模型
// 参数：v-整车参数，m-电机配置，corneringRadii-单圈各路线点转弯半径（仅advanced使用）
func New(v config.Vehicle, m config.Motor, corneringRadii []float64) (entity.IMotor, error) {
	switch m.Type {
	case config.MotorBasic:
		return NewBasic(v, m), nil
	case config.MotorAdvanced:
		return NewAdvanced(v, m, corneringRadii)
	default:
		return nil, errors.Errorf("unknown motor type %q", m.Type)
	}
}

// Basic 基础电机模型
// 功能：由车速、坡度、逆风计算驱动力，换算为电机输出能量，再除以电机与控制器效率得到控制器输入能量
type Basic struct {
	mass            float64
	roadFriction    float64
	tireRadius      float64
	frontalArea     float64
	dragCoefficient float64
}

func NewBasic(v config.Vehicle, m config.Motor) *Basic {
	return &Basic{
		mass:            v.Mass,
		roadFriction:    m.RoadFriction,
		tireRadius:      m.TireRadius,
		frontalArea:     m.FrontalArea,
		dragCoefficient: m.DragCoefficient,
	}
}

// DragForce 空气阻力 0.5·ρ·(v+wind)²·Cd·A（N）
func (m *Basic) DragForce(speedMs, windSpeed float64) float64 {
	rel := speedMs + windSpeed
	return 0.5 * AirDensity * rel * rel * m.dragCoefficient * m.frontalArea
}

// GravityForce 坡度方向重力分量（N），上坡为正
func (m *Basic) GravityForce(gradient float64) float64 {
	return m.mass * Gravity * math.Sin(math.Atan(gradient))
}

// RollingForce 滚动阻力（N）
func (m *Basic) RollingForce(gradient float64) float64 {
	return m.roadFriction * m.mass * Gravity * math.Cos(math.Atan(gradient))
}

// MotorEfficiency 电机效率拟合曲线（NGM SC-M150），截断到[0.7382, 1]
// 参数：power-输出功率（W），rpm-转速
func MotorEfficiency(power, rpm float64) float64 {
	p, n := power, rpm
	e := 0.7382 - 6.281e-5*p + 6.708e-4*n -
		2.89e-8*p*p + 2.416e-7*p*n - 8.672e-7*n*n +
		5.653e-12*p*p*p - 1.74e-11*p*p*n - 7.322e-11*p*n*n + 3.263e-10*n*n*n
	return lo.Clamp(e, minMotorEfficiency, 1)
}

// ControllerEfficiency 电机控制器效率拟合曲线（WaveSculptor，90V母线），截断到[0.9, 1]
// 参数：omega-角速度（rad/s），torque-转矩（N·m）
func ControllerEfficiency(omega, torque float64) float64 {
	w, q := omega, torque
	e := 0.7694 + 0.007818*w + 0.007043*q -
		1.658e-4*w*w - 1.806e-5*q*w - 1.909e-4*q*q +
		1.602e-6*w*w*w + 4.236e-7*w*w*q - 2.306e-7*w*q*q + 2.122e-6*q*q*q -
		5.701e-9*w*w*w*w - 2.054e-9*w*w*w*q - 3.126e-10*w*w*q*q + 1.708e-9*w*q*q*q - 8.094e-9*q*q*q*q
	return lo.Clamp(e, minControllerEfficiency, 1)
}

// accelerations 按中心差分求加速度（m/s^2），两端单侧差分，只保留加速部分
func accelerations(speedMs []float64, tick float64) []float64 {
	n := len(speedMs)
	out := make([]float64, n)
	if n < 2 || tick <= 0 {
		return out
	}
	for i := range speedMs {
		var a float64
		switch i {
		case 0:
			a = (speedMs[1] - speedMs[0]) / tick
		case n - 1:
			a = (speedMs[n-1] - speedMs[n-2]) / tick
		default:
			a = (speedMs[i+1] - speedMs[i-1]) / (2 * tick)
		}
		out[i] = math.Max(a, 0)
	}
	return out
}

// outputEnergies 电机输出能量（J），extra为附加功（如弯道损耗），可为nil
func (m *Basic) outputEnergies(speedKmh, gradients, windSpeeds []float64, tick float64, extra []float64) []float64 {
	speedMs := lo.Map(speedKmh, func(v float64, _ int) float64 { return v / 3.6 })
	acc := accelerations(speedMs, tick)
	out := make([]float64, len(speedKmh))
	for i, v := range speedMs {
		force := acc[i]*m.mass + m.DragForce(v, windSpeeds[i]) + m.GravityForce(gradients[i]) + m.RollingForce(gradients[i])
		omega := v / m.tireRadius
		e := omega * force * m.tireRadius * tick
		if extra != nil {
			e += extra[i]
		}
		out[i] = math.Max(e, 0)
	}
	return out
}

// inputEnergies 由输出能量求控制器输入能量
func (m *Basic) inputEnergies(speedKmh, output []float64, tick float64) []float64 {
	in := make([]float64, len(output))
	for i, e := range output {
		omega := speedKmh[i] / 3.6 / m.tireRadius
		power := e / tick
		torque := 0.0
		if omega > 0 {
			torque = power / omega
		}
		em := MotorEfficiency(power, omega*30/math.Pi)
		emc := ControllerEfficiency(omega, torque)
		// 负能量截断为0：再生制动由独立的regen模型计算，若合并到电机需重新考虑
		in[i] = math.Max(e/(em*emc), 0)
	}
	return in
}

// EnergyIn 电机控制器输入能量（J）
// 算法说明：
// 1. 加速力 = max(dv/dt, 0)·m
// 2. 净力 = 加速力 + 空气阻力 + 重力分量 + 滚动阻力
// 3. 输出能量 = ω·F·r·tick，截断为非负
// 4. 输入能量 = 输出能量 / (电机效率·控制器效率)
func (m *Basic) EnergyIn(speedKmh, gradients, windSpeeds []float64, gisIndices []int, tick float64) []float64 {
	return m.inputEnergies(speedKmh, m.outputEnergies(speedKmh, gradients, windSpeeds, tick, nil), tick)
}
