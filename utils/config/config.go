package config

import (
	"encoding/base64"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ErrInvalid 配置非法
var ErrInvalid = errors.New("invalid config")

const dateLayout = "2006-01-02"

// RuntimeConfig 运行时配置
// 功能：存储校验并补全默认值后的配置
// 说明：所有下游组件只读取RuntimeConfig，不直接读YAML
type RuntimeConfig struct {
	All Config // 全部配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全默认值并校验
// 参数：config-原始配置对象
// 返回：运行时配置指针，配置非法时返回ErrInvalid
// 算法说明：
// 1. 补全默认值：tiling默认为1，优化器参数默认值
// 2. 逐段校验
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	SetDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeConfig{All: config}, nil
}

// Load 从文件或base64数据读取配置（严格模式，未知字段报错）
func Load(path string, data string) (Config, error) {
	var c Config
	var file []byte
	var err error
	switch {
	case path != "":
		file, err = os.ReadFile(path)
		if err != nil {
			return c, errors.Wrap(err, "config file load err")
		}
	case data != "":
		file, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return c, errors.Wrap(err, "config data load err")
		}
	default:
		return c, errors.New("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		return c, errors.Wrap(err, "config file load err")
	}
	return c, nil
}

// SetDefaults 补全默认值
func SetDefaults(c *Config) {
	if c.Environment.Competition.Tiling <= 0 {
		c.Environment.Competition.Tiling = 1
	}
	if c.Hyperparameters.SimulationDt == 0 {
		c.Hyperparameters.SimulationDt = 1
	}
	if c.Hyperparameters.ReturnType == "" {
		c.Hyperparameters.ReturnType = ReturnDistanceAndTime
	}
	o := &c.Optimization
	if o.Objective == "" {
		o.Objective = ObjectiveDistance
	}
	if o.Generations == 0 {
		o.Generations = 50
	}
	if o.PopulationSize == 0 {
		o.PopulationSize = 20
	}
	if o.Mutation == 0 {
		o.Mutation = 0.8
	}
	if o.Crossover == 0 {
		o.Crossover = 0.7
	}
	if o.MaxSpeed == 0 {
		o.MinSpeed, o.MaxSpeed = 20, 60
	}
	if c.Car.Regen.Efficiency == 0 {
		c.Car.Regen.Efficiency = 0.5
	}
	if c.Car.Regen.MaxPower == 0 {
		c.Car.Regen.MaxPower = 10000
	}
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate 校验全部配置
func (c Config) Validate() error {
	if err := c.Car.Validate(); err != nil {
		return err
	}
	if err := c.Environment.Validate(); err != nil {
		return err
	}
	if err := c.InitialConditions.Validate(); err != nil {
		return err
	}
	if err := c.Hyperparameters.Validate(); err != nil {
		return err
	}
	return c.Optimization.Validate()
}

// Validate 校验车辆配置
func (c Car) Validate() error {
	if c.Vehicle.Mass <= 0 {
		return invalid("car.vehicle.vehicle_mass must be positive")
	}
	if c.Vehicle.MaxAcceleration <= 0 || c.Vehicle.MaxDeceleration <= 0 {
		return invalid("car.vehicle max_acceleration/max_deceleration must be positive")
	}
	if c.Array.PanelEfficiency < 0 || c.Array.PanelEfficiency > 1 {
		return invalid("car.array.panel_efficiency %v out of [0, 1]", c.Array.PanelEfficiency)
	}
	if c.Motor.TireRadius <= 0 {
		return invalid("car.motor.tire_radius must be positive")
	}
	switch c.Motor.Type {
	case MotorBasic, MotorAdvanced:
	default:
		return invalid("car.motor.type %q", c.Motor.Type)
	}
	b := c.Battery
	switch b.Type {
	case BatteryBasic:
		if b.MaxEnergyCapacity <= 0 {
			return invalid("car.battery.max_energy_capacity must be positive")
		}
	case BatteryEnhanced:
		if b.MaxCurrentCapacity <= 0 || b.MaxVoltage <= b.MinVoltage {
			return invalid("car.battery enhanced requires max_current_capacity and max_voltage > min_voltage")
		}
	case BatteryEquivalentCircuit:
		n := len(b.SOCData)
		if n < 2 || len(b.UocData) != n || len(b.R0Data) != n || len(b.RPData) != n || len(b.CPData) != n {
			return invalid("car.battery equivalent_circuit tables must share length >= 2")
		}
		if b.QTotal <= 0 {
			return invalid("car.battery.q_total must be positive")
		}
	default:
		return invalid("car.battery.type %q", b.Type)
	}
	return nil
}

// Validate 校验环境配置
// 说明：未知的比赛类型不在此处拒绝，由Builder返回ErrNotImplemented
func (e Environment) Validate() error {
	if _, err := time.Parse(dateLayout, e.Competition.Date); err != nil {
		return invalid("environment.competition.date %q: %v", e.Competition.Date, err)
	}
	if len(e.Competition.Days) == 0 {
		return invalid("environment.competition.days must not be empty")
	}
	for i, d := range e.Competition.Days {
		for _, r := range append(append([]TimeRange{}, d.Driving...), d.Charging...) {
			if r.Begin < 0 || r.End > 86400 || r.Begin > r.End {
				return invalid("environment.competition.days[%d] bad range %v", i, r)
			}
		}
	}
	switch e.Weather.Provider {
	case WeatherSolcast, WeatherOpenweather:
	default:
		return invalid("environment.weather.provider %q", e.Weather.Provider)
	}
	return nil
}

// Validate 校验初始条件
func (ic InitialConditions) Validate() error {
	if ic.InitialBatterySOC < 0 || ic.InitialBatterySOC > 1 {
		return invalid("initial_conditions.initial_battery_soc %v out of [0, 1]", ic.InitialBatterySOC)
	}
	if ic.StartTime < 0 {
		return invalid("initial_conditions.start_time must be non-negative")
	}
	return nil
}

// Validate 校验超参数
func (h Hyperparameters) Validate() error {
	if h.SimulationDt <= 0 || h.SpeedDt <= 0 {
		return invalid("hyperparameters speed_dt and simulation_dt must be positive")
	}
	if h.SpeedDt%h.SimulationDt != 0 {
		return invalid("hyperparameters.speed_dt %d must be a multiple of simulation_dt %d", h.SpeedDt, h.SimulationDt)
	}
	switch h.ReturnType {
	case ReturnTimeTaken, ReturnDistanceTravelled, ReturnDistanceAndTime, ReturnVoid:
	default:
		return invalid("hyperparameters.return_type %q", h.ReturnType)
	}
	return nil
}

// Validate 校验优化器配置
func (o Optimization) Validate() error {
	if o.MinSpeed < 0 || o.MaxSpeed < o.MinSpeed {
		return invalid("optimization speed bounds [%v, %v]", o.MinSpeed, o.MaxSpeed)
	}
	if o.PopulationSize < 4 {
		return invalid("optimization.population_size must be >= 4")
	}
	if o.Crossover < 0 || o.Crossover > 1 {
		return invalid("optimization.crossover %v out of [0, 1]", o.Crossover)
	}
	switch o.Objective {
	case ObjectiveDistance, ObjectiveTime:
	default:
		return invalid("optimization.objective %q", o.Objective)
	}
	return nil
}

// StartDate 解析比赛第一天日期（UTC零点）
func (c Competition) StartDate() (time.Time, error) {
	t, err := time.Parse(dateLayout, c.Date)
	if err != nil {
		return t, errors.Wrapf(ErrInvalid, "competition.date %q: %v", c.Date, err)
	}
	return t, nil
}
