package task

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/solarsim/cache"
	"github.com/tsinghua-fib-lab/solarsim/clock"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/array"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/battery"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/lvs"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/motor"
	"github.com/tsinghua-fib-lab/solarsim/entity/car/regen"
	"github.com/tsinghua-fib-lab/solarsim/entity/race"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"github.com/tsinghua-fib-lab/solarsim/simulation"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"github.com/tsinghua-fib-lab/solarsim/utils/input"
)

var (
	// ErrMissingConfig 编译前缺少必需的配置段
	ErrMissingConfig = errors.New("missing configuration")
	// ErrNotImplemented 不支持的比赛类型
	ErrNotImplemented = race.ErrNotImplemented
)

// 起点坐标与路线起点相距超过该值时告警（m）
const startCoordTolerance = 1000

// Builder 模型构建器
// 功能：分阶段收集车辆、环境、初始条件与超参数配置，Compile校验后生成只读的Template
// 说明：Compile之前不会访问外部数据；缺少任何一段配置时Compile返回ErrMissingConfig
type Builder struct {
	store  cache.Store
	source *input.Source
	force  config.ForceRebuild

	car         *config.Car
	environment *config.Environment
	initial     *config.InitialConditions
	hyper       *config.Hyperparameters
}

// NewBuilder 创建构建器
// 参数：store-缓存（nil表示不缓存），source-外部数据来源
func NewBuilder(store cache.Store, source *input.Source) *Builder {
	return &Builder{store: store, source: source}
}

// SetCar 设置车辆配置
func (b *Builder) SetCar(c config.Car) *Builder {
	b.car = &c
	return b
}

// SetEnvironment 设置环境配置
func (b *Builder) SetEnvironment(e config.Environment) *Builder {
	b.environment = &e
	return b
}

// SetInitialConditions 设置初始条件
func (b *Builder) SetInitialConditions(ic config.InitialConditions) *Builder {
	b.initial = &ic
	return b
}

// SetHyperparameters 设置超参数
func (b *Builder) SetHyperparameters(h config.Hyperparameters) *Builder {
	b.hyper = &h
	return b
}

// SetForceRebuild 设置强制重建的缓存项
func (b *Builder) SetForceRebuild(f config.ForceRebuild) *Builder {
	b.force = f
	return b
}

// FromConfig 由运行时配置一次性构建Template
func FromConfig(ctx context.Context, rc *config.RuntimeConfig, store cache.Store, source *input.Source) (*Template, error) {
	c := rc.All
	return NewBuilder(store, source).
		SetCar(c.Car).
		SetEnvironment(c.Environment).
		SetInitialConditions(c.InitialConditions).
		SetHyperparameters(c.Hyperparameters).
		SetForceRebuild(c.Cache.ForceRebuild).
		Compile(ctx)
}

func (b *Builder) check() error {
	missing := []string{}
	if b.car == nil {
		missing = append(missing, "car")
	}
	if b.environment == nil {
		missing = append(missing, "environment")
	}
	if b.initial == nil {
		missing = append(missing, "initial_conditions")
	}
	if b.hyper == nil {
		missing = append(missing, "hyperparameters")
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrMissingConfig, "%v", missing)
	}
	if err := b.car.Validate(); err != nil {
		return err
	}
	if err := b.environment.Validate(); err != nil {
		return err
	}
	if err := b.initial.Validate(); err != nil {
		return err
	}
	return b.hyper.Validate()
}

// Compile 校验配置并组装路线、比赛与天气
// 功能：生成可并发创建Model的只读Template
// 参数：ctx-上下文（用于外部数据访问）
// 返回：Template指针；配置缺失返回ErrMissingConfig，比赛类型未知返回ErrNotImplemented
// 算法说明：
// 1. 检查四段配置齐全并逐段校验
// 2. 比赛：按competition配置哈希查缓存，未命中则生成
// 3. 路线：按route来源哈希查缓存，未命中则从文件或MongoDB读取；按比赛圈数展开
// 4. 天气：按weather配置哈希查缓存，未命中则读取；场地赛启用单站点假设
// 5. 以起点时区计算第一天午夜的UTC时间
// 6. 试构建一次车辆模型，尽早暴露车辆配置错误
func (b *Builder) Compile(ctx context.Context) (*Template, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	env := b.environment
	if env.Competition.Type != config.CompetitionTrack && env.Competition.Type != config.CompetitionRoad {
		return nil, errors.Wrapf(ErrNotImplemented, "%q", env.Competition.Type)
	}

	key, err := cache.Key(cache.KindRace, env.Competition)
	if err != nil {
		return nil, err
	}
	rc, err := cache.Load(ctx, b.store, key, cache.RaceCodec{}, b.force.Race, func() (*race.Race, error) {
		log.Infof("compiling %s race", env.Competition.Type)
		return race.New(env.Competition)
	})
	if err != nil {
		return nil, err
	}
	if b.initial.StartTime >= rc.Duration() {
		return nil, errors.Wrapf(config.ErrInvalid, "start_time %d beyond race duration %d", b.initial.StartTime, rc.Duration())
	}

	if key, err = cache.Key(cache.KindRoute, env.Route); err != nil {
		return nil, err
	}
	data, err := cache.Load(ctx, b.store, key, cache.RouteCodec{}, b.force.Route, func() (route.Data, error) {
		return b.source.Route(ctx, env.Route)
	})
	if err != nil {
		return nil, err
	}
	rt, err := route.New(data, rc.Tiling())
	if err != nil {
		return nil, err
	}

	if key, err = cache.Key(cache.KindWeather, env.Weather); err != nil {
		return nil, err
	}
	forecast, err := cache.Load(ctx, b.store, key, cache.ForecastCodec{}, b.force.Weather, func() (*weather.Forecast, error) {
		return b.source.Forecast(ctx, env.Weather)
	})
	if err != nil {
		return nil, err
	}
	met, err := weather.New(forecast, rc.IsTrack())
	if err != nil {
		return nil, err
	}

	t := &Template{
		car:         *b.car,
		initial:     *b.initial,
		hyper:       *b.hyper,
		route:       rt,
		race:        rc,
		meteorology: met,
		epoch:       rc.Date().Unix() - int64(rt.TimeZones()[0]),
	}
	if _, err := t.buildCar(); err != nil {
		return nil, err
	}
	start := entity.Coord{Lat: b.initial.CurrentCoord[0], Lon: b.initial.CurrentCoord[1]}
	if start != (entity.Coord{}) {
		if d := route.DistanceBetween(start, rt.Coords()[0]); d > startCoordTolerance {
			log.Warnf("current coord %v is %.0fm away from route origin %v", start, d, rt.Coords()[0])
		}
	}
	log.Infof("compiled %s race: %d days, %d laps, route %.2fkm with %d points, %d weather stations, %d driving divisions",
		rc.Type(), len(rc.Days()), rc.Tiling(), rt.Length()/1000, rt.Len(), len(forecast.Stations), t.DrivingDivisions())
	return t, nil
}

// Template 编译完成的模型模板
// 功能：持有只读的路线、比赛、天气与配置，为每次评估创建独立的Model
// 说明：Template本身可在多个协程间共享
type Template struct {
	car     config.Car
	initial config.InitialConditions
	hyper   config.Hyperparameters

	route       *route.Route
	race        *race.Race
	meteorology *weather.Meteorology
	epoch       int64 // 第一天午夜（起点时区）的UTC Unix秒
}

// Route 路线
func (t *Template) Route() *route.Route { return t.route }

// Race 比赛
func (t *Template) Race() *race.Race { return t.race }

// Meteorology 气象模型
func (t *Template) Meteorology() *weather.Meteorology { return t.meteorology }

// Hyperparameters 超参数
func (t *Template) Hyperparameters() config.Hyperparameters { return t.hyper }

// DrivingDivisions 输入速度数组应有的长度
func (t *Template) DrivingDivisions() int {
	return t.race.DrivingDivisions(t.initial.StartTime, t.hyper.SpeedDt)
}

// buildCar 按配置新建车辆各子系统模型
func (t *Template) buildCar() (simulation.Car, error) {
	c := t.car
	b, err := battery.New(c.Battery, t.initial.InitialBatterySOC)
	if err != nil {
		return simulation.Car{}, err
	}
	m, err := motor.New(c.Vehicle, c.Motor, t.race.CorneringRadii())
	if err != nil {
		return simulation.Car{}, err
	}
	return simulation.Car{
		Battery: b,
		Motor:   m,
		Array:   array.New(c.Array),
		Regen:   regen.New(c.Vehicle, c.Regen),
		LVS:     lvs.New(c.LVS),
	}, nil
}

// NewModel 创建独立的Model
// 说明：车辆模型与时钟每次新建，路线、比赛与天气共享
func (t *Template) NewModel() (*Model, error) {
	car, err := t.buildCar()
	if err != nil {
		return nil, err
	}
	clk := clock.New(t.hyper.SimulationDt, t.initial.StartTime, t.race.Duration(), t.epoch)
	return &Model{
		sim:                simulation.New(t.route, t.race, t.meteorology, car, clk),
		route:              t.route,
		race:               t.race,
		startTime:          t.initial.StartTime,
		speedDt:            t.hyper.SpeedDt,
		maxAcceleration:    t.car.Vehicle.MaxAcceleration,
		maxDeceleration:    t.car.Vehicle.MaxDeceleration,
		enforceSpeedLimits: t.hyper.EnforceSpeedLimits,
		returnType:         t.hyper.ReturnType,
	}, nil
}
