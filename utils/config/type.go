package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义路线、天气等外部数据集的来源
// 说明：File优先级高于MongoDB
type InputPath struct {
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	File string `yaml:"file,omitempty"` // yaml文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Vehicle 整车参数
type Vehicle struct {
	Mass            float64 `yaml:"vehicle_mass"`     // 整车质量（kg）
	MaxAcceleration float64 `yaml:"max_acceleration"` // 最大加速度（km/h每秒）
	MaxDeceleration float64 `yaml:"max_deceleration"` // 最大减速度（km/h每秒）
}

// Array 太阳能阵列
type Array struct {
	PanelEfficiency float64   `yaml:"panel_efficiency"`     // 光电转换效率 [0, 1]
	PanelSize       float64   `yaml:"panel_size"`           // 有效面积（m^2）
	Correction      []float64 `yaml:"correction,omitempty"` // 修正多项式系数（最高次在前），为空则不修正
}

// LVS 低压系统
type LVS struct {
	Voltage float64 `yaml:"lvs_voltage"` // 电压（V）
	Current float64 `yaml:"lvs_current"` // 电流（A）
}

// 电池模型类型
const (
	BatteryBasic             = "basic"
	BatteryEnhanced          = "enhanced"
	BatteryEquivalentCircuit = "equivalent_circuit"
)

// Battery 电池配置，Type为判别字段
type Battery struct {
	Type string `yaml:"type"`

	// basic / enhanced
	MaxVoltage         float64 `yaml:"max_voltage,omitempty"`          // 满电电压（V）
	MinVoltage         float64 `yaml:"min_voltage,omitempty"`          // 截止电压（V）
	MaxCurrentCapacity float64 `yaml:"max_current_capacity,omitempty"` // 标称容量（Ah）
	MaxEnergyCapacity  float64 `yaml:"max_energy_capacity,omitempty"`  // 标称能量（Wh）

	// enhanced
	ChargeEfficiency    float64 `yaml:"charge_efficiency,omitempty"`    // 充电库伦效率
	DischargeEfficiency float64 `yaml:"discharge_efficiency,omitempty"` // 放电库伦效率

	// equivalent_circuit
	R0Data  []float64 `yaml:"r0_data,omitempty"`  // 欧姆内阻（Ω），按SOC索引
	RPData  []float64 `yaml:"rp_data,omitempty"`  // 极化电阻（Ω）
	CPData  []float64 `yaml:"cp_data,omitempty"`  // 极化电容（F）
	SOCData []float64 `yaml:"soc_data,omitempty"` // 查表SOC横轴，严格递增
	UocData []float64 `yaml:"uoc_data,omitempty"` // 开路电压（V）
	QTotal  float64   `yaml:"q_total,omitempty"`  // 总容量（C）
}

// 电机模型类型
const (
	MotorBasic    = "basic"
	MotorAdvanced = "advanced"
)

// SlipPoint 轮胎侧向力-侧偏角曲线上的一点
type SlipPoint struct {
	Force    float64 `yaml:"force"`     // 侧向力（N）
	AngleDeg float64 `yaml:"angle_deg"` // 侧偏角（度）
}

// Motor 电机配置
type Motor struct {
	Type                 string      `yaml:"type"`
	RoadFriction         float64     `yaml:"road_friction"`                   // 滚动阻力系数
	TireRadius           float64     `yaml:"tire_radius"`                     // 轮胎半径（m）
	FrontalArea          float64     `yaml:"vehicle_frontal_area"`            // 迎风面积（m^2）
	DragCoefficient      float64     `yaml:"drag_coefficient"`                // 风阻系数
	CorneringCoefficient float64     `yaml:"cornering_coefficient,omitempty"` // 弯道损耗系数（advanced）
	SlipCurve            []SlipPoint `yaml:"slip_curve,omitempty"`            // 侧向力-侧偏角曲线（advanced），为空用默认值
}

// Regen 再生制动
type Regen struct {
	Efficiency float64 `yaml:"efficiency"` // 回收效率
	MinSpeed   float64 `yaml:"min_speed"`  // 最低回收车速（m/s）
	MaxPower   float64 `yaml:"max_power"`  // 最大回收功率（W）
}

// Car 车辆完整配置
type Car struct {
	Name    string  `yaml:"name"`
	Vehicle Vehicle `yaml:"vehicle"`
	Array   Array   `yaml:"array"`
	LVS     LVS     `yaml:"lvs"`
	Battery Battery `yaml:"battery"`
	Motor   Motor   `yaml:"motor"`
	Regen   Regen   `yaml:"regen"`
}

// 比赛类型
const (
	CompetitionTrack = "track" // 场地赛（FSGP），路线按圈重复
	CompetitionRoad  = "road"  // 公路赛（ASC）
)

// TimeRange 一天中的时间区间 [Begin, End)，单位：距午夜秒数
type TimeRange struct {
	Begin int64 `yaml:"begin"`
	End   int64 `yaml:"end"`
}

// DayRanges 某一天允许行驶、允许充电的时间区间
type DayRanges struct {
	Driving  []TimeRange `yaml:"driving"`
	Charging []TimeRange `yaml:"charging"`
}

// Competition 比赛配置
type Competition struct {
	Type           string      `yaml:"type"`                      // track | road
	Date           string      `yaml:"date"`                      // 第一天日期 YYYY-MM-DD（起点当地时间）
	Tiling         int         `yaml:"tiling,omitempty"`          // 圈数（仅track）
	Days           []DayRanges `yaml:"days"`                      // 每天的时间规则
	CorneringRadii []float64   `yaml:"cornering_radii,omitempty"` // 单圈每个路线点的转弯半径（m）
}

// 天气数据提供方
const (
	WeatherSolcast     = "solcast"     // 直接提供GHI
	WeatherOpenweather = "openweather" // 提供云量，GHI由晴空模型推算
)

// Weather 天气配置
type Weather struct {
	Provider string    `yaml:"provider"`
	Period   int64     `yaml:"period,omitempty"` // 预报粒度（秒），仅用于校验
	Input    InputPath `yaml:"input"`            // 天气数据集来源
}

// Environment 环境配置
type Environment struct {
	Competition Competition `yaml:"competition"`
	Route       InputPath   `yaml:"route"` // 路线数据集来源
	Weather     Weather     `yaml:"weather"`
}

// InitialConditions 初始条件
type InitialConditions struct {
	CurrentCoord      [2]float64 `yaml:"current_coord"`       // 起始坐标（lat, lon）
	InitialBatterySOC float64    `yaml:"initial_battery_soc"` // 初始SOC [0, 1]
	StartTime         int64      `yaml:"start_time"`          // 距第一天午夜的秒数
}

// 模型返回类型
const (
	ReturnTimeTaken         = "time_taken"
	ReturnDistanceTravelled = "distance_travelled"
	ReturnDistanceAndTime   = "distance_and_time"
	ReturnVoid              = "void"
)

// Hyperparameters 仿真超参数
type Hyperparameters struct {
	SpeedDt            int64  `yaml:"speed_dt"`                       // 输入速度数组每个元素代表的秒数
	SimulationDt       int64  `yaml:"simulation_dt"`                  // 仿真步长（秒）
	ReturnType         string `yaml:"return_type"`                    // 返回类型
	EnforceSpeedLimits bool   `yaml:"enforce_speed_limits,omitempty"` // 按路线限速裁剪车速
}

// 优化目标
const (
	ObjectiveDistance = "distance"
	ObjectiveTime     = "time"
)

// Optimization 差分进化优化器配置
type Optimization struct {
	Objective      string  `yaml:"objective"`           // distance | time
	Generations    int     `yaml:"generations"`         // 最大代数
	PopulationSize int     `yaml:"population_size"`     // 种群规模
	MinSpeed       float64 `yaml:"min_speed"`           // 每个基因下界（km/h）
	MaxSpeed       float64 `yaml:"max_speed"`           // 每个基因上界（km/h）
	Mutation       float64 `yaml:"mutation"`            // 差分权重F
	Crossover      float64 `yaml:"crossover"`           // 交叉概率CR
	Tolerance      float64 `yaml:"tolerance,omitempty"` // 种群适应度标准差收敛阈值（相对）
	Seed           uint64  `yaml:"seed,omitempty"`      // 随机种子
	Workers        int     `yaml:"workers,omitempty"`   // 并发评估数，0表示不限制
}

// ForceRebuild 指定需要强制重建的缓存项
type ForceRebuild struct {
	Route   bool `yaml:"route,omitempty"`
	Race    bool `yaml:"race,omitempty"`
	Weather bool `yaml:"weather,omitempty"`
}

// Cache 缓存配置
type Cache struct {
	Dir          string       `yaml:"dir,omitempty"` // 文件系统缓存目录，为空则不使用文件缓存
	DB           string       `yaml:"db,omitempty"`  // MongoDB缓存库（需Input.URI）
	Col          string       `yaml:"col,omitempty"` // MongoDB缓存集合
	ForceRebuild ForceRebuild `yaml:"force_rebuild,omitempty"`
}

// Input 外部数据访问
type Input struct {
	URI string `yaml:"uri,omitempty"` // MongoDB连接字符串
}

// Serve RPC服务配置
type Serve struct {
	Listen string `yaml:"listen,omitempty"` // 监听地址
}

// Config YAML配置文件的根结构
type Config struct {
	Car               Car               `yaml:"car"`
	Environment       Environment       `yaml:"environment"`
	InitialConditions InitialConditions `yaml:"initial_conditions"`
	Hyperparameters   Hyperparameters   `yaml:"hyperparameters"`
	Optimization      Optimization      `yaml:"optimization,omitempty"`
	Cache             Cache             `yaml:"cache,omitempty"`
	Input             Input             `yaml:"input,omitempty"`
	Serve             Serve             `yaml:"serve,omitempty"`
}
