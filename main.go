package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"git.fiblab.net/general/common/v2/mongoutil"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/solarsim/cache"
	"github.com/tsinghua-fib-lab/solarsim/optimization"
	"github.com/tsinghua-fib-lab/solarsim/service"
	"github.com/tsinghua-fib-lab/solarsim/task"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"github.com/tsinghua-fib-lab/solarsim/utils/input"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

var (
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 路线、比赛、天气的缓存目录，设置为空则禁用文件缓存（配置文件中的cache.dir优先）
	cacheDir = flag.String("cache", "data/", "cache dir path (empty means disable cache)")
	// MongoDB连接字符串，覆盖配置文件中的input.uri
	mongoURI = flag.String("mongo", "", "mongodb uri for input datasets and cache")
	// 运行模式
	mode = flag.String("mode", "simulate", "run mode: simulate | optimize | serve")
	// simulate模式下的恒定速度
	speed = flag.Float64("speed", 30, "constant speed (km/h) of every driving division in simulate mode")
	// 结果输出路径，为空则只打印日志
	outputPath = flag.String("output", "", "yaml result output path")
	// serve模式监听地址，覆盖配置文件中的serve.listen
	listen = flag.String("listen", "", "rpc listening address, e.g. :51102")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "solarsim")
)

// report 输出到文件的结果摘要
type report struct {
	Mode              string    `yaml:"mode"`
	RunID             string    `yaml:"run_id,omitempty"`
	Speeds            []float64 `yaml:"speeds"`
	Fitness           float64   `yaml:"fitness,omitempty"`
	DistanceTravelled float64   `yaml:"distance_travelled"`
	TimeTaken         float64   `yaml:"time_taken"`
	FinishTime        string    `yaml:"finish_time"`
	FinalSOC          float64   `yaml:"final_soc"`
	Successful        bool      `yaml:"successful"`
	// 电量耗尽前的行驶距离（km），未耗尽时等于distance_travelled
	DistanceBeforeExhaustion float64 `yaml:"distance_before_exhaustion"`
	Exhausted                bool    `yaml:"exhausted"`
}

// openStore 按配置选择缓存：MongoDB集合优先，其次文件目录，都未设置时不缓存
func openStore(c config.Cache, client *mongo.Client) cache.Store {
	if c.DB != "" && c.Col != "" {
		if client == nil {
			log.Panic("cache.db/cache.col require a mongodb uri")
		}
		log.Infof("use mongodb cache %s.%s", c.DB, c.Col)
		return cache.NewMongo(mongoutil.GetMongoColl(client, config.InputPath{DB: c.DB, Col: c.Col}))
	}
	dir := lo.Ternary(c.Dir != "", c.Dir, *cacheDir)
	if dir == "" {
		log.Info("cache disabled")
		return nil
	}
	store, err := cache.NewFS(dir)
	if err != nil {
		log.Warnf("cache disabled: %v", err)
		return nil
	}
	log.Infof("use cache dir %s", dir)
	return store
}

// simulate 以给定速度运行一次仿真并汇总
func simulate(tmpl *task.Template, speeds []float64) report {
	m, err := tmpl.NewModel()
	if err != nil {
		log.Panicf("new model err: %v", err)
	}
	if _, err := m.Run(speeds); err != nil {
		log.Panicf("simulation err: %v", err)
	}
	trace, err := m.Trace()
	if err != nil {
		log.Panic(err)
	}
	successful, err := m.WasSuccessful()
	if err != nil {
		log.Panic(err)
	}
	exhaustion, exhausted, err := m.DistanceBeforeExhaustion()
	if err != nil {
		log.Panic(err)
	}
	log.Infof("distance %.2fkm, time %.0fs (%s), final soc %.2f%%, successful %v",
		trace.DistanceTravelled, trace.TimeTaken, trace.FinishTime, trace.FinalSOC, successful)
	if exhausted {
		log.Warnf("battery exhausted after %.2fkm", exhaustion)
	}
	return report{
		Speeds:                   speeds,
		DistanceTravelled:        trace.DistanceTravelled,
		TimeTaken:                trace.TimeTaken,
		FinishTime:               trace.FinishTime,
		FinalSOC:                 trace.FinalSOC,
		Successful:               successful,
		DistanceBeforeExhaustion: exhaustion,
		Exhausted:                exhausted,
	}
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", lo.Keys(logLevels))
	}
	// 获取配置
	c, err := config.Load(*configPath, *configData)
	if err != nil {
		log.Panic(err)
	}
	if *mongoURI != "" {
		c.Input.URI = *mongoURI
	}
	if *listen != "" {
		c.Serve.Listen = *listen
	}
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		log.Panicf("config err: %v", err)
	}
	log.Debugf("%+v", rc.All)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var client *mongo.Client
	if rc.All.Input.URI != "" {
		client = mongoutil.NewClient(rc.All.Input.URI)
		defer client.Disconnect(context.Background())
	}
	tmpl, err := task.FromConfig(ctx, rc, openStore(rc.All.Cache, client), input.NewSource(client))
	if err != nil {
		log.Panicf("compile err: %v", err)
	}

	var r report
	switch *mode {
	case "simulate":
		r = simulate(tmpl, lo.Times(tmpl.DrivingDivisions(), func(int) float64 { return *speed }))
	case "optimize":
		res, err := optimization.Optimize(tmpl, rc.All.Optimization, nil, nil)
		if err != nil {
			log.Panicf("optimization err: %v", err)
		}
		r = simulate(tmpl, res.Best.Genes)
		r.RunID, r.Fitness = res.RunID, res.Best.Fitness
	case "serve":
		addr := lo.Ternary(rc.All.Serve.Listen != "", rc.All.Serve.Listen, ":51102")
		if err := service.RunServer(ctx, addr, service.NewServer(tmpl, rc.All.Optimization)); err != nil {
			log.Panicf("server err: %v", err)
		}
		return
	default:
		log.Panicf("unknown mode %q", *mode)
	}
	r.Mode = *mode

	if *outputPath == "" {
		return
	}
	out, err := yaml.Marshal(r)
	if err != nil {
		log.Panic(err)
	}
	if err := os.WriteFile(*outputPath, out, 0o644); err != nil {
		log.Panicf("write output err: %v", err)
	}
	log.Infof("result written to %s", *outputPath)
}
