package optimization

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"github.com/tsinghua-fib-lab/solarsim/utils/container"
	"github.com/tsinghua-fib-lab/solarsim/utils/randengine"
	"gonum.org/v1/gonum/stat"
)

var log = logrus.WithField("module", "optimization")

// 精英档案容量
const eliteSize = 10

// Objective 目标函数，返回值越大越好
// 说明：会被多个协程并发调用，实现不得共享可变状态
type Objective func(genes []float64) (float64, error)

// Candidate 候选解
type Candidate struct {
	Genes   []float64
	Fitness float64
}

// Progress 每代结束时的进度
type Progress struct {
	RunID      string
	Generation int     // 从1开始
	Best       float64 // 当前最优适应度
	Mean       float64 // 种群平均适应度
	Std        float64
	Evaluation int // 累计评估次数
}

// Result 优化结果
type Result struct {
	RunID       string
	Best        Candidate
	Elite       []Candidate // 评估过的最优若干候选，按适应度降序
	History     []float64   // 每代最优适应度，下标0为初始种群
	Generations int         // 实际迭代代数
	Evaluations int
	Converged   bool // 是否因种群收敛提前结束
}

// Optimizer 差分进化优化器
// 功能：在每个基因[min_speed, max_speed]的箱约束内最大化目标函数
// 说明：采用DE/rand/1/bin策略；同一代的候选并发评估，随机数只在主协程中生成
type Optimizer struct {
	cfg       config.Optimization
	dim       int
	objective Objective
	rng       *randengine.Engine

	warmStart    []float64
	onGeneration func(Progress)
}

// New 创建优化器
// 参数：cfg-优化器配置，dim-基因个数，objective-目标函数
func New(cfg config.Optimization, dim int, objective Objective) *Optimizer {
	return &Optimizer{
		cfg:       cfg,
		dim:       dim,
		objective: objective,
		rng:       randengine.New(cfg.Seed),
	}
}

// SetWarmStart 用给定解替换初始种群的第一个个体（越界部分裁剪到边界）
func (o *Optimizer) SetWarmStart(genes []float64) *Optimizer {
	o.warmStart = genes
	return o
}

// OnGeneration 设置每代结束时的回调
func (o *Optimizer) OnGeneration(fn func(Progress)) *Optimizer {
	o.onGeneration = fn
	return o
}

func (o *Optimizer) clamp(v float64) float64 {
	return lo.Clamp(v, o.cfg.MinSpeed, o.cfg.MaxSpeed)
}

// evaluate 评估单个候选，出错或panic时返回-INF
func (o *Optimizer) evaluate(genes []float64) (fitness float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("candidate %v panicked: %v", genes, r)
			fitness = -mathutil.INF
		}
	}()
	f, err := o.objective(genes)
	if err != nil || math.IsNaN(f) {
		log.Debugf("candidate %v failed: %v", genes, err)
		return -mathutil.INF
	}
	return f
}

// evaluateAll 并发评估一组候选
// 说明：Workers>0时分批评估，每批最多Workers个并发
func (o *Optimizer) evaluateAll(population [][]float64) []float64 {
	if o.cfg.Workers <= 0 {
		return parallel.GoMap(population, o.evaluate)
	}
	out := make([]float64, 0, len(population))
	for _, batch := range lo.Chunk(population, o.cfg.Workers) {
		out = append(out, parallel.GoMap(batch, o.evaluate)...)
	}
	return out
}

// mutate 生成第i个个体的试验向量
func (o *Optimizer) mutate(population [][]float64, i int) []float64 {
	idx := o.rng.Distinct(len(population), 3, i)
	a, b, c := population[idx[0]], population[idx[1]], population[idx[2]]
	target := population[i]
	forced := o.rng.Intn(o.dim)
	trial := make([]float64, o.dim)
	for j := range trial {
		if j == forced || o.rng.PTrue(o.cfg.Crossover) {
			trial[j] = o.clamp(a[j] + o.cfg.Mutation*(b[j]-c[j]))
		} else {
			trial[j] = target[j]
		}
	}
	return trial
}

// Run 执行优化
// 返回：优化结果；基因个数或种群规模不合法时返回错误
// 算法说明：
// 1. 初始种群在边界内均匀采样，可选用热启动解替换第一个个体
// 2. 每代对每个个体做差分变异与二项交叉得到试验向量，并发评估
// 3. 试验向量不差于原个体时替换（贪心选择）
// 4. 记录精英档案与每代最优值，回调并输出心跳日志
// 5. 种群适应度标准差不超过 tolerance*|平均值| 时提前结束
func (o *Optimizer) Run() (*Result, error) {
	if o.dim <= 0 {
		return nil, errors.Errorf("optimization needs at least one gene, got %d", o.dim)
	}
	if o.cfg.PopulationSize < 4 {
		return nil, errors.Errorf("population_size must be >= 4, got %d", o.cfg.PopulationSize)
	}
	res := &Result{RunID: ksuid.New().String()}
	log.Infof("run %s: %d genes in [%v, %v], population %d, %d generations",
		res.RunID, o.dim, o.cfg.MinSpeed, o.cfg.MaxSpeed, o.cfg.PopulationSize, o.cfg.Generations)

	population := make([][]float64, o.cfg.PopulationSize)
	for i := range population {
		population[i] = lo.Times(o.dim, func(int) float64 { return o.rng.Uniform(o.cfg.MinSpeed, o.cfg.MaxSpeed) })
	}
	if len(o.warmStart) == o.dim {
		population[0] = lo.Map(o.warmStart, func(v float64, _ int) float64 { return o.clamp(v) })
	} else if o.warmStart != nil {
		log.Warnf("ignore warm start with %d genes, want %d", len(o.warmStart), o.dim)
	}

	elite := container.NewPriorityQueue[[]float64]()
	record := func(candidates [][]float64, fitness []float64) {
		for i, f := range fitness {
			if f > -mathutil.INF {
				elite.BoundedPush(candidates[i], f, eliteSize)
			}
		}
		res.Evaluations += len(candidates)
	}
	fitness := o.evaluateAll(population)
	record(population, fitness)
	res.History = append(res.History, lo.Max(fitness))

	for g := 1; g <= o.cfg.Generations; g++ {
		trials := make([][]float64, len(population))
		for i := range population {
			trials[i] = o.mutate(population, i)
		}
		trialFitness := o.evaluateAll(trials)
		record(trials, trialFitness)
		for i, f := range trialFitness {
			if f >= fitness[i] {
				population[i], fitness[i] = trials[i], f
			}
		}

		mean, std := stat.MeanStdDev(fitness, nil)
		p := Progress{
			RunID:      res.RunID,
			Generation: g,
			Best:       lo.Max(fitness),
			Mean:       mean,
			Std:        std,
			Evaluation: res.Evaluations,
		}
		res.History = append(res.History, p.Best)
		res.Generations = g
		log.Infof("run %s generation %d: best %.4f mean %.4f std %.4f", res.RunID, g, p.Best, p.Mean, p.Std)
		if o.onGeneration != nil {
			o.onGeneration(p)
		}
		if o.cfg.Tolerance > 0 && std <= o.cfg.Tolerance*math.Abs(mean) {
			res.Converged = true
			log.Infof("run %s converged at generation %d", res.RunID, g)
			break
		}
	}

	bestFitness := lo.Max(fitness)
	_, best, _ := lo.FindIndexOf(fitness, func(f float64) bool { return f == bestFitness })
	res.Best = Candidate{Genes: population[best], Fitness: fitness[best]}
	genes, scores := elite.Descending()
	res.Elite = lo.Map(genes, func(g []float64, i int) Candidate { return Candidate{Genes: g, Fitness: scores[i]} })
	log.Infof("run %s finished: best %.4f after %d evaluations", res.RunID, res.Best.Fitness, res.Evaluations)
	return res, nil
}
