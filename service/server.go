package service

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/solarsim/optimization"
	"github.com/tsinghua-fib-lab/solarsim/simulation"
	"github.com/tsinghua-fib-lab/solarsim/task"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"google.golang.org/protobuf/types/known/structpb"
)

var log = logrus.WithField("module", "service")

// 服务与方法路径
const (
	ServiceName = "solarsim.v1.SimulationService"

	SimulateProcedure         = "/" + ServiceName + "/Simulate"
	OptimizeProcedure         = "/" + ServiceName + "/Optimize"
	DrivingDivisionsProcedure = "/" + ServiceName + "/DrivingDivisions"
)

// Server 仿真RPC服务
// 功能：基于同一个编译好的Template提供仿真、优化与速度数组长度查询
// 说明：请求与响应均为google.protobuf.Struct；同一时刻只运行一个优化任务
type Server struct {
	tmpl *task.Template
	opt  config.Optimization

	optimizing sync.Mutex
}

// NewServer 创建服务
// 参数：tmpl-模型模板，opt-优化器默认配置（请求中可覆盖代数与种群规模）
func NewServer(tmpl *task.Template, opt config.Optimization) *Server {
	return &Server{tmpl: tmpl, opt: opt}
}

// NewHandler 注册全部方法，返回挂载路径与Handler
func NewHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(SimulateProcedure, connect.NewUnaryHandler(SimulateProcedure, s.Simulate, opts...))
	mux.Handle(OptimizeProcedure, connect.NewUnaryHandler(OptimizeProcedure, s.Optimize, opts...))
	mux.Handle(DrivingDivisionsProcedure, connect.NewUnaryHandler(DrivingDivisionsProcedure, s.DrivingDivisions, opts...))
	return "/" + ServiceName + "/", mux
}

// RunServer 启动服务，ctx结束时关闭
func RunServer(ctx context.Context, address string, s *Server) error {
	mux := http.NewServeMux()
	path, handler := NewHandler(s)
	mux.Handle(path, handler)
	srv := &http.Server{Addr: address, Handler: mux}
	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			log.Warnf("close server: %v", err)
		}
	}()
	log.Infof("server listening at %v", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// DrivingDivisions 返回速度数组应有的长度
// 响应：{"driving_divisions": n, "speed_dt": 秒}
func (s *Server) DrivingDivisions(
	ctx context.Context, req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	res, err := structpb.NewStruct(map[string]any{
		"driving_divisions": s.tmpl.DrivingDivisions(),
		"speed_dt":          s.tmpl.Hyperparameters().SpeedDt,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// Simulate 运行一次仿真
// 请求：{"speeds": [...], "fields": ["default", ...]}，fields为空时只返回模型结果
// 响应：{"result": 按return_type的结果, "successful": bool, "finish_time": 比赛时间,
// "distance_before_exhaustion": km, "exhausted": bool, "fields": {名称: 值}}
func (s *Server) Simulate(
	ctx context.Context, req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	body := req.Msg.GetFields()
	speeds, err := floatList(body["speeds"])
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Wrap(err, "speeds"))
	}
	names, err := stringList(body["fields"])
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Wrap(err, "fields"))
	}

	m, err := s.tmpl.NewModel()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	result, err := m.Run(speeds)
	if err != nil {
		if errors.Is(err, task.ErrSpeedLength) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	successful, err := m.WasSuccessful()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	trace, err := m.Trace()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	exhaustion, exhausted, err := m.DistanceBeforeExhaustion()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	fields, err := trace.Fields(names...)
	if err != nil {
		if errors.Is(err, simulation.ErrUnknownField) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := map[string]any{
		"result":                     lo.ToAnySlice(result),
		"successful":                 successful,
		"finish_time":                trace.FinishTime,
		"distance_before_exhaustion": exhaustion,
		"exhausted":                  exhausted,
		"fields":                     lo.MapValues(fields, func(v any, _ string) any { return plain(v) }),
	}
	res, err := structpb.NewStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// Optimize 运行差分进化优化
// 请求：{"generations": n, "population_size": n, "warm_start": [...]}，均可省略
// 响应：{"run_id", "speeds", "fitness", "history", "generations", "evaluations", "converged"}
func (s *Server) Optimize(
	ctx context.Context, req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	body := req.Msg.GetFields()
	opt := s.opt
	if v, ok := body["generations"]; ok {
		opt.Generations = int(v.GetNumberValue())
	}
	if v, ok := body["population_size"]; ok {
		opt.PopulationSize = int(v.GetNumberValue())
	}
	if err := opt.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	warmStart, err := floatList(body["warm_start"])
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Wrap(err, "warm_start"))
	}
	if len(warmStart) == 0 {
		warmStart = nil
	}

	if !s.optimizing.TryLock() {
		return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("another optimization is running"))
	}
	defer s.optimizing.Unlock()
	result, err := optimization.Optimize(s.tmpl, opt, warmStart, nil)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	res, err := structpb.NewStruct(map[string]any{
		"run_id":      result.RunID,
		"speeds":      lo.ToAnySlice(result.Best.Genes),
		"fitness":     finite(result.Best.Fitness),
		"history":     lo.Map(result.History, func(v float64, _ int) any { return finite(v) }),
		"generations": result.Generations,
		"evaluations": result.Evaluations,
		"converged":   result.Converged,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}
