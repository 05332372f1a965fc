package input

import (
	"context"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoSource 未配置数据来源
var ErrNoSource = errors.New("input has neither file nor database collection")

// Source 外部数据来源
// 功能：从yaml文件或MongoDB读取路线与天气数据集
// 说明：文件优先；只在Builder阶段调用，不在仿真循环中访问
type Source struct {
	client *mongo.Client
}

// NewSource 创建数据来源，client为nil时只能读取文件
func NewSource(client *mongo.Client) *Source {
	return &Source{client: client}
}

func (s *Source) collection(p config.InputPath) (*mongo.Collection, error) {
	if s.client == nil || p.DB == "" || p.Col == "" {
		return nil, errors.Wrapf(ErrNoSource, "%+v", p)
	}
	return mongoutil.GetMongoColl(s.client, p), nil
}

// Route 读取单圈路线
// 参数：ctx-上下文，p-数据来源
// 返回：校验后的路线数据
// 说明：MongoDB中每个文档是一条完整路线，取最新插入的一条
func (s *Source) Route(ctx context.Context, p config.InputPath) (route.Data, error) {
	var d route.Data
	if p.File != "" {
		log.Infof("load route from %s", p.File)
		if err := loadYAML(p.File, &d); err != nil {
			return d, err
		}
	} else {
		coll, err := s.collection(p)
		if err != nil {
			return d, err
		}
		log.Infof("start fetching route from %s.%s", p.DB, p.Col)
		opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
		if err := coll.FindOne(ctx, bson.D{}, opts).Decode(&d); err != nil {
			return d, errors.Wrapf(err, "fetch route from %s.%s", p.DB, p.Col)
		}
		log.Infof("finish fetching route from %s.%s", p.DB, p.Col)
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

// Forecast 读取天气预报
// 参数：ctx-上下文，c-天气配置
// 返回：校验后的天气数据，数据提供方与配置不一致时返回错误
// 说明：MongoDB中每个文档是一个站点，按插入顺序即沿路线顺序排列
func (s *Source) Forecast(ctx context.Context, c config.Weather) (*weather.Forecast, error) {
	f := &weather.Forecast{}
	if c.Input.File != "" {
		log.Infof("load weather from %s", c.Input.File)
		if err := loadYAML(c.Input.File, f); err != nil {
			return nil, err
		}
	} else {
		coll, err := s.collection(c.Input)
		if err != nil {
			return nil, err
		}
		log.Infof("start fetching weather from %s.%s", c.Input.DB, c.Input.Col)
		cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			return nil, errors.Wrapf(err, "fetch weather from %s.%s", c.Input.DB, c.Input.Col)
		}
		if err := cur.All(ctx, &f.Stations); err != nil {
			return nil, errors.Wrapf(err, "decode weather from %s.%s", c.Input.DB, c.Input.Col)
		}
		log.Infof("finish fetching %d weather stations from %s.%s", len(f.Stations), c.Input.DB, c.Input.Col)
	}
	switch f.Provider {
	case "":
		f.Provider = c.Provider
	case c.Provider:
	default:
		return nil, errors.Errorf("weather data is from %q but config expects %q", f.Provider, c.Provider)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	checkPeriod(f, c.Period)
	return f, nil
}
