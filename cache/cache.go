// 缓存：按生成对象的配置段哈希存取路线、比赛、天气等预处理数据
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var log = logrus.WithField("module", "cache")

var (
	// ErrNotFound 缓存中不存在该键
	ErrNotFound = errors.New("cache entry not found")
	// ErrCorrupted 缓存内容无法解码
	ErrCorrupted = errors.New("cache entry corrupted")
)

// 缓存对象类别，作为键前缀
const (
	KindRoute   = "route"
	KindRace    = "race"
	KindWeather = "weather"
)

// hashLength 键中哈希的十六进制字符数
const hashLength = 12

// Store 键值存储
// 说明：实现不保证线程安全，需在启动并发评估前由单个协程完成缓存填充
type Store interface {
	// Get 读取，不存在时返回ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put 写入，已存在时覆盖
	Put(ctx context.Context, key string, data []byte) error
}

// Codec 某一类缓存对象的显式序列化格式
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(data []byte) (T, error)
}

// Key 生成缓存键
// 功能：对配置段做yaml序列化后取SHA-256，键为 <kind>/<前12位十六进制>
// 参数：kind-对象类别，section-生成该对象的配置段
func Key(kind string, section any) (string, error) {
	b, err := yaml.Marshal(section)
	if err != nil {
		return "", errors.Wrapf(err, "hash %s config", kind)
	}
	sum := sha256.Sum256(b)
	return kind + "/" + hex.EncodeToString(sum[:])[:hashLength], nil
}

// Load 带缓存的加载
// 功能：优先从缓存读取，未命中或要求强制重建时调用build生成并写回缓存
// 参数：ctx-上下文，store-缓存（nil表示不使用缓存），key-缓存键，codec-序列化格式，force-强制重建，build-生成函数
// 返回：对象；内容无法解码时返回ErrCorrupted，build失败或存储读取出错时返回对应错误
// 说明：写回失败只记录警告，不影响返回值
func Load[T any](ctx context.Context, store Store, key string, codec Codec[T], force bool, build func() (T, error)) (T, error) {
	if store != nil && !force {
		data, err := store.Get(ctx, key)
		switch {
		case err == nil:
			v, err := codec.Decode(data)
			if err != nil {
				if !errors.Is(err, ErrCorrupted) {
					err = corrupted(err)
				}
				return v, errors.Wrapf(err, "%s (possible cache corruption, use force_rebuild)", key)
			}
			log.Debugf("hit %s", key)
			return v, nil
		case errors.Is(err, ErrNotFound):
			log.Debugf("miss %s", key)
		case errors.Is(err, ErrCorrupted):
			var zero T
			return zero, errors.Wrapf(err, "%s (possible cache corruption, use force_rebuild)", key)
		default:
			var zero T
			return zero, errors.Wrapf(err, "read %s", key)
		}
	}
	v, err := build()
	if err != nil {
		return v, err
	}
	if store != nil {
		if err := store.Put(ctx, key, codec.Encode(v)); err != nil {
			log.Warnf("failed to write %s: %v", key, err)
		} else {
			log.Infof("cached %s", key)
		}
	}
	return v, nil
}
