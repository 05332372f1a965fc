package cache

import (
	"context"
	"os"
	"path/filepath"

	"git.fiblab.net/general/common/v2/protoutil"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// FS 文件系统缓存，每个键对应 <dir>/<key>.pb
// 说明：文件内容为包裹编码结果的google.protobuf.BytesValue
type FS struct {
	dir string
}

// NewFS 创建文件系统缓存
// 功能：检查缓存目录，不存在则创建
// 参数：dir-缓存目录
// 返回：缓存指针，目录无法创建或不是目录时返回错误
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache dir %s", dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "stat cache dir %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("cache path %s is not a directory", dir)
	}
	return &FS{dir: dir}, nil
}

func (s *FS) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key)+".pb")
}

// Get 读取缓存文件
// 返回：编码结果；文件不存在返回ErrNotFound，文件不是合法的BytesValue返回ErrCorrupted
func (s *FS) Get(_ context.Context, key string) ([]byte, error) {
	var v wrapperspb.BytesValue
	err := protoutil.UnmarshalFromFile(&v, s.path(key))
	var pathErr *os.PathError
	switch {
	case err == nil:
		return v.GetValue(), nil
	case errors.Is(err, os.ErrNotExist):
		return nil, errors.Wrap(ErrNotFound, key)
	case errors.As(err, &pathErr):
		return nil, err
	default:
		return nil, errors.Wrap(corrupted(err), key)
	}
}

// Put 写入缓存文件（先写临时文件再重命名）
func (s *FS) Put(_ context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := protoutil.MarshalToFile(wrapperspb.Bytes(data), tmp); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return os.Rename(tmp, p)
}

// Mongo MongoDB缓存，文档结构 {_id: key, data: bytes}
type Mongo struct {
	coll *mongo.Collection
}

type mongoEntry struct {
	Key  string `bson:"_id"`
	Data []byte `bson:"data"`
}

// NewMongo 使用给定集合作为缓存
func NewMongo(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

// Get 按_id查询
func (s *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	var e mongoEntry
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return e.Data, nil
}

// Put 按_id覆盖写入
func (s *Mongo) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, mongoEntry{Key: key, Data: data}, options.Replace().SetUpsert(true))
	return err
}
