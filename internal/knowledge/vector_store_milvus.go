package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address          string
	Username         string
	Password         string
	CollectionPrefix string
	VectorSize       int
	Distance         string
	Database         string
	Timeout          time.Duration
	Logger           *zap.Logger
}

// MilvusVectorStore 基于 Milvus 的向量存储，每个 collectionId 对应一个 Milvus 集合
type MilvusVectorStore struct {
	milvusClient     client.Client
	collectionPrefix string
	vectorSize       int
	metric           entity.MetricType
	logger           *zap.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(ctx context.Context, opts MilvusOptions) (*MilvusVectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "ragatool"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	milvusClient, err := client.NewClient(dialCtx, client.Config{
		Address:  opts.Address,
		DBName:   opts.Database,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &MilvusVectorStore{
		milvusClient:     milvusClient,
		collectionPrefix: opts.CollectionPrefix,
		vectorSize:       opts.VectorSize,
		metric:           milvusMetric(opts.Distance),
		logger:           opts.Logger,
		ensured:          make(map[string]bool),
	}, nil
}

func milvusMetric(value string) entity.MetricType {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return entity.IP
	case "L2", "EUCLIDEAN":
		return entity.L2
	default:
		return entity.COSINE
	}
}

// milvusCollectionName 集合名只允许字母数字下划线
func milvusCollectionName(prefix, collectionID string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('_')
	for _, r := range strings.ToLower(collectionID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *MilvusVectorStore) collectionName(collectionID string) string {
	return milvusCollectionName(s.collectionPrefix, collectionID)
}

func (s *MilvusVectorStore) ensureCollection(ctx context.Context, collectionID string) (string, error) {
	name := s.collectionName(collectionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[name] {
		return name, nil
	}

	exists, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription(fmt.Sprintf("collection %s vectors", collectionID)).
			WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(512).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName("source").WithDataType(entity.FieldTypeVarChar).WithMaxLength(2048)).
			WithField(entity.NewField().WithName("chunk").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("ts").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("content").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.vectorSize)))

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return "", fmt.Errorf("failed to create collection: %w", err)
		}

		index, err := entity.NewIndexHNSW(s.metric, 8, 64)
		if err != nil {
			return "", fmt.Errorf("failed to build index: %w", err)
		}
		if err := s.milvusClient.CreateIndex(ctx, name, "vector", index, false); err != nil {
			s.logger.Warn("创建Milvus索引失败", zap.String("collection", name), zap.Error(err))
		}
	}

	s.ensured[name] = true
	return name, nil
}

// Upsert 按ID写入或覆盖向量，维度不足时补零
func (s *MilvusVectorStore) Upsert(ctx context.Context, collectionID string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	name, err := s.ensureCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	ids := make([]string, len(records))
	sources := make([]string, len(records))
	chunks := make([]int64, len(records))
	stamps := make([]int64, len(records))
	contents := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("embedding for %s is empty", r.ID)
		}
		vec := make([]float32, s.vectorSize)
		copy(vec, r.Embedding)

		ids[i] = r.ID
		sources[i] = r.Source
		chunks[i] = int64(r.Chunk)
		stamps[i] = r.Timestamp
		contents[i] = r.Text
		vectors[i] = vec
	}

	_, err = s.milvusClient.Upsert(ctx, name, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("chunk", chunks),
		entity.NewColumnInt64("ts", stamps),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, name, false); err != nil {
		s.logger.Warn("刷新Milvus集合失败", zap.String("collection", name), zap.Error(err))
	}
	return nil
}

// Count 集合中的向量数量
func (s *MilvusVectorStore) Count(ctx context.Context, collectionID string) (int, error) {
	name := s.collectionName(collectionID)
	exists, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}

	stats, err := s.milvusClient.GetCollectionStatistics(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("invalid row_count %q: %w", stats["row_count"], err)
	}
	return count, nil
}

// DeleteCollection 删除整个集合
func (s *MilvusVectorStore) DeleteCollection(ctx context.Context, collectionID string) error {
	name := s.collectionName(collectionID)

	s.mu.Lock()
	delete(s.ensured, name)
	s.mu.Unlock()

	exists, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil
	}
	return s.milvusClient.DropCollection(ctx, name)
}

func (s *MilvusVectorStore) Close() error {
	return s.milvusClient.Close()
}
