package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/dispatcher"
	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/extract"
	"github.com/ragatool/backend-go/internal/knowledge"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/models"
	"go.uber.org/zap"
)

// TaskSubmitter 提交后台任务
type TaskSubmitter interface {
	Submit(ctx context.Context, collectionID, name string, job dispatcher.Job) (string, error)
}

// Crawler 网页抓取
type Crawler interface {
	Crawl(ctx context.Context, startURL string, opts extract.CrawlOptions) ([]extract.Page, error)
}

// ImportSettings 分块参数，零值使用配置默认值
type ImportSettings struct {
	ChunkType    knowledge.ChunkType `json:"chunk_type" validate:"omitempty,oneof=DEFAULT RECURSIVE_CHARACTER"`
	ChunkSize    int                 `json:"chunk_size" validate:"gte=0"`
	ChunkOverlap int                 `json:"chunk_overlap" validate:"gte=0"`
	NoChunks     bool                `json:"no_chunks"`
}

// ImportURLRequest URL导入请求
type ImportURLRequest struct {
	URL      string `json:"url" validate:"required,url"`
	MaxDepth int    `json:"max_depth" validate:"gte=0,lte=5"`
	Filter   string `json:"filter"`
	ImportSettings
}

// ImportTextRequest 纯文本导入请求
type ImportTextRequest struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
	ImportSettings
}

// ImportService 导入服务，把抓取/分块/向量化/写入组合成可取消的后台任务
type ImportService struct {
	tasks     TaskSubmitter
	publisher dispatcher.Publisher
	crawler   Crawler
	embedder  knowledge.Embedder
	store     knowledge.VectorStore
	cfg       config.KnowledgeConfig
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewImportService 创建导入服务
func NewImportService(tasks TaskSubmitter, publisher dispatcher.Publisher, crawler Crawler,
	embedder knowledge.Embedder, store knowledge.VectorStore, cfg config.KnowledgeConfig, log *zap.Logger) *ImportService {
	if log == nil {
		log = logger.Named("import")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &ImportService{
		tasks:     tasks,
		publisher: publisher,
		crawler:   crawler,
		embedder:  embedder,
		store:     store,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    log,
		now:       time.Now,
	}
}

// ChunkTypes 支持的分块策略
func (s *ImportService) ChunkTypes() []knowledge.ChunkType {
	return []knowledge.ChunkType{knowledge.ChunkDefault, knowledge.ChunkRecursive}
}

// ImportURL 提交URL导入任务，返回任务ID
func (s *ImportService) ImportURL(ctx context.Context, collectionID string, req ImportURLRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", apperrors.NewErrorTranslator().Translate(err)
	}
	var filter *regexp.Regexp
	if req.Filter != "" {
		var err error
		if filter, err = regexp.Compile(req.Filter); err != nil {
			return "", apperrors.NewInvalidInputError("filter", err.Error())
		}
	}

	run := &importRun{
		service:      s,
		collectionID: collectionID,
		source:       req.URL,
		chunker:      s.chunker(req.ImportSettings),
		noChunks:     req.NoChunks,
		fetch: func(ctx context.Context) ([]extract.Page, error) {
			s.publish(ctx, collectionID, models.TopicInfo, fmt.Sprintf("Crawling and parsing %s ....", req.URL))
			return s.crawler.Crawl(ctx, req.URL, extract.CrawlOptions{MaxDepth: req.MaxDepth, Filter: filter})
		},
	}
	return s.submit(ctx, collectionID, req.URL, run)
}

// ImportText 提交纯文本导入任务
func (s *ImportService) ImportText(ctx context.Context, collectionID string, req ImportTextRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", apperrors.NewErrorTranslator().Translate(err)
	}

	run := &importRun{
		service:      s,
		collectionID: collectionID,
		source:       req.Name,
		chunker:      s.chunker(req.ImportSettings),
		noChunks:     req.NoChunks,
		fetch: func(context.Context) ([]extract.Page, error) {
			return []extract.Page{{URL: req.Name, Text: req.Content}}, nil
		},
	}
	return s.submit(ctx, collectionID, req.Name, run)
}

func (s *ImportService) submit(ctx context.Context, collectionID, source string, run *importRun) (string, error) {
	s.publish(ctx, collectionID, models.TopicTask, "START IMPORT")
	return s.tasks.Submit(ctx, collectionID, fmt.Sprintf("Importing %s to %s", source, collectionID), run.execute)
}

func (s *ImportService) chunker(settings ImportSettings) *knowledge.Chunker {
	size, overlap := settings.ChunkSize, settings.ChunkOverlap
	if size == 0 {
		size, overlap = s.cfg.ChunkSize, s.cfg.ChunkOverlap
	}
	return knowledge.NewChunker(settings.ChunkType, size, overlap)
}

func (s *ImportService) publish(ctx context.Context, collectionID string, topic models.Topic, text string) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, collectionID, topic, text)
	}
}

// importRun 单次导入任务的状态
type importRun struct {
	service      *ImportService
	collectionID string
	source       string
	chunker      *knowledge.Chunker
	noChunks     bool
	fetch        func(ctx context.Context) ([]extract.Page, error)

	chunkCount int
}

func (r *importRun) execute(ctx context.Context, token *dispatcher.CancelToken) error {
	s := r.service
	log := s.logger.With(zap.String("collection_id", r.collectionID), zap.String("source", r.source))

	s.publish(ctx, r.collectionID, models.TopicLock, fmt.Sprintf("Starting import of %s", r.source))

	pages, err := r.fetch(ctx)
	if token.Cancelled() {
		return r.cancelled(ctx)
	}
	if err != nil {
		return r.failed(ctx, log, err)
	}
	if len(pages) == 0 {
		s.publish(ctx, r.collectionID, models.TopicUnlock, fmt.Sprintf("Import of %s completed.", r.source))
		s.publish(ctx, r.collectionID, models.TopicLog, fmt.Sprintf("NOTHING imported from %s. Parsed no pages.", r.source))
		return nil
	}
	s.publish(ctx, r.collectionID, models.TopicInfo, fmt.Sprintf("Parsed %d pages", len(pages)))

	ts := s.now().Unix()
	var records []knowledge.VectorRecord
	for _, page := range pages {
		chunks := []string{page.Text}
		if !r.noChunks {
			chunks = r.chunker.Split(page.Text)
		}
		for i, chunk := range chunks {
			records = append(records, knowledge.VectorRecord{
				ID:        fmt.Sprintf("%s_%d", page.URL, i),
				Source:    page.URL,
				Chunk:     i,
				Text:      chunk,
				Timestamp: ts,
			})
		}
	}
	r.chunkCount = len(records)
	s.publish(ctx, r.collectionID, models.TopicInfo, fmt.Sprintf("Created %d chunks. Embedding....", len(records)))

	batchSize := s.cfg.BatchSize
	for start := 0; start < len(records); start += batchSize {
		if token.Cancelled() {
			return r.cancelled(ctx)
		}
		batch := records[start:min(start+batchSize, len(records))]
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if token.Cancelled() {
			return r.cancelled(ctx)
		}
		if err != nil {
			return r.failed(ctx, log, fmt.Errorf("embedding with %s: %w", s.embedder.Name(), err))
		}
		if len(vectors) != len(batch) {
			return r.failed(ctx, log, fmt.Errorf("embedding with %s returned %d vectors for %d chunks", s.embedder.Name(), len(vectors), len(batch)))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
	}
	s.publish(ctx, r.collectionID, models.TopicInfo, "Embeddings created. Saving to Database....")

	for n, start := 1, 0; start < len(records); n, start = n+1, start+batchSize {
		if token.Cancelled() {
			return r.cancelled(ctx)
		}
		batch := records[start:min(start+batchSize, len(records))]
		if err := s.store.Upsert(ctx, r.collectionID, batch); err != nil {
			if token.Cancelled() {
				return r.cancelled(ctx)
			}
			return r.failed(ctx, log, err)
		}
		s.publish(ctx, r.collectionID, models.TopicInfo, fmt.Sprintf("Import of batch %d completed successfully", n))
	}

	s.publish(ctx, r.collectionID, models.TopicUnlock, fmt.Sprintf("Import of %s completed.", r.source))
	s.publish(ctx, r.collectionID, models.TopicLog, fmt.Sprintf("SUCCESSFUL imported from %s %d chunks of length %d, overlap %d.",
		r.source, r.chunkCount, r.chunker.Size(), r.chunker.Overlap()))
	log.Info("导入完成", zap.Int("chunks", r.chunkCount), zap.Int("pages", len(pages)))
	return nil
}

func (r *importRun) cancelled(ctx context.Context) error {
	s := r.service
	s.publish(ctx, r.collectionID, models.TopicUnlock, fmt.Sprintf("Import of %s was cancelled", r.source))
	s.publish(ctx, r.collectionID, models.TopicLog, fmt.Sprintf("CANCELLED Import from %s %d chunks of length %d, overlap %d.",
		r.source, r.chunkCount, r.chunker.Size(), r.chunker.Overlap()))
	return dispatcher.ErrCancelled
}

func (r *importRun) failed(ctx context.Context, log *zap.Logger, err error) error {
	s := r.service
	log.Error("导入失败", zap.Error(err))
	s.publish(ctx, r.collectionID, models.TopicUnlock, fmt.Sprintf("Import of %s failed", r.source))
	s.publish(ctx, r.collectionID, models.TopicLog, fmt.Sprintf("FAILED import from %s. Chunk size %d, overlap %d. Exception %v",
		r.source, r.chunker.Size(), r.chunker.Overlap(), err))
	return err
}
