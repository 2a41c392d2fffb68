package knowledge

import (
	"context"
	"fmt"
	"sync"
)

// VectorRecord 一条待写入的向量
type VectorRecord struct {
	ID        string
	Source    string
	Chunk     int
	Text      string
	Embedding []float32
	Timestamp int64
}

// VectorStore 向量存储抽象，按 collection 隔离
type VectorStore interface {
	Upsert(ctx context.Context, collectionID string, records []VectorRecord) error
	Count(ctx context.Context, collectionID string) (int, error)
	DeleteCollection(ctx context.Context, collectionID string) error
	Close() error
}

// MemoryVectorStore 进程内向量存储
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]VectorRecord
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{collections: make(map[string]map[string]VectorRecord)}
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, collectionID string, records []VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collectionID]
	if !ok {
		col = make(map[string]VectorRecord)
		s.collections[collectionID] = col
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record for %s chunk %d has no id", r.Source, r.Chunk)
		}
		r.Embedding = append([]float32(nil), r.Embedding...)
		col[r.ID] = r
	}
	return nil
}

func (s *MemoryVectorStore) Count(_ context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collectionID]), nil
}

// Get 按ID读取记录
func (s *MemoryVectorStore) Get(collectionID, id string) (VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.collections[collectionID][id]
	return r, ok
}

func (s *MemoryVectorStore) DeleteCollection(_ context.Context, collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collectionID)
	return nil
}

func (s *MemoryVectorStore) Close() error { return nil }
