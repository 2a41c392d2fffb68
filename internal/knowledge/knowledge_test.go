package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerWindow(t *testing.T) {
	c := NewChunker(ChunkDefault, 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, c.Split("abcdefghij"))
}

func TestChunkerWindowMultibyte(t *testing.T) {
	c := NewChunker("", 2, 0)
	assert.Equal(t, []string{"知识", "库"}, c.Split("知识库"))
}

func TestChunkerEmptyAndDefaults(t *testing.T) {
	c := NewChunker(ChunkDefault, 0, -5)
	assert.Equal(t, 800, c.Size())
	assert.Equal(t, 0, c.Overlap())
	assert.Nil(t, c.Split("   \n"))

	// overlap 不小于 size 时回退
	assert.Equal(t, 2, NewChunker(ChunkDefault, 8, 8).Overlap())
}

func TestChunkerRecursiveRespectsSize(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta.\n", 10) + "\n\n" + strings.Repeat("x", 50)
	c := NewChunker(ChunkRecursive, 30, 5)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 30, chunk)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
	assert.Equal(t, "alpha beta gamma delta.", chunks[0])
}

func TestChunkerRecursiveKeepsParagraphs(t *testing.T) {
	c := NewChunker(ChunkRecursive, 100, 0)
	assert.Equal(t, []string{"first para\n\nsecond para"}, c.Split("first para\n\nsecond para"))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, err := e.EmbedBatch(context.Background(), []string{"Hello world", "hello, WORLD!", "other"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 64)
	assert.Equal(t, vecs[0], vecs[1])
	assert.NotEqual(t, vecs[0], vecs[2])
	assert.Equal(t, "local-hash", e.Name())
}

func TestHashEmbedderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(" ", "", "")
	assert.Error(t, err)
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.2,0.2]},
			{"object":"embedding","index":0,"embedding":[0.1,0.1]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimensions())

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.1}, {0.2, 0.2}}, vecs)
}

func TestMemoryVectorStore(t *testing.T) {
	s := NewMemoryVectorStore()
	ctx := context.Background()

	emb := []float32{1, 2}
	require.NoError(t, s.Upsert(ctx, "c1", []VectorRecord{
		{ID: "u_0", Source: "u", Chunk: 0, Text: "a", Embedding: emb},
		{ID: "u_1", Source: "u", Chunk: 1, Text: "b", Embedding: emb},
	}))
	// 同ID覆盖
	require.NoError(t, s.Upsert(ctx, "c1", []VectorRecord{{ID: "u_1", Text: "b2", Embedding: emb}}))
	emb[0] = 99

	n, err := s.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, ok := s.Get("c1", "u_1")
	require.True(t, ok)
	assert.Equal(t, "b2", r.Text)
	assert.Equal(t, float32(1), r.Embedding[0])

	assert.Error(t, s.Upsert(ctx, "c1", []VectorRecord{{Text: "no id"}}))

	require.NoError(t, s.DeleteCollection(ctx, "c1"))
	n, _ = s.Count(ctx, "c1")
	assert.Equal(t, 0, n)
}

func TestMilvusCollectionName(t *testing.T) {
	assert.Equal(t, "ragatool_my_docs_2024", milvusCollectionName("ragatool", "My Docs-2024"))
	assert.Equal(t, "p_3f2a_b", milvusCollectionName("p", "3f2a.b"))
}

func TestMilvusMetric(t *testing.T) {
	assert.Equal(t, "IP", string(milvusMetric("dot")))
	assert.Equal(t, "L2", string(milvusMetric("euclidean")))
	assert.Equal(t, "COSINE", string(milvusMetric("")))
}
