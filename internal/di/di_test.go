package di

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/database"
	"github.com/ragatool/backend-go/internal/dispatcher"
	"github.com/ragatool/backend-go/internal/extension"
	"github.com/ragatool/backend-go/internal/hub"
	"github.com/ragatool/backend-go/internal/knowledge"
	"github.com/ragatool/backend-go/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Dispatcher.Workers = 1
	cfg.Knowledge.ChunkSize = 100
	cfg.Knowledge.VectorStore.Provider = "memory"
	cfg.Knowledge.VectorStore.Milvus.VectorSize = 32
	return cfg
}

// newTestContainer 用 sqlmock 数据库代替 PostgreSQL 构建完整容器
func newTestContainer(t *testing.T, cfg *config.Config) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := database.OpenWithConn(conn, logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = db.Close()
	})

	c := InitContainer()
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))
	require.NoError(t, c.Provide(func() *zap.Logger { return zap.NewNop() }))
	require.NoError(t, c.Provide(func() *database.Database { return db }))
	require.NoError(t, RegisterServices(c))
}

func TestContainerBasicOperations(t *testing.T) {
	container := InitContainer()
	assert.Same(t, container, GetContainer())

	type TestService struct {
		Name string
	}
	require.NoError(t, container.Provide(func() *TestService {
		return &TestService{Name: "test"}
	}))

	svc, err := Resolve[*TestService]()
	require.NoError(t, err)
	assert.Equal(t, "test", svc.Name)
}

func TestRegisterServicesResolvesCore(t *testing.T) {
	newTestContainer(t, testConfig())

	err := Invoke(func(
		h *hub.MessageHub,
		d *dispatcher.Dispatcher,
		m *extension.Manager,
		imports *services.ImportService,
		tasks *services.TaskService,
		logs *services.LogService,
	) {
		assert.NotNil(t, h)
		assert.NotNil(t, d)
		assert.NotNil(t, m.Registry())
		assert.NotNil(t, imports)
		assert.NotNil(t, tasks)
		assert.NotNil(t, logs)
	})
	require.NoError(t, err)

	d, err := Resolve[*dispatcher.Dispatcher]()
	require.NoError(t, err)
	h, err := Resolve[*hub.MessageHub]()
	require.NoError(t, err)
	t.Cleanup(h.Close)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
}

func TestEmbedderFallsBackToHash(t *testing.T) {
	newTestContainer(t, testConfig())

	emb, err := Resolve[knowledge.Embedder]()
	require.NoError(t, err)
	assert.Equal(t, "local-hash", emb.Name())
	assert.Equal(t, 32, emb.Dimensions())

	store, err := Resolve[knowledge.VectorStore]()
	require.NoError(t, err)
	assert.IsType(t, &knowledge.MemoryVectorStore{}, store)
}

func TestEmbedderUsesOpenAIWithKey(t *testing.T) {
	cfg := testConfig()
	cfg.Knowledge.Embedding.APIKey = "sk-test"
	cfg.Knowledge.Embedding.Model = "text-embedding-3-small"
	newTestContainer(t, cfg)

	emb, err := Resolve[knowledge.Embedder]()
	require.NoError(t, err)
	assert.IsType(t, &knowledge.OpenAIEmbedder{}, emb)
}
