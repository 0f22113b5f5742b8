package grpc_control

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"volatility-observer/src/analysis"
	"volatility-observer/src/analysis/core"
	"volatility-observer/src/config"
	datasource "volatility-observer/src/data_source"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubSource struct {
	mu         sync.Mutex
	name       string
	currencies []string
}

var _ interfaces.IDataSource = (*stubSource)(nil)

func (s *stubSource) Name() string     { return s.name }
func (s *stubSource) IsRealTime() bool { return false }
func (s *stubSource) Stop() error      { return nil }

func (s *stubSource) FetchInitialData(ctx context.Context) (map[string][]models.MVolatilityPoint, error) {
	return nil, nil
}

func (s *stubSource) FetchUpdateData(ctx context.Context) (map[string][]models.MVolatilityPoint, error) {
	return nil, nil
}

func (s *stubSource) UpdateSymbols(currencies []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currencies = currencies
	return nil
}

func (s *stubSource) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currencies
}

func (s *stubSource) Start(ctx context.Context, out chan<- map[string][]models.MVolatilityPoint, wg *sync.WaitGroup) error {
	return nil
}

// -----------------------------------------------------------------------------

type harness struct {
	client     *ControlClient
	health     healthpb.HealthClient
	source     *stubSource
	cfg        *config.Config
	configPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{MConfig: &models.MConfig{
		Name: "grpc-test",
		Host: "127.0.0.1",
		Port: 8080,
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: "test.db",
		},
		DataSource: models.MDataSourceConfig{
			Sources: []models.MSourceConfig{
				{Name: "deribit", Type: "deribit", Currencies: []string{"BTC", "ETH"}},
			},
		},
	}}
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	log := logger.NewNopLogger("grpc-test")
	src := &stubSource{name: "deribit", currencies: []string{"BTC", "ETH"}}
	manager := datasource.NewMultiSourceManager([]interfaces.IDataSource{src}, log)
	facade := analysis.NewAnalysisFacade(core.DefaultNormalizeOptions(), log)

	lis := bufconn.Listen(1024 * 1024)
	srv := NewGRPCServer(NewControlService(cfg, manager, facade, configPath, log))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{
		client:     NewControlClient(conn),
		health:     healthpb.NewHealthClient(conn),
		source:     src,
		cfg:        cfg,
		configPath: configPath,
	}
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

// -----------------------------------------------------------------------------

func TestHealthServing(t *testing.T) {
	h := newHarness(t)

	resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestNormalize(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Normalize(context.Background(), mustStruct(t, map[string]interface{}{
		"data":  []interface{}{1.0, 2.0, 3.0, 4.0, 5.0},
		"value": 4.0,
		"debug": true,
	}))
	require.NoError(t, err)

	out := resp.AsMap()
	assert.Equal(t, true, out["valid"])
	assert.InDelta(t, 0.75, out["value"], 1e-9)
	stats := out["stats"].(map[string]interface{})
	assert.InDelta(t, 1.5, stats["q1"], 1e-9)
	assert.InDelta(t, 4.5, stats["q3"], 1e-9)
}

func TestNormalizeUndefinedAndInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.client.Normalize(ctx, mustStruct(t, map[string]interface{}{
		"data":  []interface{}{},
		"value": 1.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, false, resp.AsMap()["valid"])
	assert.Nil(t, resp.AsMap()["value"])

	resp, err = h.client.Normalize(ctx, mustStruct(t, map[string]interface{}{
		"data":       []interface{}{1.0, 2.0},
		"value":      1.0,
		"percentile": 0.5,
	}))
	require.NoError(t, err)
	assert.Equal(t, false, resp.AsMap()["valid"])

	_, err = h.client.Normalize(ctx, mustStruct(t, map[string]interface{}{
		"data":  []interface{}{1.0, "x"},
		"value": 1.0,
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.Normalize(ctx, mustStruct(t, map[string]interface{}{
		"data": []interface{}{1.0},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListSources(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.ListSources(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	sources := resp.AsMap()["sources"].([]interface{})
	require.Len(t, sources, 1)
	src := sources[0].(map[string]interface{})
	assert.Equal(t, "deribit", src["name"])
	assert.Equal(t, "deribit", src["type"])
	assert.Equal(t, false, src["real_time"])
	assert.Equal(t, []interface{}{"BTC", "ETH"}, src["currencies"])
}

func TestUpdateCurrencies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.client.UpdateCurrencies(ctx, mustStruct(t, map[string]interface{}{
		"source_name": "deribit",
		"currencies":  []interface{}{"btc", " sol "},
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["success"])
	assert.Equal(t, []string{"BTC", "SOL"}, h.source.Symbols())
	assert.Equal(t, []string{"BTC", "SOL"}, h.cfg.DataSource.Sources[0].Currencies)

	saved, err := os.ReadFile(h.configPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "SOL")

	_, err = h.client.UpdateCurrencies(ctx, mustStruct(t, map[string]interface{}{
		"source_name": "nope",
		"currencies":  []interface{}{"BTC"},
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.client.UpdateCurrencies(ctx, mustStruct(t, map[string]interface{}{
		"source_name": "deribit",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
