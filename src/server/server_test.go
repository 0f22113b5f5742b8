package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"volatility-observer/src/analysis"
	"volatility-observer/src/analysis/core"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = int64(86400)

type fixedCurrencies struct {
	mu   sync.Mutex
	list []string
}

func (f *fixedCurrencies) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.list...)
}

func (f *fixedCurrencies) set(list ...string) {
	f.mu.Lock()
	f.list = list
	f.mu.Unlock()
}

func newTestServer(t *testing.T) *FastAPIServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := utils.NewMemoryManager(0, 1000)
	base := int64(1760572800) // 2025-10-16
	for i, v := range []float64{40, 42, 44, 46, 48} {
		ts := base + int64(i)*day
		store.AddDataPoint(models.MVolatilityPoint{
			Currency: "BTC", Series: models.SeriesDvol, Timestamp: ts,
			Date: models.PointDate(models.SeriesDvol, ts), Value: v,
		})
		store.AddDataPoint(models.MVolatilityPoint{
			Currency: "BTC", Series: models.SeriesHistoricalVolatility, Timestamp: ts + 3600,
			Date: models.PointDate(models.SeriesHistoricalVolatility, ts+3600), Value: v - 5,
		})
	}

	cfg := &models.MConfig{
		Name:     "test",
		Host:     "127.0.0.1",
		Port:     8080,
		LogLevel: "ERROR",
		DataSource: models.MDataSourceConfig{
			UpdateIntervalSeconds: 60,
			Sources: []models.MSourceConfig{
				{Name: "deribit", Currencies: []string{"BTC", "ETH"}},
			},
		},
	}

	log := logger.NewNopLogger("server-test")
	facade := analysis.NewAnalysisFacade(core.DefaultNormalizeOptions(), log)
	sources := &fixedCurrencies{list: []string{"BTC", "ETH"}}
	s := NewFastAPIServer(cfg, store, sources, facade, log)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func doRequest(t *testing.T, s *FastAPIServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// -----------------------------------------------------------------------------

func TestHealthAndConfig(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = doRequest(t, s, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{"BTC", "ETH"}, body["currencies"])
	normalizer := body["normalizer"].(map[string]interface{})
	assert.InDelta(t, 1.5, normalizer["k_factor"], 1e-9)
	assert.InDelta(t, 0.05, normalizer["percentile"], 1e-9)
}

func TestConfigFollowsRuntimeCurrencies(t *testing.T) {
	s := newTestServer(t)
	sources := s.Sources.(*fixedCurrencies)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			sources.set("BTC", "SOL")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			doRequest(t, s, http.MethodGet, "/api/config", "")
		}
	}()
	wg.Wait()

	w := doRequest(t, s, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"BTC", "SOL"}, decode(t, w)["currencies"])
	assert.Equal(t, []string{"BTC", "ETH"}, s.Config.DataSource.Sources[0].Currencies)
}

func TestPages(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/pages", "")
	require.Equal(t, http.StatusOK, w.Code)

	var pages []page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, "home", pages[0].Name)
	assert.Equal(t, "/calendar-call", pages[1].Path)
}

// -----------------------------------------------------------------------------

func TestNormalizeEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/normalize", `{"data":[1,2,3,4,5],"value":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["valid"])
	assert.InDelta(t, 0.5, body["value"], 1e-9)
	assert.NotContains(t, body, "stats")
}

func TestNormalizeEndpointDebugStats(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/normalize?debug=true", `{"data":[1,2,3,4,5],"value":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp normalizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	v, ok := resp.Float()
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-9)
	require.NotNil(t, resp.Stats)
	assert.InDelta(t, 1.5, resp.Stats.Q1, 1e-9)
	assert.InDelta(t, 4.5, resp.Stats.Q3, 1e-9)
}

func TestNormalizeEndpointUndefinedResult(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"empty data":         `{"data":[],"value":3}`,
		"invalid percentile": `{"data":[1,2,3],"value":2,"percentile":0.7}`,
		"negative k":         `{"data":[1,2,3],"value":2,"k_factor":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPost, "/api/normalize", body)
			require.Equal(t, http.StatusOK, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["valid"])
			assert.Nil(t, resp["value"])
		})
	}
}

func TestNormalizeEndpointOverflow(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/normalize", `{"data":[0,1e-300],"value":1e308}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])
}

func TestNormalizeEndpointDebugOmitsInfiniteStats(t *testing.T) {
	s := newTestServer(t)

	// The fence spread exceeds float64 while the ratio itself stays finite
	w := doRequest(t, s, http.MethodPost, "/api/normalize?debug=true", `{"data":[-1e308,1e308],"value":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["valid"])
	assert.InDelta(t, 0.0, body["value"], 1e-9)
	assert.NotContains(t, body, "stats")
}

func TestNormalizeEndpointBadRequest(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{`{not json`, `{"data":[1,2]}`, `{"value":1}`} {
		w := doRequest(t, s, http.MethodPost, "/api/normalize", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

// -----------------------------------------------------------------------------

func TestSeriesEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/volatility/btc", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "BTC", body["currency"])
	assert.Len(t, body["points"], 5)

	w = doRequest(t, s, http.MethodGet, "/api/volatility/XRP", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/dvol/BTC", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	ratios := body["ratios"].([]interface{})
	require.Len(t, ratios, 5)
	first := ratios[0].(map[string]interface{})
	last := ratios[4].(map[string]interface{})
	assert.InDelta(t, 0.0, first["value"], 1e-9)
	assert.InDelta(t, 1.0, last["value"], 1e-9)

	w = doRequest(t, s, http.MethodGet, "/api/calendar-call/BTC", "")
	require.Equal(t, http.StatusOK, w.Code)
	var chart struct {
		Rows []models.MChartPoint `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chart))
	require.Len(t, chart.Rows, 5)
	assert.Equal(t, "2025-10-16", chart.Rows[0].Date)
	assert.InDelta(t, 35.0, chart.Rows[0].HV, 1e-9)
	assert.True(t, chart.Rows[0].HVRatio.Valid)

	w = doRequest(t, s, http.MethodGet, "/api/calendar-call/ETH", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCurrentDvolPrefersCachedState(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/dvol/BTC/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.MVolatilitySnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.InDelta(t, 48.0, snap.CurrentDvol, 1e-9)

	s.UpdateState(&models.MLatestData{
		Snapshots: map[string]models.MVolatilitySnapshot{
			"BTC": {Currency: "BTC", CurrentDvol: 51.5},
		},
		Timestamp: 42,
	})

	w = doRequest(t, s, http.MethodGet, "/api/dvol/BTC/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.InDelta(t, 51.5, snap.CurrentDvol, 1e-9)

	w = doRequest(t, s, http.MethodGet, "/api/dvol/SOL/current", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateStateMergesSnapshots(t *testing.T) {
	s := newTestServer(t)

	s.UpdateState(&models.MLatestData{
		Snapshots: map[string]models.MVolatilitySnapshot{"BTC": {Currency: "BTC"}},
		Timestamp: 1,
	})
	s.UpdateState(&models.MLatestData{
		Snapshots: map[string]models.MVolatilitySnapshot{"ETH": {Currency: "ETH"}},
		Timestamp: 2,
	})

	state := s.stateFor(nil, "INITIAL")
	assert.Len(t, state.Snapshots, 2)
	assert.Equal(t, int64(2), state.Timestamp)
	assert.Len(t, s.stateFor([]string{"ETH"}, "INITIAL").Snapshots, 1)
}

// -----------------------------------------------------------------------------

func TestWebSocketSubscribeFiltersCurrencies(t *testing.T) {
	s := newTestServer(t)
	s.UpdateState(&models.MLatestData{
		Snapshots: map[string]models.MVolatilitySnapshot{
			"BTC": {Currency: "BTC", CurrentDvol: 50},
			"ETH": {Currency: "ETH", CurrentDvol: 70},
		},
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg models.MLatestData
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "INITIAL", msg.Type)
	assert.Len(t, msg.Snapshots, 2)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Currencies: []string{"eth"}}))
	msg = models.MLatestData{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "INITIAL", msg.Type)
	require.Len(t, msg.Snapshots, 1)
	assert.Contains(t, msg.Snapshots, "ETH")

	s.Broadcast(&models.MLatestData{
		Snapshots: map[string]models.MVolatilitySnapshot{
			"BTC": {Currency: "BTC", CurrentDvol: 51},
			"ETH": {Currency: "ETH", CurrentDvol: 71},
		},
		Timestamp: 99,
	})
	msg = models.MLatestData{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "UPDATE", msg.Type)
	require.Len(t, msg.Snapshots, 1)
	assert.InDelta(t, 71.0, msg.Snapshots["ETH"].CurrentDvol, 1e-9)
	assert.Equal(t, int64(99), msg.Timestamp)
}
