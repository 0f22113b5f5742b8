package server

import (
	"net/http"

	"volatility-observer/src/analysis/core"
	"volatility-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMetrics(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, s.latestState.ProcessingMetrics)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getConfig(c *gin.Context) {
	// Sources reflect runtime currency updates; the config is only read at startup
	currencies := s.Sources.Symbols()
	if currencies == nil {
		currencies = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"currencies":              currencies,
		"normalizer":              s.Analysis.Options,
		"update_interval_seconds": s.Config.DataSource.UpdateIntervalSeconds,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.clientCount.Load(),
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

// page describes a dashboard view and the endpoints feeding it.
type page struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Endpoints []string `json:"endpoints"`
}

var dashboardPages = []page{
	{
		Name:      "home",
		Path:      "/",
		Endpoints: []string{"/api/volatility/:currency", "/api/dvol/:currency/current", "/ws"},
	},
	{
		Name:      "calendar-call",
		Path:      "/calendar-call",
		Endpoints: []string{"/api/calendar-call/:currency", "/api/dvol/:currency"},
	},
}

func (s *FastAPIServer) getPages(c *gin.Context) {
	c.JSON(http.StatusOK, dashboardPages)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHistoricalVolatility(c *gin.Context) {
	currency := normalizeCurrency(c.Param("currency"))
	points := s.Store.Series(currency, models.SeriesHistoricalVolatility)
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no historical volatility for " + currency})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"series":   models.SeriesHistoricalVolatility,
		"points":   points,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getDvolHistory(c *gin.Context) {
	currency := normalizeCurrency(c.Param("currency"))
	points := s.Store.Series(currency, models.SeriesDvol)
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no DVOL history for " + currency})
		return
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"points":   points,
		"ratios":   s.Analysis.NormalizeSeries(values),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getCurrentDvol(c *gin.Context) {
	currency := normalizeCurrency(c.Param("currency"))

	s.stateMutex.RLock()
	snap, ok := s.latestState.Snapshots[currency]
	s.stateMutex.RUnlock()

	if !ok {
		snaps := s.Analysis.BuildSnapshots(s.Store, []string{currency})
		snap, ok = snaps[currency]
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no DVOL data for " + currency})
		return
	}

	c.JSON(http.StatusOK, snap)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getCalendarCall(c *gin.Context) {
	currency := normalizeCurrency(c.Param("currency"))
	dvol := s.Store.Series(currency, models.SeriesDvol)
	if len(dvol) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no DVOL history for " + currency})
		return
	}
	hv := s.Store.Series(currency, models.SeriesHistoricalVolatility)

	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"rows":     s.Analysis.BuildChartSeries(dvol, hv),
	})
}

// -----------------------------------------------------------------------------

type normalizeRequest struct {
	Data       []float64 `json:"data" binding:"required"`
	Value      *float64  `json:"value" binding:"required"`
	KFactor    *float64  `json:"k_factor"`
	Percentile *float64  `json:"percentile"`
}

type normalizeResponse struct {
	models.MRatio
	Stats *core.RangeStats `json:"stats,omitempty"`
}

// postNormalize answers with valid=false (value null) when the ratio is
// undefined; only malformed requests are errors.
func (s *FastAPIServer) postNormalize(c *gin.Context) {
	var req normalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := s.Analysis.Options
	if req.KFactor != nil {
		opts.KFactor = *req.KFactor
	}
	if req.Percentile != nil {
		opts.Percentile = *req.Percentile
	}

	stats, ok := core.AnalyzeRange(req.Data, opts)
	resp := normalizeResponse{}
	if ok {
		ratio := stats.Ratio(*req.Value)
		if !core.AllFinite([]float64{ratio}) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "ratio overflows the float64 range"})
			return
		}
		resp.MRatio = models.NewRatio(ratio, true)
		// Single-sample quartiles are NaN and huge spreads overflow; JSON carries neither
		if c.Query("debug") == "true" && statsFinite(stats) {
			resp.Stats = &stats
		}
	}

	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------

func statsFinite(s core.RangeStats) bool {
	return core.AllFinite([]float64{
		s.Q1, s.Q3, s.IQR, s.LowerBound, s.UpperBound, s.OutlierRatio, s.AdjustedKFactor,
		s.AdjustedLower, s.AdjustedUpper, s.LowClamp, s.HighClamp, s.Min, s.Max,
	})
}
