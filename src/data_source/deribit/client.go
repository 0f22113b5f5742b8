package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"volatility-observer/src/analysis/core"
	"volatility-observer/src/helpers"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"

	"github.com/alitto/pond/v2"
)

const (
	FullYearDays = 365
	PageSize     = 100
)

// -----------------------------------------------------------------------------
// Client wraps the public Deribit v2 endpoints used for volatility data.
// -----------------------------------------------------------------------------

type Client struct {
	BaseURL   string
	Network   interfaces.INetworkManager
	Logger    *logger.Logger
	pool      pond.Pool
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

// NewClient creates a client whose page fetches share a pool of concurrency workers.
func NewClient(baseURL string, netMgr interfaces.INetworkManager, concurrency int, log *logger.Logger) *Client {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Network: netMgr,
		Logger:  log,
		pool:    pond.NewPool(concurrency),
	}
}

// Close waits for in-flight page fetches and releases the worker pool.
// Later calls are no-ops.
func (c *Client) Close() {
	c.closeOnce.Do(c.pool.StopAndWait)
}

// -----------------------------------------------------------------------------

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse[T any] struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  T         `json:"result"`
	Error   *rpcError `json:"error"`
}

type deliveryPrices struct {
	Data []struct {
		Date          string  `json:"date"`
		DeliveryPrice float64 `json:"delivery_price"`
	} `json:"data"`
	RecordsTotal int `json:"records_total"`
}

type indexPrice struct {
	IndexPrice float64 `json:"index_price"`
}

// -----------------------------------------------------------------------------

func (c *Client) call(ctx context.Context, method string, params map[string]string, out any) error {
	body, err := c.Network.Get(ctx, c.BaseURL+"/public/"+method, params)
	if err != nil {
		return helpers.NewDataSourceError(fmt.Sprintf("deribit %s request failed", method), err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return helpers.NewDataSourceError(fmt.Sprintf("deribit %s: invalid response", method), err)
	}
	return nil
}

func checkEnvelope(method string, e *rpcError) error {
	if e == nil {
		return nil
	}
	return helpers.NewDataSourceError(
		fmt.Sprintf("deribit %s error %d: %s", method, e.Code, e.Message), nil)
}

// IndexName is the DVOL index for a currency, e.g. "btcdvol_usdc".
func IndexName(currency string) string {
	return strings.ToLower(currency) + "dvol_usdc"
}

// -----------------------------------------------------------------------------

// FetchHistoricalVolatility returns realized volatility readings, values in percent.
func (c *Client) FetchHistoricalVolatility(ctx context.Context, currency, resolution string) ([]models.MVolatilityPoint, error) {
	if resolution == "" {
		resolution = "1D"
	}
	currency = strings.ToUpper(currency)

	var resp rpcResponse[[][2]float64]
	err := c.call(ctx, "get_historical_volatility", map[string]string{
		"currency":   currency,
		"resolution": resolution,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope("get_historical_volatility", resp.Error); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	points := make([]models.MVolatilityPoint, 0, len(resp.Result))
	for _, row := range resp.Result {
		ts := int64(row[0]) / 1000
		points = append(points, models.MVolatilityPoint{
			Currency:  currency,
			Series:    models.SeriesHistoricalVolatility,
			Timestamp: ts,
			Date:      models.PointDate(models.SeriesHistoricalVolatility, ts),
			Value:     core.Round2(row[1]),
			CreatedAt: now,
		})
	}

	if len(points) > 0 {
		c.Logger.Debug("Fetched %s HV: %d points, first %.2f", currency, len(points), points[0].Value)
	}
	return points, nil
}

// -----------------------------------------------------------------------------

// GetDvolData returns one page of daily DVOL delivery prices, newest first as
// Deribit serves them.
func (c *Client) GetDvolData(ctx context.Context, symbol string, offset, count int) ([]models.MVolatilityPoint, error) {
	if count <= 0 {
		count = PageSize
	}
	currency := strings.ToUpper(symbol)

	var resp rpcResponse[deliveryPrices]
	err := c.call(ctx, "get_delivery_prices", map[string]string{
		"index_name": IndexName(symbol),
		"offset":     strconv.Itoa(offset),
		"count":      strconv.Itoa(count),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope("get_delivery_prices", resp.Error); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	points := make([]models.MVolatilityPoint, 0, len(resp.Result.Data))
	for _, row := range resp.Result.Data {
		ts, err := models.ParseDvolDate(row.Date)
		if err != nil {
			c.Logger.Warning("Skipping %s DVOL row with bad date %q", currency, row.Date)
			continue
		}
		points = append(points, models.MVolatilityPoint{
			Currency:  currency,
			Series:    models.SeriesDvol,
			Timestamp: ts,
			Date:      row.Date,
			Value:     core.Round2(row.DeliveryPrice),
			CreatedAt: now,
		})
	}
	return points, nil
}

// -----------------------------------------------------------------------------

// GetFullYearDvol fetches the last FullYearDays of DVOL in concurrent pages
// and returns them oldest first. Any failed page fails the whole call.
func (c *Client) GetFullYearDvol(ctx context.Context, symbol string) ([]models.MVolatilityPoint, error) {
	pages := (FullYearDays + PageSize - 1) / PageSize
	results := make([][]models.MVolatilityPoint, pages)

	group := c.pool.NewGroup()
	for i := 0; i < pages; i++ {
		offset := i * PageSize
		count := min(PageSize, FullYearDays-offset)
		group.SubmitErr(func() error {
			page, err := c.GetDvolData(ctx, symbol, offset, count)
			if err != nil {
				return fmt.Errorf("page offset=%d: %w", offset, err)
			}
			results[i] = page
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("full year DVOL for %s: %w", symbol, err)
	}

	var merged []models.MVolatilityPoint
	for _, page := range results {
		merged = append(merged, page...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	c.Logger.Debug("Processed %s DVOL data: %d days", symbol, len(merged))
	return merged, nil
}

// -----------------------------------------------------------------------------

// FetchCurrentDvol returns the live DVOL index value.
func (c *Client) FetchCurrentDvol(ctx context.Context, currency string) (float64, error) {
	var resp rpcResponse[indexPrice]
	err := c.call(ctx, "get_index_price", map[string]string{
		"index_name": IndexName(currency),
	}, &resp)
	if err != nil {
		return 0, err
	}
	if err := checkEnvelope("get_index_price", resp.Error); err != nil {
		return 0, err
	}
	return core.Round2(resp.Result.IndexPrice), nil
}
