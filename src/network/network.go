package network

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"volatility-observer/src/helpers"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"

	"github.com/go-resty/resty/v2"
)

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger
	// BaseDelay scales the quadratic backoff between attempts.
	BaseDelay time.Duration

	mu     sync.Mutex
	client *resty.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log),
		Logger:       log,
		BaseDelay:    time.Second,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *resty.Client {
	client := resty.New().
		SetTimeout(time.Duration(nm.Config.Network.RequestTimeout) * time.Second)

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			client.SetProxy(proxyStr)
		}
	}

	return client
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) currentClient() *resty.Client {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.client
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.ProxyManager.RotateProxy()
	nm.client = nm.createClient()
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
// Cancelling ctx aborts both the in-flight request and any pending backoff.
func (nm *AsyncNetworkManager) Get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request to %s cancelled: %w", url, ctx.Err())
			case <-time.After(time.Duration(i*i) * nm.BaseDelay):
			}
		}

		resp, err := nm.currentClient().R().
			SetContext(ctx).
			SetQueryParams(params).
			SetHeader("User-Agent", nm.ProxyManager.GetUserAgent()).
			SetHeader("Accept", "application/json").
			Get(url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request to %s cancelled: %w", url, ctx.Err())
			}
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			nm.rotateProxy()
			continue
		}

		status := resp.StatusCode()
		if status == http.StatusTooManyRequests || status == http.StatusForbidden {
			lastErr = fmt.Errorf("blocked (status %d)", status)
			nm.Logger.Info("Request blocked (%d). Rotating proxy.", status)
			nm.rotateProxy()
			continue
		}

		// Deribit answers JSON-RPC errors with 400 and an error envelope the caller decodes.
		if status == http.StatusBadRequest {
			return resp.Body(), nil
		}

		if resp.IsError() {
			lastErr = fmt.Errorf("bad status: %d", status)
			nm.Logger.Info("Bad status %d", status)
			continue
		}

		return resp.Body(), nil
	}

	return nil, helpers.NewNetworkError(fmt.Sprintf("max retries exceeded for %s", url), lastErr)
}
