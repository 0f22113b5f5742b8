package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"volatility-observer/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	res, err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryWithBackoff(ctx, 5, time.Hour, func() (string, error) {
		calls++
		return "", errors.New("down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetry_ClassifiesErrors(t *testing.T) {
	h := NewErrorHandler(logger.NewNopLogger("test"))
	h.BaseDelay = time.Millisecond
	cause := errors.New("boom")

	err := h.ExecuteWithRetry(context.Background(), "fetch dvol", func() error { return cause }, 2)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, cause)

	err = h.ExecuteWithRetry(context.Background(), "save snapshots", func() error { return cause }, 1)
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)

	assert.Equal(t, 2, h.ErrorCount)
	require.NoError(t, h.ExecuteWithRetry(context.Background(), "analyze", func() error { return nil }, 1))
	assert.Equal(t, 1, h.ErrorCount)
}

func TestProxyManager_RotationAndValidation(t *testing.T) {
	pm := NewProxyManager([]string{"10.0.0.1:8080", "", "socks5://10.0.0.2:1080"}, "", logger.NewNopLogger("test"))
	require.True(t, pm.HasProxies())

	first, err := pm.GetCurrentProxy()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8080", first)

	pm.RotateProxy()
	second, _ := pm.GetCurrentProxy()
	assert.Equal(t, "socks5://10.0.0.2:1080", second)

	pm.RotateProxy()
	third, _ := pm.GetCurrentProxy()
	assert.Equal(t, first, third)
}

func TestProxyManager_PinnedUserAgent(t *testing.T) {
	pm := NewProxyManager(nil, "observer-test/1.0", logger.NewNopLogger("test"))
	assert.False(t, pm.HasProxies())
	assert.Equal(t, "observer-test/1.0", pm.GetUserAgent())
}
