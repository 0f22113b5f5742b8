package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: volatility-observer
host: 127.0.0.1
port: 8000
storage:
  db_type: sqlite
  db_path: ${VO_TEST_DB_PATH}
network:
  timeout: 10
  retries: 2
  concurrent_requests: 4
data_source:
  data_retention_days: 365
  update_interval_seconds: 60
  sources:
    - name: deribit
      currencies: [btc, " eth "]
`

func TestParse_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/tmp/vo.db")

	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vo.db", cfg.Storage.DBPath)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 1.5, cfg.Normalizer.KFactor)
	assert.Equal(t, 0.05, cfg.Normalizer.Percentile)

	src := cfg.DataSource.Sources[0]
	assert.Equal(t, "deribit", src.Type)
	assert.Equal(t, DefaultDeribitBaseURL, src.BaseURL)
	assert.Equal(t, DefaultResolution, src.Resolution)
	assert.Equal(t, []string{"BTC", "ETH"}, src.Currencies)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Currencies())
}

func TestParse_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/tmp/vo.db")

	cases := []struct {
		name string
		old  string
		new  string
	}{
		{"low port", "port: 8000\n", "port: 80\n"},
		{"unknown db", "db_type: sqlite\n", "db_type: mongo\n"},
		{"no currencies", `currencies: [btc, " eth "]`, "currencies: []"},
		{"zero timeout", "timeout: 10\n", "timeout: 0\n"},
		{"bad log level", "name: volatility-observer\n", "name: volatility-observer\nlog_level: LOUD\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broken := strings.Replace(validYAML, tc.old, tc.new, 1)
			require.NotEqual(t, validYAML, broken)
			_, err := Parse([]byte(broken))
			assert.Error(t, err)
		})
	}
}

func TestParse_RejectsBadNormalizer(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/tmp/vo.db")

	broken := validYAML + "normalizer:\n  k_factor: 1.5\n  percentile: 0.7\n"
	_, err := Parse([]byte(broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentile")
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/tmp/vo.db")
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	reloaded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Port, reloaded.Port)
	assert.Equal(t, cfg.Storage, reloaded.Storage)
	assert.Equal(t, cfg.Normalizer, reloaded.Normalizer)
	assert.Equal(t, cfg.DataSource.Sources, reloaded.DataSource.Sources)
}

func TestSave_KeepsEnvReferences(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/secret/vo.db")
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	require.Equal(t, "/secret/vo.db", cfg.Storage.DBPath)

	require.True(t, cfg.SetSourceCurrencies("deribit", []string{"BTC", "SOL"}))
	assert.False(t, cfg.SetSourceCurrencies("missing", []string{"BTC"}))
	assert.Equal(t, []string{"BTC", "SOL"}, cfg.Currencies())

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	saved := string(data)
	assert.Contains(t, saved, "${VO_TEST_DB_PATH}")
	assert.NotContains(t, saved, "/secret/vo.db")

	t.Setenv("VO_TEST_DB_PATH", "/other/vo.db")
	reloaded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "/other/vo.db", reloaded.Storage.DBPath)
	assert.Equal(t, []string{"BTC", "SOL"}, reloaded.DataSource.Sources[0].Currencies)
}

func TestParse_DefaultsEachNormalizerField(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/tmp/vo.db")

	cfg, err := Parse([]byte(validYAML + "normalizer:\n  k_factor: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Normalizer.KFactor)
	assert.Equal(t, 0.05, cfg.Normalizer.Percentile)

	cfg, err = Parse([]byte(validYAML + "normalizer:\n  percentile: 0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Normalizer.KFactor)
	assert.Equal(t, 0.1, cfg.Normalizer.Percentile)
}

func TestSetSourceCurrencies_ConcurrentReaders(t *testing.T) {
	t.Setenv("VO_TEST_DB_PATH", "/tmp/vo.db")
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			cfg.SetSourceCurrencies("deribit", []string{"BTC", "SOL"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = cfg.Currencies()
			_ = cfg.SourceType("deribit")
		}
	}()
	wg.Wait()

	assert.Equal(t, []string{"BTC", "SOL"}, cfg.Currencies())
}
