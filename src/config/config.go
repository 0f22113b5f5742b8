package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"volatility-observer/src/analysis/core"
	"volatility-observer/src/models"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDeribitBaseURL = "https://test.deribit.com/api/v2"
	DefaultResolution     = "1D"
)

var structValidator = validator.New()

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig

	// mu guards runtime edits of source currencies and doc
	mu sync.RWMutex
	// doc is the YAML document as read, before ${VAR} expansion
	doc *yaml.Node
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file. ${VAR} references are
// expanded from the environment, after loading a .env file when present.
func NewConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var modelConfig models.MConfig
	if err := yaml.Unmarshal([]byte(expanded), &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Content) > 0 {
		config.doc = &doc
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Normalizer.KFactor == 0 {
		c.Normalizer.KFactor = core.DefaultKFactor
	}
	if c.Normalizer.Percentile == 0 {
		c.Normalizer.Percentile = core.DefaultPercentile
	}
	for i := range c.DataSource.Sources {
		src := &c.DataSource.Sources[i]
		if src.Type == "" {
			src.Type = "deribit"
		}
		if src.BaseURL == "" {
			src.BaseURL = DefaultDeribitBaseURL
		}
		if src.Resolution == "" {
			src.Resolution = DefaultResolution
		}
		for j, cur := range src.Currencies {
			cur = strings.TrimSpace(cur)
			// schema.table.field references are resolved by the postgres backend
			if !strings.Contains(cur, ".") {
				cur = strings.ToUpper(cur)
			}
			src.Currencies[j] = cur
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if err := structValidator.Struct(c.MConfig); err != nil {
		return err
	}

	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Storage
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// DataSource
	if c.DataSource.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("update interval must be greater than 0")
	}
	if c.DataSource.DataRetentionDays <= 0 {
		return fmt.Errorf("data retention days must be greater than 0")
	}
	if len(c.DataSource.Sources) == 0 {
		return fmt.Errorf("at least one data source must be configured")
	}
	for _, src := range c.DataSource.Sources {
		if len(src.Currencies) == 0 {
			return fmt.Errorf("source '%s' must have at least one currency", src.Name)
		}
	}

	// Normalizer
	if err := c.NormalizeOptions().Validate(); err != nil {
		return fmt.Errorf("normalizer: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// NormalizeOptions returns the configured normalizer tuning.
func (c *Config) NormalizeOptions() core.NormalizeOptions {
	return core.NormalizeOptions{
		KFactor:    c.Normalizer.KFactor,
		Percentile: c.Normalizer.Percentile,
	}
}

// -----------------------------------------------------------------------------

// Currencies returns every configured currency once, in config order.
func (c *Config) Currencies() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, src := range c.DataSource.Sources {
		for _, cur := range src.Currencies {
			if !seen[cur] {
				seen[cur] = true
				out = append(out, cur)
			}
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// SourceType returns the configured type of a source, or "" when unknown.
func (c *Config) SourceType(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, src := range c.DataSource.Sources {
		if src.Name == name {
			return src.Type
		}
	}
	return ""
}

// -----------------------------------------------------------------------------

// SetSourceCurrencies replaces the currencies of a source, in memory and in
// the document Save writes. It reports whether the source exists.
func (c *Config) SetSourceCurrencies(name string, currencies []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for i := range c.DataSource.Sources {
		if c.DataSource.Sources[i].Name == name {
			c.DataSource.Sources[i].Currencies = append([]string(nil), currencies...)
			found = true
			break
		}
	}
	if found && c.doc != nil {
		setDocCurrencies(c.doc, name, currencies)
	}
	return found
}

// -----------------------------------------------------------------------------

// Save persists the configuration to the specified YAML file path. A config
// read from YAML is written back from its original document, so ${VAR}
// references stay unexpanded.
func (c *Config) Save(configPath string) error {
	c.mu.RLock()
	var data []byte
	var err error
	if c.doc != nil {
		data, err = yaml.Marshal(c.doc)
	} else {
		data, err = yaml.Marshal(c.MConfig)
	}
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setDocCurrencies(doc *yaml.Node, name string, currencies []string) {
	if len(doc.Content) == 0 {
		return
	}
	sources := mappingValue(mappingValue(doc.Content[0], "data_source"), "sources")
	if sources == nil || sources.Kind != yaml.SequenceNode {
		return
	}

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, cur := range currencies {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cur})
	}

	for _, src := range sources.Content {
		if n := mappingValue(src, "name"); n == nil || n.Value != name {
			continue
		}
		for i := 0; i+1 < len(src.Content); i += 2 {
			if src.Content[i].Value == "currencies" {
				src.Content[i+1] = seq
				return
			}
		}
		src.Content = append(src.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "currencies"}, seq)
		return
	}
}
