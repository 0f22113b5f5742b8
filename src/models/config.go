package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name" validate:"required"`
	Host       string            `yaml:"host" validate:"required"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR"`
	LogFormat  string            `yaml:"log_format" validate:"omitempty,oneof=json console"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	DataSource MDataSourceConfig `yaml:"data_source"`
	Normalizer MNormalizerConfig `yaml:"normalizer"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" validate:"required,oneof=sqlite postgres"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MDataSourceConfig struct {
	DataRetentionDays     int             `yaml:"data_retention_days"`
	UpdateIntervalSeconds int             `yaml:"update_interval_seconds"`
	Sources               []MSourceConfig `yaml:"sources" validate:"dive"`
}

type MSourceConfig struct {
	Name       string   `yaml:"name" validate:"required"`
	Type       string   `yaml:"type" validate:"omitempty,oneof=deribit"`
	BaseURL    string   `yaml:"base_url" validate:"omitempty,url"`
	Currencies []string `yaml:"currencies"`
	Resolution string   `yaml:"resolution"` // historical volatility resolution, e.g. "1D"
}

type MNormalizerConfig struct {
	KFactor    float64 `yaml:"k_factor"`
	Percentile float64 `yaml:"percentile"`
}
