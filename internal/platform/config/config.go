package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all configuration for the adapter service
type Config struct {
	Ethereum      EthereumConfig      `mapstructure:"ethereum"`
	Adapters      []AdapterConfig     `mapstructure:"adapters"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Redis         RedisConfig         `mapstructure:"redis"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// EthereumConfig holds Ethereum connection configuration
type EthereumConfig struct {
	RPCEndpoints []RPCEndpoint `mapstructure:"rpc_endpoints"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`

	// RequestsPerSecond caps the aggregate RPC request rate. Zero disables
	// the cap.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RPCEndpoint represents an Ethereum RPC endpoint
type RPCEndpoint struct {
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

// AdapterConfig describes one vault/USD adapter
type AdapterConfig struct {
	Name          string `mapstructure:"name"`
	VaultAddress  string `mapstructure:"vault_address"`
	AssetAddress  string `mapstructure:"asset_address"`
	QuoteAddress  string `mapstructure:"quote_address"`
	QuoteDecimals int    `mapstructure:"quote_decimals"`

	vault common.Address
	asset common.Address
	quote common.Address
}

// Vault returns the parsed vault share token address
func (a *AdapterConfig) Vault() common.Address { return a.vault }

// Asset returns the parsed underlying asset address
func (a *AdapterConfig) Asset() common.Address { return a.asset }

// Quote returns the parsed quote unit address
func (a *AdapterConfig) Quote() common.Address { return a.quote }

// MonitorConfig holds rate monitoring settings
type MonitorConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	Interval              time.Duration `mapstructure:"interval"`
	DeviationThresholdBPS int64         `mapstructure:"deviation_threshold_bps"`
	Workers               int           `mapstructure:"workers"`
}

// RedisConfig holds Redis connection configuration. An empty address
// disables the Redis cache tier; the service runs memory-only.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AWSConfig holds AWS service configuration. An empty SNS topic ARN
// disables alert publishing.
type AWSConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	L1MaxSize int           `mapstructure:"l1_max_size"`
	L2TTL     time.Duration `mapstructure:"l2_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Sampler  string `mapstructure:"sampler"` // always, never, ratio
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Ethereum defaults
	v.SetDefault("ethereum.call_timeout", "10s")

	// Monitor defaults
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", "60s")
	v.SetDefault("monitor.deviation_threshold_bps", 50)
	v.SetDefault("monitor.workers", 4)

	// Redis and SNS stay off unless configured explicitly.
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// AWS defaults
	v.SetDefault("aws.region", "us-east-1")

	// Cache defaults
	v.SetDefault("cache.l1_max_size", 1000)
	v.SetDefault("cache.l2_ttl", "60s")

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9091)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sampler", "always")

	// HTTP defaults
	v.SetDefault("http.port", 8080)
}

// parse parses string values into their proper types
func (c *Config) parse() error {
	for i := range c.Adapters {
		a := &c.Adapters[i]
		for _, field := range []struct {
			name string
			raw  string
			dst  *common.Address
		}{
			{"vault_address", a.VaultAddress, &a.vault},
			{"asset_address", a.AssetAddress, &a.asset},
			{"quote_address", a.QuoteAddress, &a.quote},
		} {
			if !common.IsHexAddress(field.raw) {
				return fmt.Errorf("adapter %q: invalid %s: %q", a.Name, field.name, field.raw)
			}
			*field.dst = common.HexToAddress(field.raw)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Ethereum validation
	if len(c.Ethereum.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	for _, ep := range c.Ethereum.RPCEndpoints {
		if ep.URL == "" {
			return fmt.Errorf("RPC endpoint URL is required")
		}
		if ep.Weight < 0 {
			return fmt.Errorf("RPC endpoint weight must be >= 0")
		}
	}

	// Adapter validation
	if len(c.Adapters) == 0 {
		return fmt.Errorf("at least one adapter is required")
	}
	seen := make(map[string]bool, len(c.Adapters))
	for _, a := range c.Adapters {
		if a.Name == "" {
			return fmt.Errorf("adapter name is required")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate adapter name: %q", a.Name)
		}
		seen[a.Name] = true
		if a.QuoteDecimals < 0 {
			return fmt.Errorf("adapter %q: quote decimals must be >= 0", a.Name)
		}
	}

	// Monitor validation
	if c.Monitor.Enabled {
		if c.Monitor.Interval <= 0 {
			return fmt.Errorf("monitor interval must be > 0")
		}
		if c.Monitor.DeviationThresholdBPS < 0 {
			return fmt.Errorf("monitor deviation threshold must be >= 0")
		}
		if c.Monitor.Workers <= 0 {
			return fmt.Errorf("monitor workers must be > 0")
		}
	}

	// Redis and SNS are optional tiers: an empty address or topic ARN
	// disables them, so only the enabled case is validated.
	if c.AWS.SNSTopicARN != "" && c.AWS.Region == "" {
		return fmt.Errorf("AWS region is required when an SNS topic is configured")
	}

	// Observability validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
