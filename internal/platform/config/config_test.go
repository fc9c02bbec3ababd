package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func validConfig() Config {
	return Config{
		Ethereum: EthereumConfig{
			RPCEndpoints: []RPCEndpoint{{URL: "https://eth.example.com", Weight: 1}},
			CallTimeout:  10 * time.Second,
		},
		Adapters: []AdapterConfig{
			{
				Name:          "yvdai-usd",
				VaultAddress:  "0xdA816459F1AB5631232FE5e97a05BBBb94970c95",
				AssetAddress:  "0x6B175474E89094C44Da98b954EedeAC495271d0F",
				QuoteAddress:  "0x0000000000000000000000000000000000000348",
				QuoteDecimals: 18,
			},
		},
		Monitor: MonitorConfig{
			Enabled:               true,
			Interval:              time.Minute,
			DeviationThresholdBPS: 50,
			Workers:               4,
		},
		Redis: RedisConfig{Address: "localhost:6379"},
		AWS: AWSConfig{
			Region:      "us-east-1",
			SNSTopicARN: "arn:aws:sns:us-east-1:000000000000:rate-alerts",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json"},
		},
	}
}

func TestConfig_Parse_Addresses(t *testing.T) {
	cfg := validConfig()

	if err := cfg.parse(); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	a := cfg.Adapters[0]
	if got, want := a.Vault(), common.HexToAddress("0xdA816459F1AB5631232FE5e97a05BBBb94970c95"); got != want {
		t.Errorf("vault: expected %s, got %s", want.Hex(), got.Hex())
	}
	if got, want := a.Asset(), common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"); got != want {
		t.Errorf("asset: expected %s, got %s", want.Hex(), got.Hex())
	}
	if got, want := a.Quote(), common.HexToAddress("0x0000000000000000000000000000000000000348"); got != want {
		t.Errorf("quote: expected %s, got %s", want.Hex(), got.Hex())
	}
}

func TestConfig_Parse_InvalidAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters[0].VaultAddress = "not-an-address"

	if err := cfg.parse(); err == nil {
		t.Fatal("expected error for invalid vault address")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no rpc endpoints", func(c *Config) { c.Ethereum.RPCEndpoints = nil }, true},
		{"negative endpoint weight", func(c *Config) { c.Ethereum.RPCEndpoints[0].Weight = -1 }, true},
		{"no adapters", func(c *Config) { c.Adapters = nil }, true},
		{"unnamed adapter", func(c *Config) { c.Adapters[0].Name = "" }, true},
		{"duplicate adapter name", func(c *Config) {
			c.Adapters = append(c.Adapters, c.Adapters[0])
		}, true},
		{"negative quote decimals", func(c *Config) { c.Adapters[0].QuoteDecimals = -1 }, true},
		{"zero monitor interval", func(c *Config) { c.Monitor.Interval = 0 }, true},
		{"monitor disabled skips monitor checks", func(c *Config) {
			c.Monitor.Enabled = false
			c.Monitor.Interval = 0
		}, false},
		{"empty redis address runs memory-only", func(c *Config) { c.Redis.Address = "" }, false},
		{"missing aws region with sns configured", func(c *Config) { c.AWS.Region = "" }, true},
		{"empty sns topic disables alerting", func(c *Config) { c.AWS.SNSTopicARN = "" }, false},
		{"region not required without sns", func(c *Config) {
			c.AWS.SNSTopicARN = ""
			c.AWS.Region = ""
		}, false},
		{"bad log level", func(c *Config) { c.Observability.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Observability.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
