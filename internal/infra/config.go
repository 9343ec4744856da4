package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Sensitive values can be overridden
// through environment variables after loading.
type Config struct {
	Server struct {
		HTTPPort string `yaml:"http_port"`
		GRPCPort string `yaml:"grpc_port"`
	} `yaml:"server"`

	Storage struct {
		// Backend selects the store implementation: "mysql" or "memory".
		Backend  string `yaml:"backend"`
		MySQLDSN string `yaml:"mysql_dsn"`
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Settlement struct {
		QuoteAsset     string `yaml:"quote_asset"`
		CustodyAccount string `yaml:"custody_account"`
		FeeRecipient   string `yaml:"fee_recipient"`
		FeeBps         uint32 `yaml:"fee_bps"`
		QueueSize      int    `yaml:"queue_size"`
		WorkerCount    int    `yaml:"worker_count"`
	} `yaml:"settlement"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the YAML config file, then applies defaults
// and environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if cfg.Storage.Backend != "mysql" && cfg.Storage.Backend != "memory" {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Settlement.FeeBps > 10_000 {
		return nil, fmt.Errorf("fee_bps %d exceeds 10000", cfg.Settlement.FeeBps)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = ":8080"
	}
	if c.Server.GRPCPort == "" {
		c.Server.GRPCPort = ":50051"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Settlement.QueueSize == 0 {
		c.Settlement.QueueSize = 10000
	}
	if c.Settlement.WorkerCount == 0 {
		c.Settlement.WorkerCount = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		c.Storage.MySQLDSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
}
