package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	auction "lot-auction/internal/auctionService"
	model "lot-auction/internal/models"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the top-level auction.yml configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Auction AuctionConfig `yaml:"auction"`
	Seed    SeedConfig    `yaml:"seed"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

// StoreConfig selects the lot registry backend
type StoreConfig struct {
	Backend       string `yaml:"backend"`        // "memory" or "redis"
	RedisURL      string `yaml:"redis_url"`      // used when backend is redis
	Namespace     string `yaml:"namespace"`      // redis key prefix
	EventsChannel string `yaml:"events_channel"` // redis pub/sub channel for auction events
}

// AuctionConfig holds the auction rules and broadcast tuning
type AuctionConfig struct {
	MinIncrement       int64         `yaml:"min_increment"`
	ExtensionThreshold int           `yaml:"extension_threshold"`
	MirrorEvery        int           `yaml:"mirror_every"`
	TickPeriod         time.Duration `yaml:"tick_period"`
	DefaultDuration    int           `yaml:"default_duration"`
	SettlementRetries  int           `yaml:"settlement_retries"`
	RetryBackoff       time.Duration `yaml:"retry_backoff"`
	SinkWorkers        int           `yaml:"sink_workers"`
	SubscriberBuffer   int           `yaml:"subscriber_buffer"`
}

// SeedConfig lists lots and organizations loaded into an empty registry
type SeedConfig struct {
	Lots          []model.Lot          `yaml:"lots"`
	Organizations []model.Organization `yaml:"organizations"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	rules := auction.DefaultRules()
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Store: StoreConfig{
			Backend:       StoreMemory,
			RedisURL:      "redis://localhost:6379/0",
			Namespace:     "auction",
			EventsChannel: "auction:events",
		},
		Auction: AuctionConfig{
			MinIncrement:       rules.MinIncrement,
			ExtensionThreshold: rules.ExtensionThreshold,
			MirrorEvery:        rules.MirrorEvery,
			TickPeriod:         rules.TickPeriod,
			DefaultDuration:    rules.DefaultDuration,
			SettlementRetries:  rules.SettlementRetries,
			RetryBackoff:       rules.RetryBackoff,
			SinkWorkers:        4,
			SubscriberBuffer:   32,
		},
		Seed: DefaultSeed(),
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values with PORT, REDIS_URL, LOG_LEVEL and AUCTION_STORE
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = v
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok && v != "" {
		c.Store.RedisURL = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("AUCTION_STORE"); ok && v != "" {
		c.Store.Backend = v
	}
	return nil
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Log.Level)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
		if c.Store.EventsChannel == "" {
			return fmt.Errorf("store.events_channel is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid store.backend: %s (must be 'memory' or 'redis')", c.Store.Backend)
	}

	if err := c.Auction.Rules().Validate(); err != nil {
		return fmt.Errorf("auction: %w", err)
	}
	if c.Auction.SinkWorkers < 1 {
		return fmt.Errorf("auction.sink_workers must be >= 1, got %d", c.Auction.SinkWorkers)
	}
	if c.Auction.SubscriberBuffer < 1 {
		return fmt.Errorf("auction.subscriber_buffer must be >= 1, got %d", c.Auction.SubscriberBuffer)
	}

	return c.Seed.Validate()
}

// Validate checks seed entries are complete and unique
func (s SeedConfig) Validate() error {
	lots := make(map[string]bool)
	for i, lot := range s.Lots {
		if lot.LotID == "" {
			return fmt.Errorf("seed lot %d: lot_id is required", i)
		}
		if lots[lot.LotID] {
			return fmt.Errorf("seed lot %s: duplicate lot_id", lot.LotID)
		}
		if lot.BasePrice < 0 {
			return fmt.Errorf("seed lot %s: base_price cannot be negative", lot.LotID)
		}
		lots[lot.LotID] = true
	}

	orgs := make(map[string]bool)
	captains := make(map[string]string)
	for i, org := range s.Organizations {
		if org.OrganizationID == "" {
			return fmt.Errorf("seed organization %d: organization_id is required", i)
		}
		if orgs[org.OrganizationID] {
			return fmt.Errorf("seed organization %s: duplicate organization_id", org.OrganizationID)
		}
		if org.TotalBudget <= 0 {
			return fmt.Errorf("seed organization %s: total_budget must be positive", org.OrganizationID)
		}
		if org.CaptainID != "" {
			if other, exists := captains[org.CaptainID]; exists {
				return fmt.Errorf("captain %s leads both %s and %s", org.CaptainID, other, org.OrganizationID)
			}
			captains[org.CaptainID] = org.OrganizationID
		}
		orgs[org.OrganizationID] = true
	}
	return nil
}

// Rules converts the auction section into engine rules
func (a AuctionConfig) Rules() auction.Rules {
	return auction.Rules{
		MinIncrement:       a.MinIncrement,
		ExtensionThreshold: a.ExtensionThreshold,
		MirrorEvery:        a.MirrorEvery,
		TickPeriod:         a.TickPeriod,
		DefaultDuration:    a.DefaultDuration,
		SettlementRetries:  a.SettlementRetries,
		RetryBackoff:       a.RetryBackoff,
	}
}

// Addr returns the listen address for the HTTP server
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
