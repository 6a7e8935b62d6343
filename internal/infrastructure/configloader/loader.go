package configloader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                string `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `yaml:"writeTimeoutSeconds"`
	SwaggerSpecPath     string `yaml:"swaggerSpecPath"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AggregatorConfig bounds upstream latency and paging.
type AggregatorConfig struct {
	AttemptTimeoutMs      int `yaml:"attemptTimeoutMs"`
	AggregateTimeoutMs    int `yaml:"aggregateTimeoutMs"`
	TransactionsTimeoutMs int `yaml:"transactionsTimeoutMs"`
	HTTPTimeoutMs         int `yaml:"httpTimeoutMs"`
	RPCDialTimeoutMs      int `yaml:"rpcDialTimeoutMs"`
	MaxConcurrent         int `yaml:"maxConcurrent"`
	DefaultShow           int `yaml:"defaultShow"`
	MaxShow               int `yaml:"maxShow"`
}

// PriceConfig selects and tunes the market ticker.
type PriceConfig struct {
	// Source is "binance" or "dexscreener".
	Source             string            `yaml:"source"`
	BinanceBaseURL     string            `yaml:"binanceBaseURL"`
	DEXScreenerBaseURL string            `yaml:"dexScreenerBaseURL"`
	RequestTimeoutMs   int               `yaml:"requestTimeoutMs"`
	CacheTTLSeconds    int               `yaml:"cacheTTLSeconds"`
	Stablecoins        []string          `yaml:"stablecoins"`
	Aliases            map[string]string `yaml:"aliases"`
}

// VerificationConfig configures the contract verification record store.
type VerificationConfig struct {
	// Store is "memory" or "sqlite".
	Store        string `yaml:"store"`
	SQLitePath   string `yaml:"sqlitePath"`
	MaxAgeHours  int    `yaml:"maxAgeHours"`
	HardTTLHours int    `yaml:"hardTTLHours"`
}

// KafkaConfig configures the fetch attempt publisher.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// DiagnosticsConfig groups optional attempt recorders.
type DiagnosticsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// TokensConfig points at the known token lists used by the rpc source.
type TokensConfig struct {
	Dir string `yaml:"dir"`
}

// NetworkOverride replaces parts of a built-in network definition. Empty fields keep
// the built-in value.
type NetworkOverride struct {
	RPCURLs           []string            `yaml:"rpcURLs"`
	ExplorerAPIURL    string              `yaml:"explorerApiURL"`
	ExplorerAPIKey    string              `yaml:"explorerApiKey"`
	BlockscoutURL     string              `yaml:"blockscoutURL"`
	ExplorerPageURL   string              `yaml:"explorerPageURL"`
	BalanceSelector   string              `yaml:"balanceSelector"`
	EsploraURLs       []string            `yaml:"esploraURLs"`
	RequestsPerSecond float64             `yaml:"requestsPerSecond"`
	Burst             int                 `yaml:"burst"`
	FiatSymbol        string              `yaml:"fiatSymbol"`
	PriceAliases      map[string]string   `yaml:"priceAliases"`
	Sources           map[string][]string `yaml:"sources"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server          ServerConfig               `yaml:"server"`
	Logging         LoggingConfig              `yaml:"logging"`
	Aggregator      AggregatorConfig           `yaml:"aggregator"`
	Price           PriceConfig                `yaml:"price"`
	Verification    VerificationConfig         `yaml:"verification"`
	Diagnostics     DiagnosticsConfig          `yaml:"diagnostics"`
	Tokens          TokensConfig               `yaml:"tokens"`
	EtherscanAPIKey string                     `yaml:"etherscanApiKey"`
	EnabledNetworks []string                   `yaml:"enabledNetworks"`
	Networks        map[string]NetworkOverride `yaml:"networks"`
}

// Load reads .env (if present) and the YAML configuration file, applies defaults and
// then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}
	applyEnv(cfg)

	logrus.Info("Configuration loaded successfully.")
	return cfg, nil
}

// Parse unmarshals YAML and applies defaults. It does not read the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Price.Source {
	case "binance", "dexscreener":
	default:
		return fmt.Errorf("price.source must be binance or dexscreener, got %q", cfg.Price.Source)
	}
	switch cfg.Verification.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("verification.store must be memory or sqlite, got %q", cfg.Verification.Store)
	}
	if cfg.Aggregator.DefaultShow > cfg.Aggregator.MaxShow {
		return fmt.Errorf("aggregator.defaultShow (%d) exceeds maxShow (%d)", cfg.Aggregator.DefaultShow, cfg.Aggregator.MaxShow)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}
	if cfg.Server.SwaggerSpecPath == "" {
		cfg.Server.SwaggerSpecPath = "./docs/swagger.yaml"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Aggregator.AttemptTimeoutMs <= 0 {
		cfg.Aggregator.AttemptTimeoutMs = 6000
		logrus.Infof("Aggregator.AttemptTimeoutMs not set, defaulting to %d ms", cfg.Aggregator.AttemptTimeoutMs)
	}
	if cfg.Aggregator.AggregateTimeoutMs <= 0 {
		cfg.Aggregator.AggregateTimeoutMs = 8000
		logrus.Infof("Aggregator.AggregateTimeoutMs not set, defaulting to %d ms", cfg.Aggregator.AggregateTimeoutMs)
	}
	if cfg.Aggregator.TransactionsTimeoutMs <= 0 {
		cfg.Aggregator.TransactionsTimeoutMs = 5000
		logrus.Infof("Aggregator.TransactionsTimeoutMs not set, defaulting to %d ms", cfg.Aggregator.TransactionsTimeoutMs)
	}
	if cfg.Aggregator.TransactionsTimeoutMs > cfg.Aggregator.AggregateTimeoutMs {
		logrus.Warnf("Aggregator.TransactionsTimeoutMs (%d) exceeds AggregateTimeoutMs (%d); the aggregate deadline wins",
			cfg.Aggregator.TransactionsTimeoutMs, cfg.Aggregator.AggregateTimeoutMs)
	}
	if cfg.Aggregator.HTTPTimeoutMs <= 0 {
		cfg.Aggregator.HTTPTimeoutMs = cfg.Aggregator.AttemptTimeoutMs
	}
	if cfg.Aggregator.RPCDialTimeoutMs <= 0 {
		cfg.Aggregator.RPCDialTimeoutMs = 10000
	}
	if cfg.Aggregator.MaxConcurrent <= 0 {
		cfg.Aggregator.MaxConcurrent = 16
	}
	if cfg.Aggregator.DefaultShow <= 0 {
		cfg.Aggregator.DefaultShow = 25
	}
	if cfg.Aggregator.MaxShow <= 0 {
		cfg.Aggregator.MaxShow = 100
	}

	cfg.Price.Source = strings.ToLower(strings.TrimSpace(cfg.Price.Source))
	if cfg.Price.Source == "" {
		cfg.Price.Source = "binance"
	}
	if cfg.Price.BinanceBaseURL == "" {
		cfg.Price.BinanceBaseURL = "https://api.binance.com"
	}
	if cfg.Price.DEXScreenerBaseURL == "" {
		cfg.Price.DEXScreenerBaseURL = "https://api.dexscreener.com"
	}
	if cfg.Price.RequestTimeoutMs <= 0 {
		cfg.Price.RequestTimeoutMs = 3000
	}
	if cfg.Price.CacheTTLSeconds <= 0 {
		cfg.Price.CacheTTLSeconds = 60
		logrus.Infof("Price.CacheTTLSeconds not set, defaulting to %d s", cfg.Price.CacheTTLSeconds)
	}

	if cfg.Verification.Store == "" {
		cfg.Verification.Store = "memory"
	}
	if cfg.Verification.SQLitePath == "" {
		cfg.Verification.SQLitePath = "data/verification.db"
	}
	if cfg.Verification.MaxAgeHours <= 0 {
		cfg.Verification.MaxAgeHours = 168
	}
	if cfg.Verification.HardTTLHours <= 0 {
		cfg.Verification.HardTTLHours = 720
	}

	if cfg.Diagnostics.Kafka.Topic == "" {
		cfg.Diagnostics.Kafka.Topic = "aggregator-fetch-attempts"
	}
	if cfg.Tokens.Dir == "" {
		cfg.Tokens.Dir = "data/tokens"
	}
	if cfg.Networks == nil {
		cfg.Networks = make(map[string]NetworkOverride)
	}
}

// applyEnv layers environment variables over the file values.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.EtherscanAPIKey = getEnv("ETHERSCAN_API_KEY", cfg.EtherscanAPIKey)
	cfg.Aggregator.AttemptTimeoutMs = getEnvAsInt("AGGREGATOR_ATTEMPT_TIMEOUT_MS", cfg.Aggregator.AttemptTimeoutMs)
	cfg.Aggregator.AggregateTimeoutMs = getEnvAsInt("AGGREGATOR_AGGREGATE_TIMEOUT_MS", cfg.Aggregator.AggregateTimeoutMs)
	cfg.Aggregator.TransactionsTimeoutMs = getEnvAsInt("AGGREGATOR_TRANSACTIONS_TIMEOUT_MS", cfg.Aggregator.TransactionsTimeoutMs)
	cfg.Verification.MaxAgeHours = getEnvAsInt("VERIFICATION_MAX_AGE_HOURS", cfg.Verification.MaxAgeHours)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Diagnostics.Kafka.Brokers = strings.Split(brokers, ",")
		cfg.Diagnostics.Kafka.Enabled = true
	}

	for _, name := range networkEnvNames(cfg) {
		prefix := strings.ToUpper(name)
		override := cfg.Networks[name]
		changed := false
		if key := os.Getenv(prefix + "_EXPLORER_API_KEY"); key != "" {
			override.ExplorerAPIKey = key
			changed = true
		}
		if rpcURL := os.Getenv(prefix + "_RPC_URL"); rpcURL != "" {
			override.RPCURLs = append([]string{rpcURL}, override.RPCURLs...)
			changed = true
		}
		if changed {
			cfg.Networks[name] = override
			logrus.Infof("Applied environment overrides for network %s", name)
		}
	}
}

// networkEnvNames lists the network keys env overrides may target.
func networkEnvNames(cfg *Config) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(n string) {
		n = strings.ToLower(strings.TrimSpace(n))
		if _, ok := seen[n]; ok || n == "" {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for n := range cfg.Networks {
		add(n)
	}
	for _, n := range cfg.EnabledNetworks {
		add(n)
	}
	for _, id := range entity.AllNetworkIDs() {
		add(string(id))
	}
	return names
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		logrus.Warnf("Ignoring invalid %s=%q", key, value)
		return fallback
	}
	return n
}
