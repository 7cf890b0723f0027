// Package config binds the environment variables in spec.md §6 into a
// validated Config, using viper the way the rest of the domain stack's
// ambient dependencies were picked: a library already present in the
// retrieval pack rather than a hand-rolled os.Getenv scatter.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Commitment is a Solana confirmation level.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Config is the fully bound, validated process configuration.
type Config struct {
	Port int

	SolanaRPCURL     string
	SolanaCommitment Commitment
	ChainExplorer    string
	Cluster          string

	WalletPrivateKey string

	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	PostgresURL            string
	PostgresPoolMax        int
	PostgresIdleTimeoutMs  int

	SlippageBps int // derived from SLIPPAGE, clamped to [1,10000]

	LogLevel string
	NodeEnv  string

	CORSOrigin string

	RouteTimeoutMs   int
	WorkerConcurrency int
	RateLimitPerWindow int
	ShutdownTimeoutMs int
}

// Load reads environment variables (with the defaults spec.md §6 specifies)
// and returns a validated Config, or an error describing the first bad
// value encountered.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]interface{}{
		"PORT":                     8080,
		"SOLANA_RPC_URL":           "https://api.devnet.solana.com",
		"SOLANA_COMMITMENT":        "confirmed",
		"CHAIN_EXPLORER":           "https://explorer.solana.com",
		"CLUSTER":                  "devnet",
		"WALLET_PRIVATE_KEY":       "",
		"REDIS_URL":                "",
		"REDIS_HOST":               "",
		"REDIS_PORT":               "6379",
		"REDIS_USERNAME":           "",
		"REDIS_PASSWORD":           "",
		"REDIS_DB":                 0,
		"POSTGRES_URL":             "",
		"POSTGRES_POOL_MAX":        10,
		"POSTGRES_IDLE_TIMEOUT_MS": 30000,
		"SLIPPAGE":                 0.01,
		"LOG_LEVEL":                "info",
		"NODE_ENV":                 "development",
		"CORS_ORIGIN":              "*",
		"ROUTE_TIMEOUT_MS":         5000,
		"WORKER_CONCURRENCY":       10,
		"RATE_LIMIT_PER_WINDOW":    100,
		"SHUTDOWN_TIMEOUT_MS":      10000,
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}

	commitment := Commitment(strings.ToLower(v.GetString("SOLANA_COMMITMENT")))
	switch commitment {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
	default:
		return nil, fmt.Errorf("invalid SOLANA_COMMITMENT %q", commitment)
	}

	slippage := v.GetFloat64("SLIPPAGE")
	if slippage <= 0 {
		slippage = 0.01
	}
	slippageBps := int(slippage * 10000)
	if slippageBps < 1 {
		slippageBps = 1
	}
	if slippageBps > 10000 {
		slippageBps = 10000
	}

	cfg := &Config{
		Port:                  v.GetInt("PORT"),
		SolanaRPCURL:          v.GetString("SOLANA_RPC_URL"),
		SolanaCommitment:      commitment,
		ChainExplorer:         v.GetString("CHAIN_EXPLORER"),
		Cluster:               v.GetString("CLUSTER"),
		WalletPrivateKey:      v.GetString("WALLET_PRIVATE_KEY"),
		RedisURL:              v.GetString("REDIS_URL"),
		RedisHost:             v.GetString("REDIS_HOST"),
		RedisPort:             v.GetString("REDIS_PORT"),
		RedisUsername:         v.GetString("REDIS_USERNAME"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		PostgresURL:           v.GetString("POSTGRES_URL"),
		PostgresPoolMax:       v.GetInt("POSTGRES_POOL_MAX"),
		PostgresIdleTimeoutMs: v.GetInt("POSTGRES_IDLE_TIMEOUT_MS"),
		SlippageBps:           slippageBps,
		LogLevel:              v.GetString("LOG_LEVEL"),
		NodeEnv:               v.GetString("NODE_ENV"),
		CORSOrigin:            v.GetString("CORS_ORIGIN"),
		RouteTimeoutMs:        v.GetInt("ROUTE_TIMEOUT_MS"),
		WorkerConcurrency:     v.GetInt("WORKER_CONCURRENCY"),
		RateLimitPerWindow:    v.GetInt("RATE_LIMIT_PER_WINDOW"),
		ShutdownTimeoutMs:     v.GetInt("SHUTDOWN_TIMEOUT_MS"),
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.RateLimitPerWindow < 1 {
		cfg.RateLimitPerWindow = 1
	}
	return cfg, nil
}

// RouteTimeout returns ROUTE_TIMEOUT_MS as a time.Duration.
func (c *Config) RouteTimeout() time.Duration {
	return time.Duration(c.RouteTimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns SHUTDOWN_TIMEOUT_MS as a time.Duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// RateLimitWindow is the fixed window spec.md §4.7 rate-limits against.
const RateLimitWindow = 60 * time.Second
