package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPollingDelay applies when worker.polling_delay_ms is unset or non-positive.
const DefaultPollingDelay = 10000 * time.Millisecond

// Config holds all application configuration.
type Config struct {
	Worker   WorkerConfig   `mapstructure:"worker"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	EVM      EVMConfig      `mapstructure:"evm"`
	Cosmos   CosmosConfig   `mapstructure:"cosmos"`
	Event    EventConfig    `mapstructure:"event"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Log      LogConfig      `mapstructure:"log"`
}

type WorkerConfig struct {
	PollingDelayMS    int           `mapstructure:"polling_delay_ms"`
	BatchLimit        int           `mapstructure:"batch_limit"`
	StaleClaimAfter   time.Duration `mapstructure:"stale_claim_after"`
	StaleScanInterval time.Duration `mapstructure:"stale_scan_interval"`
	CycleLockTTL      time.Duration `mapstructure:"cycle_lock_ttl"` // 0 = cycle lock disabled
}

// PollingDelay returns the fixed delay between two poll cycles.
func (w WorkerConfig) PollingDelay() time.Duration {
	if w.PollingDelayMS <= 0 {
		return DefaultPollingDelay
	}
	return time.Duration(w.PollingDelayMS) * time.Millisecond
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"` // claim row-lock wait, 0 = server default
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// EVMConfig configures the account-based chain client.
type EVMConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	ChainID      int64  `mapstructure:"chain_id"`
	TokenAddress string `mapstructure:"token_address"`
	SignerKey    string `mapstructure:"signer_key"` // hex-encoded secp256k1 private key
	GasLimit     uint64 `mapstructure:"gas_limit"`
	MaxAttempts  uint64 `mapstructure:"max_attempts"` // 0 = retry until success
}

// CosmosConfig configures the sequence-based chain client.
type CosmosConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	RelayURL     string `mapstructure:"relay_url"`
	Denom        string `mapstructure:"denom"`
	Bech32Prefix string `mapstructure:"bech32_prefix"`
	MaxAttempts  uint64 `mapstructure:"max_attempts"` // 0 = retry until success
}

type EventConfig struct {
	Topic string `mapstructure:"topic"`
}

type OpsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address of the health/metrics server.
func (o OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PAYOUT_.
// Nested keys use underscore: PAYOUT_DATABASE_HOST, PAYOUT_WORKER_POLLING_DELAY_MS, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("worker.polling_delay_ms", 10000)
	v.SetDefault("worker.batch_limit", 250)
	v.SetDefault("worker.stale_claim_after", "30m")
	v.SetDefault("worker.stale_scan_interval", "5m")
	v.SetDefault("worker.cycle_lock_ttl", "5m")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payouts")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("evm.rpc_url", "http://localhost:8545")
	v.SetDefault("evm.chain_id", 1)
	v.SetDefault("evm.token_address", "")
	v.SetDefault("evm.signer_key", "")
	v.SetDefault("evm.gas_limit", 100000)
	v.SetDefault("evm.max_attempts", 0)
	v.SetDefault("cosmos.rpc_url", "http://localhost:26657")
	v.SetDefault("cosmos.relay_url", "http://localhost:8081")
	v.SetDefault("cosmos.denom", "nanolike")
	v.SetDefault("cosmos.bech32_prefix", "cosmos")
	v.SetDefault("cosmos.max_attempts", 0)
	v.SetDefault("event.topic", "misc")
	v.SetDefault("ops.host", "0.0.0.0")
	v.SetDefault("ops.port", 9090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PAYOUT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PAYOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
