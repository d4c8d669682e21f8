package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Custody    CustodyConfig    `mapstructure:"custody"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Token      TokenConfig      `mapstructure:"token"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StoreConfig selects the account-document store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // postgres or file
	Path    string `mapstructure:"path"`    // document path for the file backend
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

// LedgerConfig configures the EVM ledger client.
type LedgerConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ChainID         int64         `mapstructure:"chain_id"`
	GasLimit        uint64        `mapstructure:"gas_limit"`       // native value transfer
	TokenGasLimit   uint64        `mapstructure:"token_gas_limit"` // ERC-20 transfer
	RPCRateLimit    float64       `mapstructure:"rpc_rate_limit"`  // requests per second
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	ConfirmWait     time.Duration `mapstructure:"confirm_wait"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
	// BalanceDriftWei: cached balance is rewritten only when the live value
	// differs by more than this many wei.
	BalanceDriftWei string `mapstructure:"balance_drift_wei"`
}

// CustodyConfig configures the external custody provider client.
type CustodyConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EncryptionConfig holds the share-envelope key.
type EncryptionConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key (64 chars)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// TokenConfig describes the supported stablecoin contract.
type TokenConfig struct {
	Contract string `mapstructure:"contract"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int    `mapstructure:"decimals"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CWS_ (Custodial Wallet
// Service). Nested keys use underscore: CWS_LEDGER_RPC_URL, CWS_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("store.backend", "postgres")
	v.SetDefault("store.path", "data/accounts.json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "custodial_wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.rpc_url", "https://data-seed-prebsc-1-s1.binance.org:8545")
	v.SetDefault("ledger.chain_id", 97)
	v.SetDefault("ledger.gas_limit", 21000)
	v.SetDefault("ledger.token_gas_limit", 100000)
	v.SetDefault("ledger.rpc_rate_limit", 10.0)
	v.SetDefault("ledger.call_timeout", "10s")
	v.SetDefault("ledger.confirm_wait", "15s")
	v.SetDefault("ledger.confirm_interval", "3s")
	v.SetDefault("ledger.balance_drift_wei", "1000000000000") // 1e12 wei
	v.SetDefault("custody.base_url", "https://custody.sandbox.example.com")
	v.SetDefault("custody.api_key", "")
	v.SetDefault("custody.timeout", "15s")
	v.SetDefault("encryption.key", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "custodial-wallet-service")
	v.SetDefault("token.contract", "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06")
	v.SetDefault("token.symbol", "USDT")
	v.SetDefault("token.decimals", 6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CWS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
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
