package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Keystore  KeystoreConfig  `mapstructure:"keystore"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Handshake HandshakeConfig `mapstructure:"handshake"`
	Lease     LeaseConfig     `mapstructure:"lease"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend for journal, ledger,
// balances and outbox.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
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
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// KeystoreConfig controls where private keys live and how they are sealed.
type KeystoreConfig struct {
	Driver     string `mapstructure:"driver"` // file, postgres, memory
	Dir        string `mapstructure:"dir"`
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"` // hex, 16 bytes
}

type IdentityConfig struct {
	AddressDomain string   `mapstructure:"address_domain"`
	DisplayName   string   `mapstructure:"display_name"`
	Identities    []string `mapstructure:"identities"` // recovered at start-up
}

type HandshakeConfig struct {
	RequestTTL    time.Duration `mapstructure:"request_ttl"`
	MaxRequestTTL time.Duration `mapstructure:"max_request_ttl"`
	QRSize        int           `mapstructure:"qr_size"`
}

type LeaseConfig struct {
	Driver      string        `mapstructure:"driver"` // memory, redis
	TTL         time.Duration `mapstructure:"ttl"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

type SyncConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	Interval      time.Duration `mapstructure:"interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: OPE_ (Offline Payment Engine).
// Nested keys use underscore: OPE_DATABASE_HOST, OPE_KEYSTORE_PASSPHRASE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "offline_payments")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.ensure_schema", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "720h")
	v.SetDefault("jwt.issuer", "offline-payment-engine")
	v.SetDefault("keystore.driver", "file")
	v.SetDefault("keystore.dir", "./data/keys")
	v.SetDefault("keystore.passphrase", "")
	v.SetDefault("keystore.salt", "")
	v.SetDefault("identity.address_domain", "offline")
	v.SetDefault("identity.display_name", "")
	v.SetDefault("identity.identities", []string{})
	v.SetDefault("handshake.request_ttl", "5m")
	v.SetDefault("handshake.max_request_ttl", "24h")
	v.SetDefault("handshake.qr_size", 256)
	v.SetDefault("lease.driver", "memory")
	v.SetDefault("lease.ttl", "30s")
	v.SetDefault("lease.wait_timeout", "10s")
	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.endpoint", "")
	v.SetDefault("sync.interval", "30s")
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.rate_per_second", 5.0)
	v.SetDefault("sync.timeout", "10s")
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

	// Environment variables: OPE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("OPE")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Keystore.Driver {
	case "file", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported keystore driver %q", c.Keystore.Driver)
	}
	switch c.Lease.Driver {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("lease driver redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported lease driver %q", c.Lease.Driver)
	}
	if c.Handshake.RequestTTL <= 0 || c.Handshake.RequestTTL > c.Handshake.MaxRequestTTL {
		return fmt.Errorf("handshake.request_ttl must be in (0, %s]", c.Handshake.MaxRequestTTL)
	}
	if c.Sync.Enabled && c.Sync.Endpoint == "" {
		return fmt.Errorf("sync.endpoint is required when sync is enabled")
	}
	return nil
}
