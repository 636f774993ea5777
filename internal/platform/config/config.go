// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"privata/internal/platform/kafka/producer"
)

// Server captures HTTP server level configuration.
type Server struct {
	Env             string        `envconfig:"PRIVATA_ENV" default:"development"`
	Addr            string        `envconfig:"PRIVATA_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"PRIVATA_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"PRIVATA_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"PRIVATA_SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimit       int           `envconfig:"PRIVATA_RATE_LIMIT" default:"300"`
	MaxBodyBytes    int64         `envconfig:"PRIVATA_MAX_BODY_BYTES" default:"1048576"`
	// TrustedProxies are CIDR prefixes allowed to set X-Forwarded-For.
	TrustedProxies []string `envconfig:"PRIVATA_TRUSTED_PROXIES"`
	// SeedDemo fills the in-memory ledgers with demo subjects at startup.
	SeedDemo bool `envconfig:"PRIVATA_SEED_DEMO" default:"false"`
}

// IsDevelopment reports whether the process runs outside production.
func (s Server) IsDevelopment() bool {
	return s.Env != "production"
}

// Database configures the database/sql pool used by the ledger, audit and
// workflow stores.
type Database struct {
	URL             string        `envconfig:"DATABASE_URL"`
	ReplicaURL      string        `envconfig:"DATABASE_REPLICA_URL"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig configures the cache and job queue connection.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// RegionStores maps a region code to the DSN of its data store. The DSN scheme
// picks the adapter: postgres://, mongodb:// or memory.
//
// The env form is "US=postgres://...;EU=mongodb://..."; DSNs contain ':' and
// ',' so envconfig's built-in map syntax cannot carry them.
type RegionStores map[string]string

// Decode implements envconfig.Decoder.
func (r *RegionStores) Decode(value string) error {
	out := RegionStores{}
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		region, dsn, ok := strings.Cut(pair, "=")
		region = strings.ToUpper(strings.TrimSpace(region))
		if !ok || region == "" || strings.TrimSpace(dsn) == "" {
			return fmt.Errorf("invalid region store %q", pair)
		}
		out[region] = strings.TrimSpace(dsn)
	}
	*r = out
	return nil
}

// Storage configures regional data stores and the record cache.
type Storage struct {
	Regions  RegionStores  `envconfig:"PRIVATA_REGION_STORES" default:"US=memory;EU=memory"`
	MongoDB  string        `envconfig:"PRIVATA_MONGO_DATABASE" default:"privata"`
	CacheTTL time.Duration `envconfig:"PRIVATA_CACHE_TTL" default:"5m"`
}

// Compliance configures the gate and the audit sink.
type Compliance struct {
	Mode          string         `envconfig:"PRIVATA_COMPLIANCE_MODE" default:"strict"`
	ConsentTTL    time.Duration  `envconfig:"PRIVATA_CONSENT_TTL" default:"8760h"`
	RetentionDays map[string]int `envconfig:"PRIVATA_RETENTION_DAYS"`
	PolicyFile    string         `envconfig:"PRIVATA_POLICY_FILE"`
	SchemaFile    string         `envconfig:"PRIVATA_SCHEMA_FILE"`
	AuditTopic    string         `envconfig:"PRIVATA_AUDIT_TOPIC" default:"privata.audit.events"`
	// GeoPrefixes maps IPv4 CIDR prefixes to ISO country codes for IP based
	// residency, e.g. "10.1.0.0/16:DE,10.2.0.0/16:US".
	GeoPrefixes map[string]string `envconfig:"PRIVATA_GEO_PREFIXES"`
}

// Rights configures the data-subject rights workflow.
type Rights struct {
	TokenSigningKey  string        `envconfig:"PRIVATA_TOKEN_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	TokenTTL         time.Duration `envconfig:"PRIVATA_TOKEN_TTL" default:"24h"`
	PseudonymKey     string        `envconfig:"PRIVATA_PSEUDONYM_KEY" default:"dev-pseudonym-key"`
	MaxAttempts      int           `envconfig:"PRIVATA_RIGHTS_MAX_ATTEMPTS" default:"3"`
	BaseBackoff      time.Duration `envconfig:"PRIVATA_RIGHTS_BASE_BACKOFF" default:"200ms"`
	MaxBackoff       time.Duration `envconfig:"PRIVATA_RIGHTS_MAX_BACKOFF" default:"5s"`
	QueueConcurrency int           `envconfig:"PRIVATA_QUEUE_CONCURRENCY" default:"5"`
}

// Config is the full process configuration.
type Config struct {
	Server     Server
	Database   Database
	Redis      RedisConfig
	Kafka      producer.Config
	Storage    Storage
	Compliance Compliance
	Rights     Rights
}

// Load reads an optional .env file and then the environment. Variables already
// set in the environment win over .env values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	sections := []any{&cfg.Server, &cfg.Database, &cfg.Redis, &cfg.Kafka, &cfg.Storage, &cfg.Compliance, &cfg.Rights}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("process env: %w", err)
		}
	}

	if cfg.Compliance.PolicyFile != "" {
		if err := cfg.Compliance.mergePolicyFile(cfg.Compliance.PolicyFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Compliance.Mode) {
	case "strict", "relaxed", "disabled":
	default:
		return fmt.Errorf("invalid PRIVATA_COMPLIANCE_MODE %q", c.Compliance.Mode)
	}
	for framework, days := range c.Compliance.RetentionDays {
		if days <= 0 {
			return fmt.Errorf("retention for %s must be positive", framework)
		}
	}
	if !c.Server.IsDevelopment() && c.Rights.TokenSigningKey == "dev-secret-key-change-in-production" {
		return fmt.Errorf("PRIVATA_TOKEN_SIGNING_KEY must be set in production")
	}
	return nil
}

// policyFile is the YAML document at PRIVATA_POLICY_FILE.
type policyFile struct {
	Retention map[string]int `yaml:"retention"`
}

// mergePolicyFile loads retention overrides from YAML. Environment values take
// precedence over the file.
func (c *Compliance) mergePolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	if c.RetentionDays == nil {
		c.RetentionDays = make(map[string]int, len(doc.Retention))
	}
	for framework, days := range doc.Retention {
		key := strings.ToUpper(framework)
		if _, set := c.RetentionDays[key]; !set {
			c.RetentionDays[key] = days
		}
	}
	return nil
}
