// Package redis wraps go-redis for the auth audit stream. The [Client]
// exposes the handful of stream commands the audit sink needs, each
// traced with OpenTelemetry and returning [*sserr.Error] on failure.
//
// # Configuration
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret(os.Getenv("REDIS_PASSWORD"))
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Tests inject a fake with [NewFromClient].
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// maxStatementTruncateLen caps db.statement span attributes. Stream
// entries carry user IDs, so statements never include field values.
const maxStatementTruncateLen = 100

const (
	// DefaultHost is the in-cluster Service name for Redis.
	DefaultHost = "redis.databases.svc.cluster.local"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultPoolSize is the maximum number of pooled connections. The
	// audit sink writes from a single worker, so this is deliberately small.
	DefaultPoolSize = 4

	// DefaultMaxRetries is the per-command retry budget inside go-redis.
	DefaultMaxRetries = 3

	// DefaultDialTimeout bounds establishing a connection.
	DefaultDialTimeout = 5 * time.Second

	// DefaultReadTimeout bounds waiting for a reply.
	DefaultReadTimeout = 3 * time.Second

	// DefaultWriteTimeout bounds writing a command.
	DefaultWriteTimeout = 3 * time.Second

	// DefaultHealthTimeout applies to [Client.Health] when the caller's
	// context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret holds a Redis password. It prints as "[REDACTED]" through fmt,
// %#v and text marshaling. Use [Secret.Value] to read it.
type Secret string

const redacted = "[REDACTED]"

// String returns "[REDACTED]".
func (s Secret) String() string { return redacted }

// GoString returns "[REDACTED]".
func (s Secret) GoString() string { return redacted }

// Value returns the raw password.
func (s Secret) Value() string { return string(s) }

// MarshalText returns "[REDACTED]".
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds connection settings. When URI is set it takes precedence
// over Host, Port, DB and Password.
type Config struct {
	// URI is a redis:// or rediss:// connection string.
	URI string `json:"uri,omitempty" env:"REDIS_URI"`

	Host     string `json:"host,omitempty" env:"REDIS_HOST"`
	Port     int    `json:"port,omitempty" env:"REDIS_PORT"`
	DB       int    `json:"db" env:"REDIS_DB"`
	Password Secret `json:"-" env:"REDIS_PASSWORD"`

	PoolSize   int `json:"pool_size,omitempty" env:"REDIS_POOL_SIZE"`
	MaxRetries int `json:"max_retries,omitempty" env:"REDIS_MAX_RETRIES"`

	DialTimeout  time.Duration `json:"dial_timeout,omitempty" env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" env:"REDIS_WRITE_TIMEOUT"`

	// TLSEnabled turns on TLS for structured configs. rediss:// URIs
	// enable it on their own.
	TLSEnabled bool `json:"tls_enabled,omitempty" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config pointing at the in-cluster Redis.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		PoolSize:     DefaultPoolSize,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate fills zero-valued fields with defaults and reports the first
// invalid setting.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	case c.PoolSize < 1:
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	case c.DialTimeout < 0, c.ReadTimeout < 0, c.WriteTimeout < 0:
		return fmt.Errorf("redis: config timeouts must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement shortens s to maxStatementTruncateLen runes.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
