package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/basekick-labs/arcclient/internal/circuitbreaker"
	"github.com/basekick-labs/arcclient/pkg/client"
	"github.com/basekick-labs/arcclient/pkg/lineprotocol"
	"github.com/basekick-labs/arcclient/pkg/serializer"
)

// Config holds all configuration for arcclient
type Config struct {
	Server  ServerConfig
	Query   QueryConfig
	Write   WriteConfig
	Flight  FlightConfig
	Breaker BreakerConfig
	Log     LogConfig
}

type ServerConfig struct {
	URL   string
	Token string
	// Timeout for a single HTTP write request, in seconds
	Timeout int
}

type QueryConfig struct {
	Database        string
	Type            string // sql, influxql or flightsql
	Serializer      string // library, generic or raw
	QueueSize       int    // Bounded queue between decoder and consumer
	Workers         int    // Column conversion workers (default: min(NumCPU, 8))
	InlineThreshold int    // Batches with fewer rows convert without workers
	HistorySize     int    // Finished queries kept for inspection
}

type WriteConfig struct {
	Database      string
	Org           string
	Precision     string // ns, us, ms, s
	NoSync        bool
	Gzip          bool
	GzipThreshold int
	DefaultTags   []string // "name=value"
	Headers       []string // "Name=value"
}

type FlightConfig struct {
	Address           string // host:port, defaults to the server url's host
	KeepAliveInterval int    // Seconds between keepalive pings
	KeepAliveTimeout  int    // Seconds to wait for a ping ack
}

type BreakerConfig struct {
	Enabled             bool
	MaxFailures         int
	TimeoutSeconds      int
	HalfOpenMaxRequests int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from defaults, arcclient.toml and ARCCLIENT_*
// environment variables, in increasing priority
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ARCCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("arcclient")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/arcclient/")
	v.AddConfigPath("$HOME/.arcclient/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{
		Server: ServerConfig{
			URL:     v.GetString("server.url"),
			Token:   v.GetString("server.token"),
			Timeout: v.GetInt("server.timeout"),
		},
		Query: QueryConfig{
			Database:        v.GetString("query.database"),
			Type:            v.GetString("query.type"),
			Serializer:      v.GetString("query.serializer"),
			QueueSize:       v.GetInt("query.queue_size"),
			Workers:         v.GetInt("query.workers"),
			InlineThreshold: v.GetInt("query.inline_threshold"),
			HistorySize:     v.GetInt("query.history_size"),
		},
		Write: WriteConfig{
			Database:      v.GetString("write.database"),
			Org:           v.GetString("write.org"),
			Precision:     v.GetString("write.precision"),
			NoSync:        v.GetBool("write.no_sync"),
			Gzip:          v.GetBool("write.gzip"),
			GzipThreshold: v.GetInt("write.gzip_threshold"),
			DefaultTags:   stringList(v, "write.default_tags"),
			Headers:       stringList(v, "write.headers"),
		},
		Flight: FlightConfig{
			Address:           v.GetString("flight.address"),
			KeepAliveInterval: v.GetInt("flight.keep_alive_interval"),
			KeepAliveTimeout:  v.GetInt("flight.keep_alive_timeout"),
		},
		Breaker: BreakerConfig{
			Enabled:             v.GetBool("breaker.enabled"),
			MaxFailures:         v.GetInt("breaker.max_failures"),
			TimeoutSeconds:      v.GetInt("breaker.timeout_seconds"),
			HalfOpenMaxRequests: v.GetInt("breaker.half_open_max_requests"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	return cfg, nil
}

// stringList reads a list setting. A config file list is taken entry by
// entry; a scalar string (an environment variable) is split with SplitList.
func stringList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return SplitList(raw)
	}
	return v.GetStringSlice(key)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.url", "http://localhost:8000")
	v.SetDefault("server.token", "")
	v.SetDefault("server.timeout", 30)

	// Query defaults
	v.SetDefault("query.database", "default")
	v.SetDefault("query.type", "sql")
	v.SetDefault("query.serializer", "library")
	v.SetDefault("query.queue_size", 100)
	v.SetDefault("query.workers", getDefaultWorkers())
	v.SetDefault("query.inline_threshold", serializer.DefaultInlineThreshold)
	v.SetDefault("query.history_size", 100)

	// Write defaults
	v.SetDefault("write.database", "default")
	v.SetDefault("write.org", "")
	v.SetDefault("write.precision", "ns")
	v.SetDefault("write.no_sync", true)
	v.SetDefault("write.gzip", true)
	v.SetDefault("write.gzip_threshold", client.DefaultGzipThreshold)
	v.SetDefault("write.default_tags", []string{})
	v.SetDefault("write.headers", []string{})

	// Flight defaults
	v.SetDefault("flight.address", "")
	v.SetDefault("flight.keep_alive_interval", 5)
	v.SetDefault("flight.keep_alive_timeout", 20)

	// Circuit breaker defaults
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout_seconds", 30)
	v.SetDefault("breaker.half_open_max_requests", 3)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// getDefaultWorkers returns the column conversion pool size
func getDefaultWorkers() int {
	return min(runtime.NumCPU(), serializer.DefaultMaxWorkers)
}

// Validate checks values that cannot be fixed up by defaults
func (cfg *Config) Validate() error {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server.url %q: expected http(s)://host[:port]", cfg.Server.URL)
	}
	if _, err := client.ParseQueryType(cfg.Query.Type); err != nil {
		return fmt.Errorf("invalid query.type: %w", err)
	}
	if _, err := serializer.ParseKind(cfg.Query.Serializer); err != nil {
		return fmt.Errorf("invalid query.serializer: %w", err)
	}
	if _, err := lineprotocol.ParsePrecision(cfg.Write.Precision); err != nil {
		return fmt.Errorf("invalid write.precision: %w", err)
	}
	if cfg.Query.QueueSize < 0 {
		return fmt.Errorf("query.queue_size cannot be negative: %d", cfg.Query.QueueSize)
	}
	if cfg.Write.GzipThreshold < 0 {
		return fmt.Errorf("write.gzip_threshold cannot be negative: %d", cfg.Write.GzipThreshold)
	}
	if _, err := ParseKeyValues(cfg.Write.DefaultTags); err != nil {
		return fmt.Errorf("invalid write.default_tags: %w", err)
	}
	if _, err := ParseKeyValues(cfg.Write.Headers); err != nil {
		return fmt.Errorf("invalid write.headers: %w", err)
	}
	if cfg.Breaker.Enabled && cfg.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("breaker.max_failures must be positive when the breaker is enabled")
	}
	return nil
}

// ClientConfig converts the loaded configuration into client options.
// Validate must have succeeded.
func (cfg *Config) ClientConfig() (client.Config, error) {
	kind, err := serializer.ParseKind(cfg.Query.Serializer)
	if err != nil {
		return client.Config{}, err
	}
	precision, err := lineprotocol.ParsePrecision(cfg.Write.Precision)
	if err != nil {
		return client.Config{}, err
	}
	tags, err := ParseKeyValues(cfg.Write.DefaultTags)
	if err != nil {
		return client.Config{}, err
	}
	headers, err := ParseKeyValues(cfg.Write.Headers)
	if err != nil {
		return client.Config{}, err
	}

	cc := client.DefaultConfig(cfg.Server.URL)
	cc.Token = cfg.Server.Token
	cc.Serializer = kind
	cc.QueueSize = cfg.Query.QueueSize
	cc.Workers = cfg.Query.Workers
	cc.InlineThreshold = cfg.Query.InlineThreshold
	cc.QueryHistory = cfg.Query.HistorySize
	cc.HTTPTimeout = time.Duration(cfg.Server.Timeout) * time.Second

	cc.Flight = client.FlightOptions{
		Address:           cfg.Flight.Address,
		KeepAliveInterval: time.Duration(cfg.Flight.KeepAliveInterval) * time.Second,
		KeepAliveTimeout:  time.Duration(cfg.Flight.KeepAliveTimeout) * time.Second,
	}

	cc.Write = client.WriteOptions{
		Precision:     precision,
		Headers:       headers,
		Gzip:          cfg.Write.Gzip,
		GzipThreshold: cfg.Write.GzipThreshold,
		NoSync:        cfg.Write.NoSync,
		DefaultTags:   tags,
		Org:           cfg.Write.Org,
	}

	if cfg.Breaker.Enabled {
		cc.Breaker = &circuitbreaker.Config{
			Name:                "writes",
			MaxFailures:         cfg.Breaker.MaxFailures,
			Timeout:             time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
			HalfOpenMaxRequests: cfg.Breaker.HalfOpenMaxRequests,
		}
	}

	return cc, nil
}
