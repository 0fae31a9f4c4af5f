// Package config loads the pocketd configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// POCKET_* environment variables, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/pocket/planner"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "POCKET_"

// Config holds the server settings.
type Config struct {
	Addr   string `yaml:"addr"`
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// MetadataDir is a metadata file or a directory of them.
	MetadataDir string `yaml:"metadataDir"`
	Watch       bool   `yaml:"watch"`
	// KeyStrategy is "uuid" or "ulid".
	KeyStrategy   string        `yaml:"keyStrategy"`
	SlowThreshold time.Duration `yaml:"slowThreshold"`
	// Workers and Rate bound bulk submissions. A zero rate is unlimited.
	Workers        int           `yaml:"workers"`
	Rate           float64       `yaml:"rate"`
	LogLevel       string        `yaml:"logLevel"`
	LogFormat      string        `yaml:"logFormat"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// ReadOnly lists entities that reject every write.
	ReadOnly []string `yaml:"readOnly"`
	// WriterRole, when set, is the role a caller needs for any write.
	WriterRole string `yaml:"writerRole"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:           ":8080",
		Driver:         "sqlite",
		DSN:            "file:pocket.db?_pragma=foreign_keys(1)",
		MetadataDir:    "metadata",
		KeyStrategy:    "uuid",
		SlowThreshold:  100 * time.Millisecond,
		Workers:        4,
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: 30 * time.Second,
	}
}

// LoadFile applies the YAML file at path on top of c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// LoadEnv applies the POCKET_* variables set in the environment on top of c.
func (c *Config) LoadEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	parse := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			}
		}
	}
	str("ADDR", &c.Addr)
	str("DRIVER", &c.Driver)
	str("DSN", &c.DSN)
	str("METADATA_DIR", &c.MetadataDir)
	str("KEY_STRATEGY", &c.KeyStrategy)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("WRITER_ROLE", &c.WriterRole)
	if v, ok := lookup("READ_ONLY"); ok {
		c.ReadOnly = splitList(v)
	}
	parse("WATCH", func(v string) (err error) {
		c.Watch, err = strconv.ParseBool(v)
		return err
	})
	parse("WORKERS", func(v string) (err error) {
		c.Workers, err = strconv.Atoi(v)
		return err
	})
	parse("RATE", func(v string) (err error) {
		c.Rate, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("SLOW_THRESHOLD", func(v string) (err error) {
		c.SlowThreshold, err = time.ParseDuration(v)
		return err
	})
	parse("REQUEST_TIMEOUT", func(v string) (err error) {
		c.RequestTimeout, err = time.ParseDuration(v)
		return err
	})
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Load builds the configuration from every layer. args are the command-line
// arguments without the program name.
func Load(args []string) (*Config, error) {
	var (
		flags    Config
		path     string
		readOnly string
	)
	fs := flag.NewFlagSet("pocketd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to a YAML config file")
	fs.StringVar(&flags.Addr, "addr", "", "HTTP listen address")
	fs.StringVar(&flags.Driver, "driver", "", "database driver (sqlite, pgx, postgres, mysql)")
	fs.StringVar(&flags.DSN, "dsn", "", "database connection string")
	fs.StringVar(&flags.MetadataDir, "metadata", "", "metadata file or directory")
	fs.BoolVar(&flags.Watch, "watch", false, "reload metadata on change")
	fs.StringVar(&flags.KeyStrategy, "keys", "", "primary key strategy (uuid, ulid)")
	fs.DurationVar(&flags.SlowThreshold, "slow", 0, "slow statement threshold")
	fs.IntVar(&flags.Workers, "workers", 0, "bulk insert workers")
	fs.Float64Var(&flags.Rate, "rate", 0, "bulk insert rate limit per second")
	fs.StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&flags.LogFormat, "log-format", "", "log format (text, json)")
	fs.DurationVar(&flags.RequestTimeout, "timeout", 0, "request timeout")
	fs.StringVar(&readOnly, "read-only", "", "comma separated entities rejecting writes")
	fs.StringVar(&flags.WriterRole, "writer-role", "", "role required for writes")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if path == "" {
		path, _ = lookup("CONFIG")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// Only flags given on the command line override the other layers.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flags.Addr
		case "driver":
			cfg.Driver = flags.Driver
		case "dsn":
			cfg.DSN = flags.DSN
		case "metadata":
			cfg.MetadataDir = flags.MetadataDir
		case "watch":
			cfg.Watch = flags.Watch
		case "keys":
			cfg.KeyStrategy = flags.KeyStrategy
		case "slow":
			cfg.SlowThreshold = flags.SlowThreshold
		case "workers":
			cfg.Workers = flags.Workers
		case "rate":
			cfg.Rate = flags.Rate
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "timeout":
			cfg.RequestTimeout = flags.RequestTimeout
		case "read-only":
			cfg.ReadOnly = splitList(readOnly)
		case "writer-role":
			cfg.WriterRole = flags.WriterRole
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Driver {
	case "sqlite", "pgx", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q", c.Driver))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if c.MetadataDir == "" {
		errs = append(errs, errors.New("metadata path is required"))
	}
	if _, ok := planner.KeyGeneratorFor(c.KeyStrategy); !ok {
		errs = append(errs, fmt.Errorf("unknown key strategy %q", c.KeyStrategy))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %g", c.Rate))
	}
	if c.SlowThreshold < 0 {
		errs = append(errs, fmt.Errorf("slow threshold must not be negative, got %s", c.SlowThreshold))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return l, nil
}

// Logger returns a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := c.Level()
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
