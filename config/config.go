package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/hubstore/auth"
	"github.com/sagarc03/hubstore/database"
	"github.com/sagarc03/hubstore/driver"
	hubhttp "github.com/sagarc03/hubstore/http"
	"github.com/sagarc03/hubstore/proofs"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for hubstore.
type Config struct {
	Env      string             `mapstructure:"env"`
	Server   ServerConfig       `mapstructure:"server"`
	Driver   driver.Config      `mapstructure:"driver"`
	Auth     AuthConfig         `mapstructure:"auth"`
	Proofs   ProofsConfig       `mapstructure:"proofs"`
	Database database.Config    `mapstructure:"database"`
	CORS     hubhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig          `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
	// Name is signed into the challenge text, so changing it invalidates tokens.
	Name            string        `mapstructure:"name" validate:"required"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" validate:"min=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	Whitelist auth.WhitelistConfig `mapstructure:"whitelist"`
	// ValidSince is an RFC 3339 timestamp. Tokens issued earlier are rejected.
	ValidSince string        `mapstructure:"valid_since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ClockSkew  time.Duration `mapstructure:"clock_skew" validate:"min=0"`
	DisableV1  bool          `mapstructure:"disable_v1"`
}

// ValidSinceTime parses ValidSince. An empty value yields the zero time.
func (a AuthConfig) ValidSinceTime() (time.Time, error) {
	if a.ValidSince == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, a.ValidSince)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse auth.valid_since: %w", err)
	}
	return t, nil
}

// ProofsConfig holds the proof policy and where proofs are read from.
type ProofsConfig struct {
	proofs.Policy `mapstructure:",squash"`
	// Source is "sql" for the local proof table or "grpc" for a remote proof service.
	Source string           `mapstructure:"source" validate:"required,oneof=sql grpc"`
	GRPC   GRPCSourceConfig `mapstructure:"grpc"`
	Cache  RedisCacheConfig `mapstructure:"cache"`
}

// GRPCSourceConfig configures the remote proof service client.
type GRPCSourceConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
	// Insecure dials without TLS.
	Insecure bool `mapstructure:"insecure"`
	// Listen is the address "hubstore proofs serve" binds to.
	Listen string `mapstructure:"listen"`
}

// RedisCacheConfig configures the optional Redis proof cache.
type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"min=0"`
	TTL       time.Duration `mapstructure:"ttl" validate:"min=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProduction reports whether Env selects production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":     "database.type",
	"db-dsn":      "database.dsn",
	"driver":      "driver.type",
	"disk-path":   "driver.disk.path",
	"port":        "server.port",
	"server-name": "server.name",
	"log-level":   "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
// Every key must have a default so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.name", "hubstore-0")
	v.SetDefault("server.max_upload_size", 20<<20)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("driver.type", "disk")
	v.SetDefault("driver.read_url_prefix", "")
	v.SetDefault("driver.page_size", driver.DefaultPageSize)
	v.SetDefault("driver.disk.path", "./data")
	v.SetDefault("driver.s3.bucket", "")
	v.SetDefault("driver.s3.region", "")
	v.SetDefault("driver.s3.endpoint", "")
	v.SetDefault("driver.s3.prefix", "")
	v.SetDefault("driver.s3.force_path_style", false)
	v.SetDefault("driver.s3.access_key", "")
	v.SetDefault("driver.s3.secret_key", "")
	v.SetDefault("driver.pebble.path", "./data.pebble")
	v.SetDefault("driver.pebble.compression_level", 0)

	v.SetDefault("auth.whitelist.inline", []string{})
	v.SetDefault("auth.whitelist.file", "")
	v.SetDefault("auth.valid_since", "")
	v.SetDefault("auth.clock_skew", auth.DefaultClockSkew)
	v.SetDefault("auth.disable_v1", false)

	v.SetDefault("proofs.enabled", false)
	v.SetDefault("proofs.min_proofs", 0)
	v.SetDefault("proofs.trusted_services", []string{})
	v.SetDefault("proofs.source", "sql")
	v.SetDefault("proofs.grpc.addr", "")
	v.SetDefault("proofs.grpc.timeout", 5*time.Second)
	v.SetDefault("proofs.grpc.insecure", false)
	v.SetDefault("proofs.grpc.listen", ":3001")
	v.SetDefault("proofs.cache.enabled", false)
	v.SetDefault("proofs.cache.addr", "")
	v.SetDefault("proofs.cache.password", "")
	v.SetDefault("proofs.cache.db", 0)
	v.SetDefault("proofs.cache.ttl", proofs.DefaultCacheTTL)
	v.SetDefault("proofs.cache.key_prefix", "hubstore:proofs:")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "hubstore.db")
	v.SetDefault("database.tables.proofs", "hubstore_proofs")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"ETag"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("HUBSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if _, ok := driver.Lookup(c.Driver.Type); !ok && len(driver.Names()) > 0 {
		return fmt.Errorf("validate config: driver.type %q is not one of %v", c.Driver.Type, driver.Names())
	}

	if c.Proofs.Enabled && c.Proofs.Source == "grpc" && c.Proofs.GRPC.Addr == "" {
		return errors.New("validate config: proofs.grpc.addr is required when proofs.source is grpc")
	}

	if err := c.Database.Tables.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}
