package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Review   ReviewConfig   `mapstructure:"review"`
	Authz    AuthzConfig    `mapstructure:"authz"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Parsers  ParsersConfig  `mapstructure:"parsers"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// MaxOpenConns caps the pool. Zero keeps the driver default.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	// Driver is one of database, s3, memory.
	Driver               string   `mapstructure:"driver"`
	S3                   S3Config `mapstructure:"s3"`
	// Compression of stored code files: zstd, lz4 or none.
	Compression          string   `mapstructure:"compression"`
	CodeFileCacheEntries int      `mapstructure:"code_file_cache_entries"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type ReviewConfig struct {
	MaxConflictRetries int           `mapstructure:"max_conflict_retries"`
	ConflictBackoff    time.Duration `mapstructure:"conflict_backoff"`
}

type AuthzConfig struct {
	Admins             []string `mapstructure:"admins"`
	Approvers          []string `mapstructure:"approvers"`
	AutomaticModifiers []string `mapstructure:"automatic_modifiers"`
}

type NotifyConfig struct {
	// Driver is log or nats.
	Driver        string `mapstructure:"driver"`
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type ParsersConfig struct {
	// LanguageDefaults maps a language to the parser used when a stored file
	// name no longer resolves.
	LanguageDefaults map[string]string `mapstructure:"language_defaults"`
}

type WatchConfig struct {
	Dir    string        `mapstructure:"dir"`
	Settle time.Duration `mapstructure:"settle"`
	Actor  string        `mapstructure:"actor"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APIVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("notify_driver", cfg.Notify.Driver),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 0 {
		return errors.New("database.max_open_conns must not be negative")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "database", "memory":
	case "s3":
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.endpoint and storage.s3.bucket are required for the s3 driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Storage.Compression {
	case "", "zstd", "lz4", "none":
	default:
		return fmt.Errorf("unsupported storage compression %q", c.Storage.Compression)
	}
	switch strings.ToLower(c.Notify.Driver) {
	case "log":
	case "nats":
		if c.Notify.NATSURL == "" {
			return errors.New("notify.nats_url is required for the nats driver")
		}
	default:
		return fmt.Errorf("unsupported notify driver %q", c.Notify.Driver)
	}
	if c.Review.MaxConflictRetries < 0 {
		return errors.New("review.max_conflict_retries must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "apiview")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".apiview/apiview.sqlite")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("storage.driver", "database")
	v.SetDefault("storage.compression", "zstd")
	v.SetDefault("storage.code_file_cache_entries", 256)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("review.max_conflict_retries", 3)
	v.SetDefault("review.conflict_backoff", 25*time.Millisecond)
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.subject_prefix", "apiview")
	v.SetDefault("watch.settle", 500*time.Millisecond)
	v.SetDefault("watch.actor", "pipeline")
}
