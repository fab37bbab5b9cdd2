// Package config resolves run settings from flags, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys shared between flag bindings and env bindings
const (
	KeyDatabaseURL   = "database_url"
	KeyNamespace     = "namespace"
	KeyOutput        = "output"
	KeyFormat        = "format"
	KeyConcurrency   = "concurrency"
	KeyStrict        = "strict"
	KeyTables        = "tables"
	KeyExcludeTables = "exclude"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"

	KeyPostgresHost     = "postgres.host"
	KeyPostgresPort     = "postgres.port"
	KeyPostgresUser     = "postgres.user"
	KeyPostgresPassword = "postgres.password"
	KeyPostgresDatabase = "postgres.database"
	KeyPostgresSSLMode  = "postgres.sslmode"

	KeyObjectEndpoint  = "object_store.endpoint"
	KeyObjectAccessKey = "object_store.access_key"
	KeyObjectSecretKey = "object_store.secret_key"
	KeyObjectUseSSL    = "object_store.use_ssl"
	KeyObjectRegion    = "object_store.region"
)

// DefaultEnvFile is loaded when present and no other file is named
const DefaultEnvFile = ".env"

// ErrNoDatabase is returned when neither a URL nor DB_* settings are given
var ErrNoDatabase = errors.New("no database configured: set DATABASE_URL or DB_HOST, DB_USER, DB_PASS and DB_NAME")

// Config holds everything a reflection run needs
type Config struct {
	DatabaseURL   string
	Postgres      Postgres
	Namespace     string
	Output        string
	Format        string
	Concurrency   int
	Strict        bool
	Tables        []string
	ExcludeTables []string
	LogLevel      string
	LogFormat     string
	ObjectStore   ObjectStore
}

// Postgres holds discrete connection settings, used when no URL is given
type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// ObjectStore holds S3 compatible storage settings for s3:// outputs
type ObjectStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// EnvBindings maps environment variables to config keys
var EnvBindings = map[string]string{
	"DATABASE_URL":     KeyDatabaseURL,
	"SCHEMA_NAMESPACE": KeyNamespace,
	"SCHEMA_OUTPUT":    KeyOutput,
	"SCHEMA_FORMAT":    KeyFormat,
	"LOG_LEVEL":        KeyLogLevel,
	"DB_HOST":          KeyPostgresHost,
	"DB_PORT":          KeyPostgresPort,
	"DB_USER":          KeyPostgresUser,
	"DB_PASS":          KeyPostgresPassword,
	"DB_NAME":          KeyPostgresDatabase,
	"DB_SSLMODE":       KeyPostgresSSLMode,
	"S3_ENDPOINT":      KeyObjectEndpoint,
	"S3_ACCESS_KEY":    KeyObjectAccessKey,
	"S3_SECRET_KEY":    KeyObjectSecretKey,
	"S3_USE_SSL":       KeyObjectUseSSL,
	"S3_REGION":        KeyObjectRegion,
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOutput, "src/schema/schema.toml")
	v.SetDefault(KeyFormat, "toml")
	v.SetDefault(KeyConcurrency, 4)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyPostgresPort, "5432")
	v.SetDefault(KeyPostgresSSLMode, "prefer")
}

// BindEnv binds every entry of EnvBindings
func BindEnv(v *viper.Viper) error {
	for envVar, key := range EnvBindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}
	return nil
}

// LoadEnvFile loads variables from path without overriding ones already set.
// A missing DefaultEnvFile is not an error; a missing explicit file is.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads v into a Config and validates it. Flags must already be bound.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseURL: strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		Postgres: Postgres{
			Host:     v.GetString(KeyPostgresHost),
			Port:     v.GetString(KeyPostgresPort),
			User:     v.GetString(KeyPostgresUser),
			Password: v.GetString(KeyPostgresPassword),
			Database: v.GetString(KeyPostgresDatabase),
			SSLMode:  v.GetString(KeyPostgresSSLMode),
		},
		Namespace:     v.GetString(KeyNamespace),
		Output:        v.GetString(KeyOutput),
		Format:        strings.ToLower(v.GetString(KeyFormat)),
		Concurrency:   v.GetInt(KeyConcurrency),
		Strict:        v.GetBool(KeyStrict),
		Tables:        splitList(v.GetStringSlice(KeyTables)),
		ExcludeTables: splitList(v.GetStringSlice(KeyExcludeTables)),
		LogLevel:      strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:     strings.ToLower(v.GetString(KeyLogFormat)),
		ObjectStore: ObjectStore{
			Endpoint:  v.GetString(KeyObjectEndpoint),
			AccessKey: v.GetString(KeyObjectAccessKey),
			SecretKey: v.GetString(KeyObjectSecretKey),
			UseSSL:    v.GetBool(KeyObjectUseSSL),
			Region:    v.GetString(KeyObjectRegion),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" && c.Postgres.Host == "" {
		return ErrNoDatabase
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.DatabaseURL, validation.By(supportedScheme)),
		validation.Field(&c.Postgres, validation.When(c.DatabaseURL == "", validation.By(func(interface{}) error {
			return c.Postgres.validate()
		}))),
		validation.Field(&c.Format, validation.Required, validation.In("toml", "yaml", "yml", "markdown", "md")),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "warning", "error", "disabled", "off")),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.ObjectStore, validation.When(strings.HasPrefix(c.Output, "s3://"), validation.By(func(interface{}) error {
			return c.ObjectStore.validate()
		}))),
	)
}

func (p Postgres) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Host, validation.Required, is.Host),
		validation.Field(&p.Port, validation.Required, is.Port),
		validation.Field(&p.User, validation.Required),
		validation.Field(&p.Database, validation.Required),
		validation.Field(&p.SSLMode, validation.In("disable", "allow", "prefer", "require", "verify-ca", "verify-full")),
	)
}

// ConnectionString renders the discrete settings as a postgres:// URL
func (p Postgres) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

func (o ObjectStore) validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Endpoint, validation.Required, is.DialString),
		validation.Field(&o.AccessKey, validation.Required),
		validation.Field(&o.SecretKey, validation.Required),
	)
}

// ConnectionURL returns DatabaseURL, or a PostgreSQL URL assembled from
// the DB_* settings when no URL was given
func (c Config) ConnectionURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.Postgres.ConnectionString()
}

func supportedScheme(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	for _, prefix := range []string{"postgres://", "postgresql://", "mysql://", "sqlite://"} {
		if strings.HasPrefix(s, prefix) {
			return nil
		}
	}
	return errors.New("must start with postgres://, postgresql://, mysql:// or sqlite://")
}

// splitList flattens comma separated entries, trimming blanks
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
