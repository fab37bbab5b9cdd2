package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tordrt/schemareflect"
	"github.com/tordrt/schemareflect/internal/config"
	"github.com/tordrt/schemareflect/internal/filestore"
	"github.com/tordrt/schemareflect/internal/formatter"
	"github.com/tordrt/schemareflect/internal/logger"
)

// stdoutTarget writes the document to stdout instead of a file
const stdoutTarget = "-"

type cliOptions struct {
	dbURL      string
	mysqlURL   string
	sqlitePath string
	envFile    string
	summary    bool
}

// flagKeys maps flag names to the config keys they override
var flagKeys = map[string]string{
	"output":      config.KeyOutput,
	"format":      config.KeyFormat,
	"schema":      config.KeyNamespace,
	"tables":      config.KeyTables,
	"exclude":     config.KeyExcludeTables,
	"concurrency": config.KeyConcurrency,
	"strict":      config.KeyStrict,
	"log-level":   config.KeyLogLevel,
	"log-format":  config.KeyLogFormat,
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "schemareflect",
		Short: "Reflect a database schema into a versioned TOML document",
		Long: `schemareflect reads the catalog of a PostgreSQL, MySQL, or SQLite database and writes
its tables, columns, primary keys, foreign keys and indexes as a deterministic document
(src/schema/schema.toml by default).

The connection can also be given through DATABASE_URL, or DB_HOST, DB_PORT, DB_USER,
DB_PASS and DB_NAME, read from the environment or a .env file.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dbURL, "db-url", "", "Database connection URL (postgres://, mysql://, or sqlite://)")
	flags.StringVar(&opts.mysqlURL, "mysql-url", "", "MySQL connection string")
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite database file path")
	flags.StringVar(&opts.envFile, "env-file", "", "Environment file to load (default: .env when present)")
	flags.BoolVar(&opts.summary, "summary", false, "Print a plain text summary of the reflected schema")
	flags.StringP("output", "o", "", "Output file or s3://bucket/key, - for stdout (default: src/schema/schema.toml)")
	flags.StringP("format", "f", "", "Output format: toml, yaml, or markdown (default: toml)")
	flags.StringP("schema", "s", "", "Namespace to reflect (default: public for PostgreSQL, main for SQLite)")
	flags.StringP("tables", "t", "", "Specific tables (comma-separated, optional)")
	flags.String("exclude", "", "Tables to skip (comma-separated, optional)")
	flags.Int("concurrency", 0, "Tables read in parallel (default: 4)")
	flags.Bool("strict", false, "Fail on catalog inconsistencies instead of warning")
	flags.String("log-level", "", "Log level: debug, info, warn, or error (default: info)")
	flags.String("log-format", "", "Log format: console or json (default: console)")

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, opts *cliOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}

	// Flags only override when set, leaving env values and defaults in place
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	dbURL, err := resolveDatabaseURL(opts)
	if err != nil {
		return err
	}
	if dbURL != "" {
		v.Set(config.KeyDatabaseURL, dbURL)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log := logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	ctx = logger.WithContext(ctx, log)

	format, err := formatter.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	res, err := schemareflect.Reflect(ctx, cfg.ConnectionURL(), &schemareflect.Options{
		Tables:        cfg.Tables,
		ExcludeTables: cfg.ExcludeTables,
		Namespace:     cfg.Namespace,
		Concurrency:   cfg.Concurrency,
		Strict:        cfg.Strict,
	})
	if err != nil {
		return fmt.Errorf("failed to reflect schema: %w", err)
	}

	out := &schemareflect.OutputOptions{
		Path:   cfg.Output,
		Format: format,
		ObjectStore: &filestore.ObjectConfig{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			UseSSL:    cfg.ObjectStore.UseSSL,
			Region:    cfg.ObjectStore.Region,
		},
	}
	if cfg.Output == stdoutTarget {
		out.Writer = cmd.OutOrStdout()
	}

	if err := schemareflect.Write(ctx, res.Schema, out); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	log.Info().
		Int("tables", len(res.Schema.Tables)).
		Int("warnings", len(res.Warnings)).
		Str("output", cfg.Output).
		Str("format", string(format)).
		Msg("schema reflected")

	if opts.summary {
		if err := formatter.NewTextFormatter(cmd.OutOrStdout()).Format(res.Schema); err != nil {
			return fmt.Errorf("failed to format summary: %w", err)
		}
	}

	return nil
}

// resolveDatabaseURL turns the connection flags into one URL. No flag
// yields "" so the environment can supply the connection.
func resolveDatabaseURL(opts *cliOptions) (string, error) {
	dbCount := 0
	if opts.dbURL != "" {
		dbCount++
	}
	if opts.mysqlURL != "" {
		dbCount++
	}
	if opts.sqlitePath != "" {
		dbCount++
	}
	if dbCount > 1 {
		return "", fmt.Errorf("only one of --db-url, --mysql-url, or --sqlite can be specified")
	}

	switch {
	case opts.sqlitePath != "":
		return "sqlite://" + opts.sqlitePath, nil
	case opts.mysqlURL != "":
		if strings.HasPrefix(opts.mysqlURL, "mysql://") {
			return opts.mysqlURL, nil
		}
		return "mysql://" + opts.mysqlURL, nil
	default:
		return opts.dbURL, nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
