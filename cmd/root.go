package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/config"
	"github.com/bdgould/shiny-sub001/internal/db"
	"github.com/bdgould/shiny-sub001/internal/gateway"
	"github.com/bdgould/shiny-sub001/internal/metric"
)

// EnvDB overrides database discovery.
const EnvDB = "SPARQLGW_DB"

var (
	configPath   string
	dbPath       string
	logLevel     string
	dumpMetrics  bool
	credUser     string
	credPassword string
	credToken    string
)

var rootCmd = &cobra.Command{
	Use:          "sparqlgw",
	Short:        "Query SPARQL backends and manage their ontology caches",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to "+config.FileName)
	pf.StringVar(&dbPath, "db", "", "Path to the cache database")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&dumpMetrics, "metrics", false, "Print metrics to stderr on exit")
	pf.StringVar(&credUser, "user", "", "Username for the target backend")
	pf.StringVar(&credPassword, "password", "", "Password for the target backend")
	pf.StringVar(&credToken, "token", "", "Bearer token for the target backend")
}

// App bundles what a command needs. Close releases it.
type App struct {
	Registry *config.Registry
	Creds    *config.CredentialStore
	Store    *db.DB
	Gateway  *gateway.Gateway
	Logger   *zap.Logger

	metrics *prometheus.Registry
}

// OpenApp loads the config, opens the cache database and wires the gateway.
// Credentials given on the command line are bound to backendID.
func OpenApp(backendID string) (*App, error) {
	path, err := config.Discover(configPath)
	if err != nil {
		return nil, err
	}
	reg, file, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := logLevel
	if level == "" {
		level = file.LogLevel
	}
	logger, err := NewLogger(level)
	if err != nil {
		return nil, err
	}

	storePath, err := DiscoverDB(file, path)
	if err != nil {
		return nil, err
	}
	store, err := db.OpenDB(storePath, db.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	creds := config.NewCredentialStore()
	if backendID != "" && (credUser != "" || credPassword != "" || credToken != "") {
		creds.SetCredentials(backendID, backend.Credentials{
			Username: credUser,
			Password: credPassword,
			Token:    credToken,
		})
	}

	promReg := prometheus.NewRegistry()
	m, err := metric.NewMetrics(promReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	gw, err := gateway.New(gateway.Options{
		Registry:    reg,
		Credentials: creds,
		Store:       store,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Debug("app opened",
		zap.String("config", path),
		zap.String("db", storePath),
		zap.Int("backends", len(reg.IDs())))
	return &App{Registry: reg, Creds: creds, Store: store, Gateway: gw, Logger: logger, metrics: promReg}, nil
}

// Close waits for background refreshes and closes the database.
func (a *App) Close() {
	a.Gateway.Wait()
	a.Gateway.Close()
	if totals, err := metric.Totals(a.metrics); err == nil {
		a.Logger.Debug("run summary",
			zap.Float64("queries", totals["sparqlgw_queries_total"]),
			zap.Float64("cache_builds", totals["sparqlgw_cache_builds_total"]))
	}
	if dumpMetrics {
		if err := metric.WriteText(os.Stderr, a.metrics); err != nil {
			a.Logger.Warn("writing metrics", zap.Error(err))
		}
	}
	a.Store.Close()
	_ = a.Logger.Sync()
}

// NewLogger builds a development logger for debug and a JSON production
// logger otherwise. Both write to stderr.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// DiscoverDB finds the database path using priority: env > flag > config > XDG fallback.
// A relative path in the config file is resolved against the config's directory.
func DiscoverDB(file *config.File, cfgPath string) (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv(EnvDB); envPath != "" {
		return envPath, nil
	}

	// 2. CLI flag
	if dbPath != "" {
		return dbPath, nil
	}

	// 3. Config file
	if file != nil && file.Database != "" {
		if filepath.IsAbs(file.Database) || cfgPath == "" {
			return file.Database, nil
		}
		return filepath.Join(filepath.Dir(cfgPath), file.Database), nil
	}

	// 4. XDG fallback
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no cache database configured (set %s, use --db, or set database in %s)", EnvDB, config.FileName)
	}
	dir := filepath.Join(home, ".local", "share", "sparqlgw")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, "cache.db"), nil
}

// readQuery returns the query given as argument, or read from the named
// file, or from stdin when the argument is "-".
func readQuery(args []string, file string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 0 || args[0] == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", errors.New("no query given")
		}
		return string(data), nil
	default:
		return args[0], nil
	}
}
