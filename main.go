package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // CRON_TIMEZONE must resolve in minimal images

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/config"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/discovery"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/discovery/wasm"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/envvar"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

const envDatabaseURL = "DATABASE_URL"

func main() {
	printConfig := flag.Bool("print-config", false, "Print the resolved configuration as YAML and exit")
	flag.Usage = usage
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %s\n", logging.SanitizeError(err))
		os.Exit(1)
	}

	logger, level, err := logging.NewLogger(settings.LogLevel, settings.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, logger, level, settings, *printConfig)
	stop()

	if err != nil {
		logger.Error("Job failed", zap.String("error", logging.SanitizeError(err)))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, logger *zap.Logger, level zap.AtomicLevel, settings *config.Settings, printConfig bool) error {
	r := envvar.New(logger)

	cfg, err := config.Load(r, time.Now())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}
	logger = logger.With(zap.String("run_id", cfg.RunID.String()))
	logger.Info("Configuration loaded",
		zap.String("version", Version),
		zap.Object("config", cfg))

	source, err := resolveDatasource(r)
	if err != nil {
		return err
	}

	if printConfig {
		return dumpConfig(cfg, source)
	}

	if source != nil {
		logger.Info("Datasource configured",
			zap.String("type", source.Type()),
			zap.Stringer("connection", source))
		ctx = datasource.NewContext(ctx, source)
	}
	ctx = config.NewContext(ctx, cfg)

	d := discovery.New(logger, wasm.NewLoader(logger).Option())
	units, err := d.Units(ctx, settings.UnitsDir, discovery.Filter{
		Models: cfg.Selection(),
		Tags:   cfg.Tags,
	})
	if err != nil {
		return fmt.Errorf("failed to discover units: %w", err)
	}
	if len(units) == 0 {
		logger.Warn("No units selected", zap.String("units_dir", settings.UnitsDir))
		return nil
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		logger.Info("Running unit", zap.String("unit", unit.Name), zap.Strings("tags", unit.Tags))
		if err := unit.Execute(ctx); err != nil {
			return fmt.Errorf("unit %s: %w", unit.Name, err)
		}
		logger.Info("Unit finished", zap.String("unit", unit.Name), zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// resolveDatasource returns nil when DATABASE_URL is unset.
func resolveDatasource(r *envvar.Reader) (datasource.ConnectionConfig, error) {
	d, ok, err := r.DSN(envDatabaseURL)
	if err != nil || !ok {
		return nil, err
	}
	d, err = config.ResolveDSNForDocker(d)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", envDatabaseURL, err)
	}

	source, err := datasource.FromDSN(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envDatabaseURL, err)
	}
	return source, nil
}

func dumpConfig(cfg *config.Config, source datasource.ConnectionConfig) error {
	out := struct {
		Config     *config.Config `yaml:"config"`
		Datasource string         `yaml:"datasource,omitempty"`
	}{Config: cfg}
	if source != nil {
		out.Datasource = source.String()
	}

	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(out)
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()

	if description, err := config.SettingsUsage(); err == nil {
		fmt.Fprintf(flag.CommandLine.Output(), "\n%s\n", description)
	}

	fmt.Fprintf(flag.CommandLine.Output(), `
Job variables:
  CRON_ENABLED, CRON_EXPRESSION, CRON_TIMEZONE
  BACKFILL_ENABLED, BACKFILL_SINCE, BACKFILL_UNTIL, BACKFILL_BATCH_SIZE
  MODEL_NAME, MODELS, TAGS, DEBUG
  %s (format %s)
`, envDatabaseURL, dsn.Format)
}
