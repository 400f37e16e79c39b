package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/envvar"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/schedule"
)

// Environment variables read by Load.
const (
	EnvCronEnabled       = "CRON_ENABLED"
	EnvCronExpression    = "CRON_EXPRESSION"
	EnvCronTimezone      = "CRON_TIMEZONE"
	EnvBackfillEnabled   = "BACKFILL_ENABLED"
	EnvBackfillSince     = "BACKFILL_SINCE"
	EnvBackfillUntil     = "BACKFILL_UNTIL"
	EnvBackfillBatchSize = "BACKFILL_BATCH_SIZE"
	EnvModelName         = "MODEL_NAME"
	EnvModels            = "MODELS"
	EnvTags              = "TAGS"
	EnvDebug             = "DEBUG"
)

// Config is the configuration snapshot for one job invocation.
// It is built once by Load and must not be modified afterwards.
type Config struct {
	// RunID identifies this snapshot in logs.
	RunID uuid.UUID

	// ModelName selects a single unit by name.
	ModelName string
	// Models and Tags are nil when the variable is unset.
	Models []string
	Tags   []string
	Debug  bool

	Cron     CronConfig
	Backfill BackfillConfig
}

// CronConfig describes scheduled mode. Since and Until are the two most recent
// triggers of Expression and are zero when cron mode is disabled.
type CronConfig struct {
	Enabled    bool
	Expression string
	Location   *time.Location
	Since      time.Time
	Until      time.Time
}

// HasWindow returns true if a since/until window was resolved.
func (c CronConfig) HasWindow() bool {
	return !c.Since.IsZero() && !c.Until.IsZero()
}

// BackfillConfig describes backfill mode. Fields other than Enabled are zero when
// backfill mode is disabled or the variable is unset.
type BackfillConfig struct {
	Enabled   bool
	Since     time.Time
	Until     time.Time
	BatchSize int
}

// HasRange returns true if both bounds are set.
func (b BackfillConfig) HasRange() bool {
	return !b.Since.IsZero() && !b.Until.IsZero()
}

// Selection returns the model names to run: Models plus ModelName when set.
// It returns nil when neither is set.
func (c *Config) Selection() []string {
	if c.ModelName == "" {
		return c.Models
	}
	models := make([]string, 0, len(c.Models)+1)
	models = append(models, c.Models...)
	for _, m := range c.Models {
		if m == c.ModelName {
			return models
		}
	}
	return append(models, c.ModelName)
}

// Validate checks the invariants of a snapshot.
func (c *Config) Validate() error {
	if c.Cron.Enabled && c.Backfill.Enabled {
		return errConflictingModes()
	}
	if c.Cron.Enabled && c.Cron.Expression == "" {
		return fmt.Errorf("%w: %s is required when %s is true",
			apperrors.ErrMissingRequiredValue, EnvCronExpression, EnvCronEnabled)
	}
	if c.Backfill.BatchSize < 0 {
		return fmt.Errorf("%w: %s must be positive", apperrors.ErrValidation, EnvBackfillBatchSize)
	}
	if c.Backfill.HasRange() && !c.Backfill.Since.Before(c.Backfill.Until) {
		return fmt.Errorf("%w: %s must be before %s",
			apperrors.ErrValidation, EnvBackfillSince, EnvBackfillUntil)
	}
	return nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", c.RunID.String())
	if c.ModelName != "" {
		enc.AddString("model_name", c.ModelName)
	}
	if c.Models != nil {
		_ = enc.AddArray("models", zapcore.ArrayMarshalerFunc(stringArray(c.Models)))
	}
	if c.Tags != nil {
		_ = enc.AddArray("tags", zapcore.ArrayMarshalerFunc(stringArray(c.Tags)))
	}
	enc.AddBool("debug", c.Debug)
	enc.AddBool("cron_enabled", c.Cron.Enabled)
	if c.Cron.Enabled {
		enc.AddString("cron_expression", c.Cron.Expression)
		enc.AddString("cron_timezone", c.Cron.Location.String())
		enc.AddTime("cron_since", c.Cron.Since)
		enc.AddTime("cron_until", c.Cron.Until)
	}
	enc.AddBool("backfill_enabled", c.Backfill.Enabled)
	if c.Backfill.Enabled {
		if !c.Backfill.Since.IsZero() {
			enc.AddTime("backfill_since", c.Backfill.Since)
		}
		if !c.Backfill.Until.IsZero() {
			enc.AddTime("backfill_until", c.Backfill.Until)
		}
		if c.Backfill.BatchSize > 0 {
			enc.AddInt("backfill_batch_size", c.Backfill.BatchSize)
		}
	}
	return nil
}

func stringArray(items []string) func(zapcore.ArrayEncoder) error {
	return func(enc zapcore.ArrayEncoder) error {
		for _, item := range items {
			enc.AppendString(item)
		}
		return nil
	}
}

func errConflictingModes() error {
	return fmt.Errorf("%w: %s and %s cannot both be true",
		apperrors.ErrConflictingModes, EnvCronEnabled, EnvBackfillEnabled)
}

// Load reads the job configuration through r. The cron window is resolved
// relative to now, converted to CRON_TIMEZONE when that is set.
func Load(r *envvar.Reader, now time.Time) (*Config, error) {
	cronEnabled, err := envvar.Or(r, EnvCronEnabled, envvar.ParseBool, false)
	if err != nil {
		return nil, err
	}
	backfillEnabled, err := envvar.Or(r, EnvBackfillEnabled, envvar.ParseBool, false)
	if err != nil {
		return nil, err
	}
	if cronEnabled && backfillEnabled {
		return nil, errConflictingModes()
	}

	cfg := &Config{
		RunID:    uuid.New(),
		Cron:     CronConfig{Enabled: cronEnabled},
		Backfill: BackfillConfig{Enabled: backfillEnabled},
	}

	if cronEnabled {
		if err := loadCron(r, now, &cfg.Cron); err != nil {
			return nil, err
		}
	}
	if backfillEnabled {
		if err := loadBackfill(r, &cfg.Backfill); err != nil {
			return nil, err
		}
	}

	if cfg.ModelName, _, err = r.String(EnvModelName); err != nil {
		return nil, err
	}
	if cfg.Models, _, err = r.List(EnvModels, ","); err != nil {
		return nil, err
	}
	if cfg.Tags, _, err = r.List(EnvTags, ","); err != nil {
		return nil, err
	}
	if cfg.Debug, err = envvar.Or(r, EnvDebug, envvar.ParseBool, false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCron(r *envvar.Reader, now time.Time, c *CronConfig) error {
	expr, err := envvar.Require(r, EnvCronExpression, envvar.ParseCron)
	if err != nil {
		return err
	}
	loc, err := envvar.Or(r, EnvCronTimezone, envvar.ParseTimezone, now.Location())
	if err != nil {
		return err
	}

	since, until, err := schedule.ResolveInterval(expr, now.In(loc))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", EnvCronExpression, err)
	}

	c.Expression = expr
	c.Location = loc
	c.Since = since
	c.Until = until
	return nil
}

func loadBackfill(r *envvar.Reader, b *BackfillConfig) error {
	var err error
	if b.Since, _, err = r.ISO8601(EnvBackfillSince); err != nil {
		return err
	}
	if b.Until, _, err = r.ISO8601(EnvBackfillUntil); err != nil {
		return err
	}

	size, ok, err := r.Int(EnvBackfillBatchSize)
	if err != nil {
		return err
	}
	if ok && size <= 0 {
		return &envvar.ValidationError{
			Name:  EnvBackfillBatchSize,
			Value: fmt.Sprint(size),
			Err:   errors.New("must be greater than zero"),
		}
	}
	b.BatchSize = size
	return nil
}

// LoadFromEnv reads the configuration from the process environment and logs the
// resulting snapshot.
func LoadFromEnv(logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := Load(envvar.New(logger), time.Now())
	if err != nil {
		return nil, err
	}
	logger.Named("config").Info("configuration loaded", zap.Object("config", cfg))
	return cfg, nil
}
