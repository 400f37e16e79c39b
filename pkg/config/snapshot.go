package config

import "time"

type yamlSnapshot struct {
	RunID     string       `yaml:"run_id"`
	ModelName string       `yaml:"model_name,omitempty"`
	Models    []string     `yaml:"models,omitempty"`
	Tags      []string     `yaml:"tags,omitempty"`
	Debug     bool         `yaml:"debug"`
	Cron      yamlCron     `yaml:"cron"`
	Backfill  yamlBackfill `yaml:"backfill"`
}

type yamlCron struct {
	Enabled    bool   `yaml:"enabled"`
	Expression string `yaml:"expression,omitempty"`
	Timezone   string `yaml:"timezone,omitempty"`
	Since      string `yaml:"since,omitempty"`
	Until      string `yaml:"until,omitempty"`
}

type yamlBackfill struct {
	Enabled   bool   `yaml:"enabled"`
	Since     string `yaml:"since,omitempty"`
	Until     string `yaml:"until,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

// MarshalYAML renders the snapshot with RFC 3339 timestamps. Unset values are
// omitted.
func (c *Config) MarshalYAML() (any, error) {
	s := yamlSnapshot{
		RunID:     c.RunID.String(),
		ModelName: c.ModelName,
		Models:    c.Models,
		Tags:      c.Tags,
		Debug:     c.Debug,
		Cron: yamlCron{
			Enabled:    c.Cron.Enabled,
			Expression: c.Cron.Expression,
			Since:      formatTime(c.Cron.Since),
			Until:      formatTime(c.Cron.Until),
		},
		Backfill: yamlBackfill{
			Enabled:   c.Backfill.Enabled,
			Since:     formatTime(c.Backfill.Since),
			Until:     formatTime(c.Backfill.Until),
			BatchSize: c.Backfill.BatchSize,
		},
	}
	if c.Cron.Location != nil {
		s.Cron.Timezone = c.Cron.Location.String()
	}
	return s, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
