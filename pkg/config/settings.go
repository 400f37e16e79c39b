package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Settings holds the runner's own settings. Unlike Config these have defaults
// and are read with cleanenv.
type Settings struct {
	LogLevel  zapcore.Level `env:"LOG_LEVEL" env-default:"info" env-description:"minimum log level (debug, info, warn, error)"`
	LogFormat string        `env:"LOG_FORMAT" env-default:"json" env-description:"log encoding, json or console"`

	// EnvFile is loaded before the other variables are read. Variables already
	// present in the environment are not overridden.
	EnvFile string `env:"ENV_FILE" env-default:".env" env-description:"dotenv file loaded at startup when present"`

	UnitsDir string `env:"UNITS_DIR" env-default:"models" env-description:"directory scanned for units"`
}

// LoadSettings loads the dotenv file named by ENV_FILE when it exists and then
// reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	s := &Settings{}
	if err := cleanenv.ReadEnv(s); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return s, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SettingsUsage describes the runner settings for help output.
func SettingsUsage() (string, error) {
	header := "Runner settings:"
	return cleanenv.GetDescription(&Settings{}, &header)
}
