// Package config loads project configuration from hypergen.yml, .env
// files, and HYPERGEN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/svallory/hypergen/pkg/ai"
)

// Config is the project-level configuration. CLI flags override it.
type Config struct {
	// AI selects and configures the transport used for ai-mode variable
	// resolution and AI block resolution.
	AI ai.Config `mapstructure:"ai"`
	// DefaultMode is the variable resolution mode when --ask is absent.
	DefaultMode string `mapstructure:"default_mode"`
	// AnswersPath is where assembled prompts tell the operator to put the
	// answers file.
	AnswersPath string `mapstructure:"answers_path"`
}

// Load reads configuration from dir. A missing config file is not an
// error; defaults apply. Environment variables use the HYPERGEN_ prefix
// with dots replaced by underscores (HYPERGEN_AI_MODE=command).
func Load(dir string) (*Config, error) {
	// .env is optional and only fills process env, never overrides it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("hypergen")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("HYPERGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces env values for keys viper already knows
	// about, so every nested ai key needs a default.
	v.SetDefault("ai.mode", string(ai.KindStdout))
	v.SetDefault("ai.timeout", "0s")
	v.SetDefault("ai.command.template", "")
	v.SetDefault("ai.command.payload", "")
	v.SetDefault("ai.api.endpoint", "")
	v.SetDefault("ai.api.api_key", "")
	v.SetDefault("ai.api.model", "")
	v.SetDefault("default_mode", "me")
	v.SetDefault("answers_path", ai.DefaultAnswersPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
