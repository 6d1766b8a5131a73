package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment variables use the VOXSPLIT_ prefix with underscores, e.g.
	// VOXSPLIT_SERVER_PORT, VOXSPLIT_DATABASE_URL.
	v.SetEnvPrefix("VOXSPLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every key so viper picks up
// partial overrides from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Registered empty so AutomaticEnv picks the key up during Unmarshal.
	v.SetDefault("database.url", "")

	v.SetDefault("pipeline.worker_count", 2)
	v.SetDefault("pipeline.queue_size", 100)
	v.SetDefault("pipeline.stale_job_timeout_minutes", 30)
	v.SetDefault("pipeline.reaper_interval_minutes", 5)
	v.SetDefault("pipeline.align_timeout_minutes", 5)
	v.SetDefault("pipeline.diarize_timeout_minutes", 10)
	v.SetDefault("pipeline.silence_gap_ms", 500)
	v.SetDefault("pipeline.speaker_gap_seconds", 2.0)
	v.SetDefault("pipeline.upload_dir", "data/uploads")
	v.SetDefault("pipeline.temp_dir", "data/tmp")
	v.SetDefault("pipeline.output_dir", "data/output")
	v.SetDefault("pipeline.max_upload_size_mb", 200)

	v.SetDefault("engine.whisperx_path", "whisperx")
	v.SetDefault("engine.ffmpeg_path", "ffmpeg")
	v.SetDefault("engine.model", "base")
	v.SetDefault("engine.device", "cpu")
}
