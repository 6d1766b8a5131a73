package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// PipelineConfig controls the job pipeline: worker pool sizing, reaper
// cadence, sub-phase budgets, and the filesystem layout for audio artifacts.
type PipelineConfig struct {
	WorkerCount            int     `mapstructure:"worker_count"              validate:"required,gt=0,lte=64"`
	QueueSize              int     `mapstructure:"queue_size"                validate:"required,gt=0"`
	StaleJobTimeoutMinutes int     `mapstructure:"stale_job_timeout_minutes" validate:"required,gt=0"`
	ReaperIntervalMinutes  int     `mapstructure:"reaper_interval_minutes"   validate:"required,gt=0"`
	AlignTimeoutMinutes    int     `mapstructure:"align_timeout_minutes"     validate:"required,gt=0"`
	DiarizeTimeoutMinutes  int     `mapstructure:"diarize_timeout_minutes"   validate:"required,gt=0"`
	SilenceGapMs           int     `mapstructure:"silence_gap_ms"            validate:"gte=0"`
	SpeakerGapSeconds      float64 `mapstructure:"speaker_gap_seconds"      validate:"gt=0"`
	UploadDir              string  `mapstructure:"upload_dir"                validate:"required"`
	TempDir                string  `mapstructure:"temp_dir"                  validate:"required"`
	OutputDir              string  `mapstructure:"output_dir"                validate:"required"`
	MaxUploadSizeMB        int     `mapstructure:"max_upload_size_mb"        validate:"required,gt=0"`
}

// EngineConfig contains the transcription and diarization engine settings.
type EngineConfig struct {
	WhisperXPath string `mapstructure:"whisperx_path" validate:"required"`
	FFmpegPath   string `mapstructure:"ffmpeg_path"   validate:"required"`
	Model        string `mapstructure:"model"         validate:"required"`
	Device       string `mapstructure:"device"        validate:"required,oneof=cpu cuda"`
}
