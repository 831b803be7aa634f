//nolint:lll
package config

// Config represents the complete configuration for the inpaint application.
// It includes settings for all commands (image, batch, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Inpainting pipeline configuration
	Inpaint InpaintConfig `mapstructure:"inpaint" yaml:"inpaint" json:"inpaint"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// InpaintConfig contains region planning, compositing and engine settings.
type InpaintConfig struct {
	Engine           string  `mapstructure:"engine" yaml:"engine" json:"engine"`
	ModelPath        string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	NumThreads       int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	InputSize        int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ExpandPercentage float64 `mapstructure:"expand_percentage" yaml:"expand_percentage" json:"expand_percentage"`
	MaxExpansionSize int     `mapstructure:"max_expansion_size" yaml:"max_expansion_size" json:"max_expansion_size"`
	FeatherSize      int     `mapstructure:"feather_size" yaml:"feather_size" json:"feather_size"`
	Debug            bool    `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// OutputConfig contains output encoding settings.
type OutputConfig struct {
	Format    string `mapstructure:"format" yaml:"format" json:"format"`
	Quality   int    `mapstructure:"quality" yaml:"quality" json:"quality"`
	DebugDir  string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
	Visualize string `mapstructure:"visualize" yaml:"visualize" json:"visualize"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits for the server.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int  `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int  `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
