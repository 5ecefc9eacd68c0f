package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port" yaml:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	Debug        bool          `json:"debug" yaml:"debug"`

	// Application paths
	LogDir  string `json:"log_dir" yaml:"log_dir"`
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	// Middleware settings
	Middleware MiddlewareConfig `json:"middleware" yaml:"middleware"`

	// CORS Configuration
	CORS CORSConfig `json:"cors" yaml:"cors"`

	// Rate Limiting
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Database settings
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Subtitle extraction settings
	Subtitle SubtitleConfig `json:"subtitle" yaml:"subtitle"`

	// Gemini analysis settings
	Gemini GeminiConfig `json:"gemini" yaml:"gemini"`

	// S3-compatible archive settings
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Application version
	Version string `json:"version" yaml:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type MiddlewareConfig struct {
	EnableRecover   bool `json:"enable_recover" yaml:"enable_recover"`
	EnableRequestID bool `json:"enable_request_id" yaml:"enable_request_id"`
	EnableLogger    bool `json:"enable_logger" yaml:"enable_logger"`
	EnableTimeout   bool `json:"enable_timeout" yaml:"enable_timeout"`
	EnableCORS      bool `json:"enable_cors" yaml:"enable_cors"`
	EnableRateLimit bool `json:"enable_rate_limit" yaml:"enable_rate_limit"`
}

type DatabaseConfig struct {
	Path               string        `json:"path" yaml:"path"`
	MaxConnections     int           `json:"max_connections" yaml:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections" yaml:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

type SubtitleConfig struct {
	// YTDLPPath is the yt-dlp executable. Resolved from PATH when bare.
	YTDLPPath string `json:"ytdlp_path" yaml:"ytdlp_path"`
	// DefaultLanguage is used when a request does not name one.
	DefaultLanguage string        `json:"default_language" yaml:"default_language"`
	ProcessTimeout  time.Duration `json:"process_timeout" yaml:"process_timeout"`
	FetchTimeout    time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
	MaxDuration     time.Duration `json:"max_duration" yaml:"max_duration"`
}

type GeminiConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	APIKeys []string `json:"-" yaml:"api_keys"`
	Model   string   `json:"model" yaml:"model"`
	// ChunkSize is the character budget per summarization call.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
}

type ArchiveConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	AccessKey string `json:"-" yaml:"access_key"`
	SecretKey string `json:"-" yaml:"secret_key"`
	Region    string `json:"region" yaml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `json:"max_age" yaml:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int  `json:"burst_size" yaml:"burst_size"`
}

// Default configurations
func defaultDevConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableTimeout:   false, // Disabled for easier debugging
		EnableCORS:      true,
		EnableRateLimit: false, // Disabled for testing
	}
}

func defaultProdConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableTimeout:   true,
		EnableCORS:      true,
		EnableRateLimit: true,
	}
}

// Load reads configuration from environment variables. When CONFIG_FILE is
// set, the named YAML file is applied on top of the environment values.
func Load() (*Config, error) {
	cfg := &Config{
		// Server settings
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		// Application paths
		LogDir:  getEnv("LOG_DIR", "/var/log/yt-subtitle-analyzer"),
		TempDir: getEnv("TEMP_DIR", "/tmp/yt-subtitle-analyzer"),

		// Application version
		Version: getEnv("VERSION", "1.0.0"),

		// Request and shutdown timeouts
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 5*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		// CORS Configuration
		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders:   getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type"}),
			ExposedHeaders:   getEnvAsStringSlice("CORS_EXPOSED_HEADERS", []string{}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		// Rate Limiting
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},

		// Database
		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", "/var/lib/yt-subtitle-analyzer/data.db"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		// Subtitle extraction
		Subtitle: SubtitleConfig{
			YTDLPPath:       getEnv("YTDLP_PATH", "yt-dlp"),
			DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "ko"),
			ProcessTimeout:  getEnvAsDuration("PROCESS_TIMEOUT", 5*time.Minute),
			FetchTimeout:    getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxDuration:     getEnvAsDuration("MAX_VIDEO_DURATION", 4*time.Hour),
		},

		// Gemini analysis
		Gemini: GeminiConfig{
			Enabled:   getEnv("GEMINI_API_KEYS", "") != "",
			APIKeys:   getEnvAsStringSlice("GEMINI_API_KEYS", nil),
			Model:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			ChunkSize: getEnvAsInt("GEMINI_CHUNK_SIZE", 24000),
		},

		// Archive
		Archive: ArchiveConfig{
			Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Region:    getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
		},

		// Middleware
		Middleware: defaultDevConfig(),
	}

	if os.Getenv("ENV") == "production" {
		cfg.Middleware = defaultProdConfig()
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.TempDir, "temp directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Subtitle.ProcessTimeout <= 0 {
		return fmt.Errorf("process timeout must be positive")
	}
	return nil
}

func validateServices(c *Config) error {
	if c.Subtitle.YTDLPPath == "" {
		return fmt.Errorf("yt-dlp path is required")
	}
	if c.Subtitle.DefaultLanguage == "" {
		return fmt.Errorf("default language is required")
	}
	if c.Subtitle.MaxDuration <= 0 {
		return fmt.Errorf("max video duration must be positive")
	}
	if c.Gemini.Enabled && len(c.Gemini.APIKeys) == 0 {
		return fmt.Errorf("gemini enabled but no API keys configured")
	}
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive enabled but no bucket configured")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return fmt.Errorf("archive enabled but credentials missing")
		}
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			return strings.Split(value, ",")
		}
	}
	return defaultValue
}
