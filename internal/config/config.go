package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the analysis/rooms server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Directory DirectoryConfig
	Video     VideoConfig
	Content   ContentConfig
	Pipeline  PipelineConfig
	Rooms     RoomsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// DirectoryConfig points at the class/course directory service.
type DirectoryConfig struct {
	BaseURL string
	Timeout time.Duration
}

// VideoConfig selects and configures the video-search provider.
type VideoConfig struct {
	Provider string
	YouTube  YouTubeConfig
}

type YouTubeConfig struct {
	APIKey  string
	BaseURL string
	Region  string
}

// ContentConfig selects and configures the content-analysis provider.
type ContentConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	Ollama   OllamaConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// PipelineConfig bounds each analysis stage. A stuck stage times out into a
// failed job, which frees the class slot for a new trigger. ReapInterval
// paces the background sweep that fails jobs orphaned by a worker crash.
type PipelineConfig struct {
	SearchTimeout   time.Duration
	AnalyzeTimeout  time.Duration
	GenerateTimeout time.Duration
	ReapInterval    time.Duration
}

// RoomsConfig tunes the broadcast layer.
type RoomsConfig struct {
	BacklogLimit  int
	SendBuffer    int
	WSReadLimit   int64
	RatePerMinute int
}

var validVideoProviders = map[string]bool{
	"youtube": true,
	"mock":    true,
}

var validContentProviders = map[string]bool{
	"openai": true,
	"ollama": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PAATHSALA_PORT", 8080),
			Env:  envString("PAATHSALA_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Directory: DirectoryConfig{
			BaseURL: os.Getenv("DIRECTORY_BASE_URL"),
			Timeout: envDuration("DIRECTORY_TIMEOUT", 10*time.Second),
		},
		Video: VideoConfig{
			Provider: envString("VIDEO_PROVIDER", "youtube"),
			YouTube: YouTubeConfig{
				APIKey:  os.Getenv("YOUTUBE_API_KEY"),
				BaseURL: envString("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3"),
				Region:  envString("YOUTUBE_REGION", "US"),
			},
		},
		Content: ContentConfig{
			Provider: os.Getenv("CONTENT_PROVIDER"),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
		},
		Pipeline: PipelineConfig{
			SearchTimeout:   envDurationSecs("PIPELINE_SEARCH_TIMEOUT_SECS", 30*time.Second),
			AnalyzeTimeout:  envDurationSecs("PIPELINE_ANALYZE_TIMEOUT_SECS", 120*time.Second),
			GenerateTimeout: envDurationSecs("PIPELINE_GENERATE_TIMEOUT_SECS", 120*time.Second),
			ReapInterval:    envDurationSecs("PIPELINE_REAP_INTERVAL_SECS", 60*time.Second),
		},
		Rooms: RoomsConfig{
			BacklogLimit:  envInt("ROOM_BACKLOG_LIMIT", 50),
			SendBuffer:    envInt("ROOM_SEND_BUFFER", 256),
			WSReadLimit:   int64(envInt("WS_READ_LIMIT_BYTES", 65536)),
			RatePerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Directory.BaseURL == "" {
		return fmt.Errorf("DIRECTORY_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Directory.BaseURL, "http://") && !strings.HasPrefix(c.Directory.BaseURL, "https://") {
		return fmt.Errorf("DIRECTORY_BASE_URL must start with http:// or https://, got %q", c.Directory.BaseURL)
	}

	if !validVideoProviders[c.Video.Provider] {
		return fmt.Errorf("VIDEO_PROVIDER must be one of youtube, mock; got %q", c.Video.Provider)
	}
	if c.Video.Provider == "youtube" && c.Video.YouTube.APIKey == "" {
		return fmt.Errorf("YOUTUBE_API_KEY is required when VIDEO_PROVIDER is youtube")
	}

	if c.Content.Provider == "" {
		return fmt.Errorf("CONTENT_PROVIDER is required")
	}
	if !validContentProviders[c.Content.Provider] {
		return fmt.Errorf("CONTENT_PROVIDER must be one of openai, ollama, mock; got %q", c.Content.Provider)
	}
	if c.Content.Provider == "openai" && c.Content.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when CONTENT_PROVIDER is openai")
	}

	if c.Rooms.BacklogLimit <= 0 {
		return fmt.Errorf("ROOM_BACKLOG_LIMIT must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
