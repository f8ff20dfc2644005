package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Notification NotificationConfig `mapstructure:"notification"`
	Events       EventsConfig       `mapstructure:"events"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Thumbnails   ThumbnailConfig    `mapstructure:"thumbnails"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig contains on-disk layout configuration.
// Empty sub-paths are derived from DataDir.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	CatalogFile  string `mapstructure:"catalog_file"`
	DownloadDir  string `mapstructure:"download_dir"`
	ThumbnailDir string `mapstructure:"thumbnail_dir"`
	LogsDir      string `mapstructure:"logs_dir"`
}

// CatalogPath returns the catalog file location
func (s StorageConfig) CatalogPath() string {
	if s.CatalogFile != "" {
		return s.CatalogFile
	}
	return filepath.Join(s.DataDir, "catalog.json")
}

// MediaDir returns the default media root
func (s StorageConfig) MediaDir() string {
	if s.DownloadDir != "" {
		return s.DownloadDir
	}
	return filepath.Join(s.DataDir, "downloads")
}

// ThumbDir returns the thumbnail cache directory
func (s StorageConfig) ThumbDir() string {
	if s.ThumbnailDir != "" {
		return s.ThumbnailDir
	}
	return filepath.Join(s.DataDir, "thumb_cache")
}

// LogDir returns the logs directory
func (s StorageConfig) LogDir() string {
	if s.LogsDir != "" {
		return s.LogsDir
	}
	return filepath.Join(s.DataDir, "logs")
}

// QueueConfig contains job queue configuration
type QueueConfig struct {
	ThreadCount     int           `mapstructure:"thread_count"`
	LogTailLines    int           `mapstructure:"log_tail_lines"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ToolsConfig contains external tool locations
type ToolsConfig struct {
	YTDLPBinary    string        `mapstructure:"ytdlp_binary"`
	FFmpegLocation string        `mapstructure:"ffmpeg_location"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// EventsConfig contains job event publisher configuration
type EventsConfig struct {
	NATS  NATSConfig  `mapstructure:"nats"`
	Redis RedisConfig `mapstructure:"redis"`
}

// NATSConfig configures the JetStream publisher
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	ClientName    string        `mapstructure:"client_name"`
	Stream        string        `mapstructure:"stream"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	MaxReconnect  int           `mapstructure:"max_reconnect"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig configures the pub/sub publisher
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// ArchiveConfig configures the optional S3 copy of completed media
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // S3-compatible endpoint, path-style when set
}

// ThumbnailConfig configures the thumbnail cache
type ThumbnailConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 7777,
		},
		Storage: StorageConfig{
			DataDir: "$HOME/.yt-sync",
		},
		Queue: QueueConfig{
			ThreadCount:     DefaultThreadCount,
			LogTailLines:    60,
			ShutdownTimeout: 30 * time.Second,
		},
		Tools: ToolsConfig{
			YTDLPBinary:  "yt-dlp",
			FetchTimeout: 2 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				URL:           "nats://127.0.0.1:4222",
				ClientName:    "yt-sync",
				Stream:        "YTSYNC_JOBS",
				SubjectPrefix: "ytsync.jobs",
				MaxReconnect:  10,
				ReconnectWait: 2 * time.Second,
			},
			Redis: RedisConfig{
				Addr:    "127.0.0.1:6379",
				Channel: "ytsync:jobs",
			},
		},
		Archive: ArchiveConfig{
			Prefix: "yt-sync",
			Region: "us-east-1",
		},
		Thumbnails: ThumbnailConfig{
			BaseURL:           "https://i.ytimg.com/vi",
			RequestsPerSecond: 5,
			Burst:             10,
			Timeout:           10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
