package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.yt-sync")
		v.AddConfigPath("/etc/yt-sync")
	}

	// YTSYNC_QUEUE_THREAD_COUNT=4 overrides queue.thread_count
	v.SetEnvPrefix("YTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal
func setDefaults(v *viper.Viper, c *domain.Config) {
	for key, value := range configKeys(c) {
		v.SetDefault(key, value)
	}
}

// configKeys flattens a config into dotted viper keys
func configKeys(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host": c.Server.Host,
		"server.port": c.Server.Port,

		"storage.data_dir":      c.Storage.DataDir,
		"storage.catalog_file":  c.Storage.CatalogFile,
		"storage.download_dir":  c.Storage.DownloadDir,
		"storage.thumbnail_dir": c.Storage.ThumbnailDir,
		"storage.logs_dir":      c.Storage.LogsDir,

		"queue.thread_count":     c.Queue.ThreadCount,
		"queue.log_tail_lines":   c.Queue.LogTailLines,
		"queue.shutdown_timeout": c.Queue.ShutdownTimeout,

		"tools.ytdlp_binary":    c.Tools.YTDLPBinary,
		"tools.ffmpeg_location": c.Tools.FFmpegLocation,
		"tools.fetch_timeout":   c.Tools.FetchTimeout,

		"notification.enabled": c.Notification.Enabled,
		"notification.method":  c.Notification.Method,

		"events.nats.enabled":        c.Events.NATS.Enabled,
		"events.nats.url":            c.Events.NATS.URL,
		"events.nats.client_name":    c.Events.NATS.ClientName,
		"events.nats.stream":         c.Events.NATS.Stream,
		"events.nats.subject_prefix": c.Events.NATS.SubjectPrefix,
		"events.nats.max_reconnect":  c.Events.NATS.MaxReconnect,
		"events.nats.reconnect_wait": c.Events.NATS.ReconnectWait,
		"events.redis.enabled":       c.Events.Redis.Enabled,
		"events.redis.addr":          c.Events.Redis.Addr,
		"events.redis.password":      c.Events.Redis.Password,
		"events.redis.db":            c.Events.Redis.DB,
		"events.redis.channel":       c.Events.Redis.Channel,

		"archive.enabled":  c.Archive.Enabled,
		"archive.bucket":   c.Archive.Bucket,
		"archive.prefix":   c.Archive.Prefix,
		"archive.region":   c.Archive.Region,
		"archive.endpoint": c.Archive.Endpoint,

		"thumbnails.base_url":            c.Thumbnails.BaseURL,
		"thumbnails.requests_per_second": c.Thumbnails.RequestsPerSecond,
		"thumbnails.burst":               c.Thumbnails.Burst,
		"thumbnails.timeout":             c.Thumbnails.Timeout,

		"logging.level":       c.Logging.Level,
		"logging.format":      c.Logging.Format,
		"logging.output_path": c.Logging.OutputPath,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Storage.DataDir = expandPath(config.Storage.DataDir)
	config.Storage.CatalogFile = expandPath(config.Storage.CatalogFile)
	config.Storage.DownloadDir = expandPath(config.Storage.DownloadDir)
	config.Storage.ThumbnailDir = expandPath(config.Storage.ThumbnailDir)
	config.Storage.LogsDir = expandPath(config.Storage.LogsDir)
	config.Tools.FFmpegLocation = expandPath(config.Tools.FFmpegLocation)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Storage.DataDir == "" {
		return fmt.Errorf("storage data directory not configured")
	}

	if config.Queue.ThreadCount < 1 || config.Queue.ThreadCount > domain.MaxThreadCount {
		return fmt.Errorf("thread count must be between 1 and %d", domain.MaxThreadCount)
	}

	if config.Queue.LogTailLines < 1 {
		config.Queue.LogTailLines = 60
	}

	if config.Tools.YTDLPBinary == "" {
		return fmt.Errorf("yt-dlp binary not configured")
	}

	if config.Events.NATS.Enabled && config.Events.NATS.Stream == "" {
		return fmt.Errorf("nats stream name not configured")
	}

	if config.Archive.Enabled && config.Archive.Bucket == "" {
		return fmt.Errorf("archive bucket not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configKeys(config) {
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
