package config

import (
	"os"
	"strconv"
	"time"

	"github.com/lawran/lawran-downloader/internal/job"
	"github.com/lawran/lawran-downloader/internal/platform"
)

// Defaults used when the environment does not override them.
const (
	DefaultPort            = "5000"
	DefaultAppEnv          = "development"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 0 // streaming endpoints stay open indefinitely
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds everything the application reads from the environment.
type Config struct {
	Port              string
	AppEnv            string
	DownloadDir       string
	MaxConcurrentJobs int
	FFmpegPath        string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// Load builds the configuration from the environment. The download
// directory defaults to the per-user downloads folder.
func Load() (*Config, error) {
	downloadDir := os.Getenv("DOWNLOAD_DIR")
	if downloadDir == "" {
		var err error
		downloadDir, err = platform.GetHomeDownloadsDir()
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		Port:              getEnv("PORT", DefaultPort),
		AppEnv:            getEnv("APP_ENV", DefaultAppEnv),
		DownloadDir:       downloadDir,
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", job.DefaultMaxConcurrent),
		FFmpegPath:        os.Getenv("FFMPEG_PATH"),
		ReadTimeout:       getEnvDuration("READ_TIMEOUT", DefaultReadTimeout),
		WriteTimeout:      getEnvDuration("WRITE_TIMEOUT", DefaultWriteTimeout),
		IdleTimeout:       getEnvDuration("IDLE_TIMEOUT", DefaultIdleTimeout),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}, nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
