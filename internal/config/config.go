// Package config provides the configuration structure for the studio server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables honoured for compatibility with the documented
// launcher interface.
const (
	EnvServerHost = "GRADIO_SERVER_NAME"
	EnvServerPort = "GRADIO_SERVER_PORT"
	EnvShare      = "GRADIO_SHARE"
)

// Default values matching the original launcher.
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 7860
	defaultEngineHost     = "127.0.0.1"
	defaultEnginePort     = 8000
	defaultEngineTimeout  = 300
	defaultDevice         = "cuda"
	defaultWorkers        = 2
	defaultMaxPending     = 50
	defaultMaxTextLength  = 500
	defaultMaxUploadBytes = 32 << 20
	defaultJobsSubject    = "studio.jobs"
	defaultEventsSubject  = "studio.jobs.events"
	defaultHistoryDir     = "audio_history"
	defaultUploadsDir     = "uploads"
	defaultLogsDir        = "logs"
	defaultDatabaseFile   = "studio.db"
	defaultNATSStoreDir   = "data/nats"
)

const dirPermissions = 0o750

// Devices the engine request may ask for.
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Static errors.
var (
	ErrInvalidPort       = errors.New("server port must be between 1 and 65535")
	ErrInvalidEnginePort = errors.New("engine port must be between 1 and 65535")
	ErrInvalidTimeout    = errors.New("engine timeout must be positive")
	ErrInvalidDevice     = errors.New("device must be cuda or cpu")
	ErrInvalidWorkers    = errors.New("queue workers must be positive")
	ErrInvalidMaxPending = errors.New("queue max pending must be positive")
	ErrInvalidTextLimit  = errors.New("max text length must be positive")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// Share enables public URL exposure via the configured tunnel command.
	Share         bool   `toml:"share"`
	TunnelCommand string `toml:"tunnel_command"`
}

// EngineConfig holds the connection settings for the external inference
// engine.
type EngineConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Device         string `toml:"device"`
}

// ServiceURL returns the base URL of the inference engine.
func (e EngineConfig) ServiceURL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// QueueConfig holds the job queue settings. With Embedded set, the server
// runs its own NATS instance; otherwise it connects to URL.
type QueueConfig struct {
	Embedded      bool   `toml:"embedded"`
	URL           string `toml:"url"`
	Port          int    `toml:"port"`
	StoreDir      string `toml:"store_dir"`
	JobsSubject   string `toml:"jobs_subject"`
	EventsSubject string `toml:"events_subject"`
	Workers       int    `toml:"workers"`
	MaxPending    int    `toml:"max_pending"`
}

// PathsConfig holds the on-disk layout.
type PathsConfig struct {
	HistoryDir   string `toml:"history_dir"`
	UploadsDir   string `toml:"uploads_dir"`
	LogsDir      string `toml:"logs_dir"`
	DatabaseFile string `toml:"database_file"`
}

// LimitsConfig bounds user input.
type LimitsConfig struct {
	MaxTextLength  int   `toml:"max_text_length"`
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
	Queue  QueueConfig  `toml:"queue"`
	Paths  PathsConfig  `toml:"paths"`
	Limits LimitsConfig `toml:"limits"`
}

// Default returns the configuration used when no file or overrides are
// present. The values mirror the documented launcher defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          defaultHost,
			Port:          defaultPort,
			Share:         true,
			TunnelCommand: "",
		},
		Engine: EngineConfig{
			Host:           defaultEngineHost,
			Port:           defaultEnginePort,
			TimeoutSeconds: defaultEngineTimeout,
			Device:         defaultDevice,
		},
		Queue: QueueConfig{
			Embedded:      true,
			URL:           "",
			Port:          -1,
			StoreDir:      defaultNATSStoreDir,
			JobsSubject:   defaultJobsSubject,
			EventsSubject: defaultEventsSubject,
			Workers:       defaultWorkers,
			MaxPending:    defaultMaxPending,
		},
		Paths: PathsConfig{
			HistoryDir:   defaultHistoryDir,
			UploadsDir:   defaultUploadsDir,
			LogsDir:      defaultLogsDir,
			DatabaseFile: defaultDatabaseFile,
		},
		Limits: LimitsConfig{
			MaxTextLength:  defaultMaxTextLength,
			MaxUploadBytes: defaultMaxUploadBytes,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		err = toml.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies the launcher-compatible environment overrides.
func (c *Config) applyEnv() {
	if host := os.Getenv(EnvServerHost); host != "" {
		c.Server.Host = host
	}

	if portStr := os.Getenv(EnvServerPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err == nil {
			c.Server.Port = port
		}
	}

	if shareStr := os.Getenv(EnvShare); shareStr != "" {
		share, err := strconv.ParseBool(shareStr)
		if err == nil {
			c.Server.Share = share
		}
	}
}

// Validate checks that the configuration holds safe, usable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Engine.Port < 1 || c.Engine.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidEnginePort, c.Engine.Port)
	}

	if c.Engine.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeout, c.Engine.TimeoutSeconds)
	}

	if c.Engine.Device != DeviceCUDA && c.Engine.Device != DeviceCPU {
		return fmt.Errorf("%w: got %q", ErrInvalidDevice, c.Engine.Device)
	}

	if c.Queue.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Queue.Workers)
	}

	if c.Queue.MaxPending <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxPending, c.Queue.MaxPending)
	}

	if c.Limits.MaxTextLength <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTextLimit, c.Limits.MaxTextLength)
	}

	return nil
}

// EnsureDirectories creates the data directories the server writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.HistoryDir,
		c.Paths.UploadsDir,
		c.Paths.LogsDir,
	}

	if c.Queue.Embedded && c.Queue.StoreDir != "" {
		dirs = append(dirs, c.Queue.StoreDir)
	}

	for _, dir := range dirs {
		err := os.MkdirAll(dir, dirPermissions)
		if err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
