package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Application configuration
	App AppConfig `json:"app" yaml:"app"`

	// Local database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Remote document store configuration
	Remote RemoteConfig `json:"remote" yaml:"remote"`

	// Reconciliation configuration
	Sync SyncConfig `json:"sync" yaml:"sync"`

	// Attendance outbox configuration
	Outbox OutboxConfig `json:"outbox" yaml:"outbox"`

	// Classroom session configuration
	Session SessionConfig `json:"session" yaml:"session"`

	// Face recognition configuration
	Recognition RecognitionConfig `json:"recognition" yaml:"recognition"`

	// Camera configuration
	Camera CameraConfig `json:"camera" yaml:"camera"`

	// Hardware monitor configuration
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`

	// MQTT event publishing configuration
	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`

	// Janitor configuration
	Janitor JanitorConfig `json:"janitor" yaml:"janitor"`

	// Websocket event stream configuration
	Websocket WebsocketConfig `json:"websocket" yaml:"websocket"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         string        `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Environment string `json:"environment" yaml:"environment"`
	Debug       bool   `json:"debug" yaml:"debug"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	PhotosDir   string `json:"photos_dir" yaml:"photos_dir"`
}

// DatabaseConfig holds the local SQLite settings
type DatabaseConfig struct {
	Path            string        `json:"path" yaml:"path"`
	BusyTimeout     time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RemoteConfig holds the remote document store settings. An empty
// credentials file means the kiosk runs without a remote store.
type RemoteConfig struct {
	CredentialsFile string        `json:"credentials_file" yaml:"credentials_file"`
	ProjectID       string        `json:"project_id" yaml:"project_id"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
}

// SyncConfig holds reconciliation settings
type SyncConfig struct {
	Interval         time.Duration `json:"interval" yaml:"interval"`                     // partial sync interval
	FullSyncSchedule string        `json:"full_sync_schedule" yaml:"full_sync_schedule"` // cron expression, empty disables
	PhotoTimeout     time.Duration `json:"photo_timeout" yaml:"photo_timeout"`
	BackupEnabled    bool          `json:"backup_enabled" yaml:"backup_enabled"`
}

// OutboxConfig holds outbox drainer settings
type OutboxConfig struct {
	Interval    time.Duration `json:"interval" yaml:"interval"`
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	BatchSize   int           `json:"batch_size" yaml:"batch_size"`
}

// SessionConfig holds classroom session settings
type SessionConfig struct {
	LateAfter    time.Duration `json:"late_after" yaml:"late_after"`         // marks at or after this are late
	ReauthMaxAge time.Duration `json:"reauth_max_age" yaml:"reauth_max_age"` // teacher match must be newer than this to stop
}

// RecognitionConfig holds pipeline settings
type RecognitionConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	ModelURL        string        `json:"model_url" yaml:"model_url"` // embedding sidecar, empty means unavailable
	ModelTimeout    time.Duration `json:"model_timeout" yaml:"model_timeout"`
	Threshold       float64       `json:"threshold" yaml:"threshold"`
	InferFPS        float64       `json:"infer_fps" yaml:"infer_fps"`
	InferWidth      int           `json:"infer_width" yaml:"infer_width"`
	InferHeight     int           `json:"infer_height" yaml:"infer_height"`
	UnrecognQuiet   time.Duration `json:"unrecognized_quiet" yaml:"unrecognized_quiet"`
	KioskRoomNumber string        `json:"kiosk_room_number" yaml:"kiosk_room_number"`
}

// CameraConfig holds frame source settings
type CameraConfig struct {
	Index        int           `json:"index" yaml:"index"` // -1 means unset
	Device       string        `json:"device" yaml:"device"`
	ProbeDevices []string      `json:"probe_devices" yaml:"probe_devices"`
	OpenTimeout  time.Duration `json:"open_timeout" yaml:"open_timeout"`
	CaptureFPS   float64       `json:"capture_fps" yaml:"capture_fps"`
	Width        int           `json:"width" yaml:"width"`
	Height       int           `json:"height" yaml:"height"`
	FFmpegPath   string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
}

// MonitorConfig holds hardware monitor settings
type MonitorConfig struct {
	Interval      time.Duration `json:"interval" yaml:"interval"`
	HotThresholdC float64       `json:"hot_threshold_c" yaml:"hot_threshold_c"`
	ProbeTimeout  time.Duration `json:"probe_timeout" yaml:"probe_timeout"`
	ProbeURL      string        `json:"probe_url" yaml:"probe_url"`
	ProbeAddr     string        `json:"probe_addr" yaml:"probe_addr"`
}

// MQTTConfig holds the optional event publisher settings
type MQTTConfig struct {
	Broker      string `json:"broker" yaml:"broker"` // host:port, empty disables
	ClientID    string `json:"client_id" yaml:"client_id"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `json:"qos" yaml:"qos"`
}

// JanitorConfig holds janitor intervals
type JanitorConfig struct {
	ShortCleanInterval time.Duration `json:"short_clean_interval" yaml:"short_clean_interval"`
	FullCleanInterval  time.Duration `json:"full_clean_interval" yaml:"full_clean_interval"`
	Retention          time.Duration `json:"retention" yaml:"retention"`
}

// WebsocketConfig holds recognition event stream settings
type WebsocketConfig struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"` // how often snapshots are checked for changes
	PingInterval time.Duration `json:"ping_interval" yaml:"ping_interval"`
	PongWait     time.Duration `json:"pong_wait" yaml:"pong_wait"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Get returns the singleton configuration instance
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		instance = loadConfig()
	})
	return instance
}

// defaults returns the built-in configuration
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         "8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second, // full sync runs inside the request
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		App: AppConfig{
			Name:        "attendance-kiosk",
			Version:     "1.0.0",
			Environment: "development",
			DataDir:     "data",
			PhotosDir:   "data/photos",
		},
		Database: DatabaseConfig{
			Path:            "data/kiosk.db",
			BusyTimeout:     5 * time.Second,
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Remote: RemoteConfig{Timeout: 15 * time.Second},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			PhotoTimeout:  15 * time.Second,
			BackupEnabled: true,
		},
		Outbox: OutboxConfig{
			Interval:    10 * time.Second,
			MaxAttempts: 5,
			BatchSize:   400,
		},
		Session: SessionConfig{
			LateAfter:    30 * time.Minute,
			ReauthMaxAge: 60 * time.Second,
		},
		Recognition: RecognitionConfig{
			Enabled:       true,
			ModelTimeout:  5 * time.Second,
			Threshold:     0.5,
			InferFPS:      7.5,
			InferWidth:    320,
			InferHeight:   240,
			UnrecognQuiet: 5 * time.Second,
		},
		Camera: CameraConfig{
			Index:        -1,
			ProbeDevices: []string{"/dev/video1", "/dev/video0"},
			OpenTimeout:  2 * time.Second,
			CaptureFPS:   15,
			Width:        640,
			Height:       480,
			FFmpegPath:   "ffmpeg",
		},
		Monitor: MonitorConfig{
			Interval:      15 * time.Second,
			HotThresholdC: 75,
			ProbeTimeout:  2 * time.Second,
			ProbeURL:      "http://clients3.google.com/generate_204",
			ProbeAddr:     "8.8.8.8:53",
		},
		MQTT: MQTTConfig{
			ClientID:    "attendance-kiosk",
			TopicPrefix: "kiosk",
			QoS:         1,
		},
		Janitor: JanitorConfig{
			ShortCleanInterval: 1 * time.Minute,
			FullCleanInterval:  24 * time.Hour,
			Retention:          30 * 24 * time.Hour,
		},
		Websocket: WebsocketConfig{
			PollInterval: 250 * time.Millisecond,
			PingInterval: 20 * time.Second,
			PongWait:     60 * time.Second,
		},
	}
}

// loadConfig builds the configuration: defaults, then the optional YAML file
// named by CONFIG_FILE, then environment variables.
func loadConfig() *Config {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			panic(fmt.Sprintf("Invalid configuration file: %v", err))
		}
	}

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.Environment = getEnv("ENV", cfg.App.Environment)
	cfg.App.Debug = getEnvAsBool("DEBUG", cfg.App.Debug)
	cfg.App.DataDir = getEnv("DATA_DIR", cfg.App.DataDir)
	cfg.App.PhotosDir = getEnv("PHOTOS_DIR", cfg.App.PhotosDir)

	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Database.BusyTimeout = getEnvAsDuration("DB_BUSY_TIMEOUT", cfg.Database.BusyTimeout)
	cfg.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Remote.CredentialsFile = getEnv("FIRESTORE_CREDENTIALS", getEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Remote.CredentialsFile))
	cfg.Remote.ProjectID = getEnv("FIRESTORE_PROJECT_ID", cfg.Remote.ProjectID)
	cfg.Remote.Timeout = getEnvAsDuration("FIRESTORE_TIMEOUT", cfg.Remote.Timeout)

	cfg.Sync.Interval = getEnvAsDuration("SYNC_INTERVAL", cfg.Sync.Interval)
	cfg.Sync.FullSyncSchedule = getEnv("FULL_SYNC_SCHEDULE", cfg.Sync.FullSyncSchedule)
	cfg.Sync.PhotoTimeout = getEnvAsDuration("SYNC_PHOTO_TIMEOUT", cfg.Sync.PhotoTimeout)
	cfg.Sync.BackupEnabled = getEnvAsBool("SYNC_BACKUP", cfg.Sync.BackupEnabled)

	cfg.Outbox.Interval = getEnvAsDuration("OUTBOX_INTERVAL", cfg.Outbox.Interval)
	cfg.Outbox.MaxAttempts = getEnvAsInt("OUTBOX_MAX_ATTEMPTS", cfg.Outbox.MaxAttempts)
	cfg.Outbox.BatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", cfg.Outbox.BatchSize)

	cfg.Session.LateAfter = getEnvAsDuration("SESSION_LATE_AFTER", cfg.Session.LateAfter)
	cfg.Session.ReauthMaxAge = getEnvAsDuration("SESSION_REAUTH_MAX_AGE", cfg.Session.ReauthMaxAge)

	cfg.Recognition.Enabled = getEnvAsBool("RECOGNITION_ENABLED", cfg.Recognition.Enabled)
	cfg.Recognition.ModelURL = getEnv("EMBEDDING_URL", cfg.Recognition.ModelURL)
	cfg.Recognition.ModelTimeout = getEnvAsDuration("EMBEDDING_TIMEOUT", cfg.Recognition.ModelTimeout)
	cfg.Recognition.Threshold = getEnvAsFloat("MATCH_THRESHOLD", cfg.Recognition.Threshold)
	cfg.Recognition.InferFPS = getEnvAsFloat("INFER_FPS", cfg.Recognition.InferFPS)
	cfg.Recognition.UnrecognQuiet = getEnvAsDuration("UNRECOG_QUIET", cfg.Recognition.UnrecognQuiet)
	cfg.Recognition.KioskRoomNumber = getEnv("KIOSK_ROOM_NUMBER", cfg.Recognition.KioskRoomNumber)

	cfg.Camera.Index = getEnvAsInt("CAM_INDEX", cfg.Camera.Index)
	cfg.Camera.Device = getEnv("CAM_DEVICE", cfg.Camera.Device)
	cfg.Camera.OpenTimeout = getEnvAsDuration("CAM_OPEN_TIMEOUT", cfg.Camera.OpenTimeout)
	cfg.Camera.CaptureFPS = getEnvAsFloat("CAP_FPS", cfg.Camera.CaptureFPS)
	cfg.Camera.Width = getEnvAsInt("CAM_WIDTH", cfg.Camera.Width)
	cfg.Camera.Height = getEnvAsInt("CAM_HEIGHT", cfg.Camera.Height)
	cfg.Camera.FFmpegPath = getEnv("FFMPEG_PATH", cfg.Camera.FFmpegPath)

	cfg.Monitor.Interval = getEnvAsDuration("MONITOR_INTERVAL", cfg.Monitor.Interval)
	cfg.Monitor.HotThresholdC = getEnvAsFloat("HOT_C_THRESHOLD", cfg.Monitor.HotThresholdC)
	cfg.Monitor.ProbeTimeout = getEnvAsDuration("MONITOR_PROBE_TIMEOUT", cfg.Monitor.ProbeTimeout)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.Janitor.ShortCleanInterval = getEnvAsDuration("JANITOR_SHORT_INTERVAL", cfg.Janitor.ShortCleanInterval)
	cfg.Janitor.FullCleanInterval = getEnvAsDuration("JANITOR_FULL_INTERVAL", cfg.Janitor.FullCleanInterval)
	cfg.Janitor.Retention = getEnvAsDuration("JANITOR_RETENTION", cfg.Janitor.Retention)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	return cfg
}

// overlayFile decodes a YAML file on top of the current values. Keys missing
// from the file keep their current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// validate validates the configuration
func (c *Config) validate() error {
	// Validate server port
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production"}
	if !contains(validEnvs, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be one of: %s)",
			c.App.Environment, strings.Join(validEnvs, ", "))
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("invalid outbox max attempts: %d", c.Outbox.MaxAttempts)
	}
	if c.Outbox.BatchSize < 1 || c.Outbox.BatchSize > 400 {
		return fmt.Errorf("invalid outbox batch size: %d (must be between 1 and 400)", c.Outbox.BatchSize)
	}
	if c.Recognition.Threshold <= -1 || c.Recognition.Threshold >= 1 {
		return fmt.Errorf("invalid match threshold: %v", c.Recognition.Threshold)
	}
	if c.Recognition.InferFPS <= 0 || c.Camera.CaptureFPS <= 0 {
		return fmt.Errorf("frame rates must be positive")
	}
	if c.Sync.Interval <= 0 || c.Outbox.Interval <= 0 || c.Monitor.Interval <= 0 {
		return fmt.Errorf("background intervals must be positive")
	}

	return nil
}

// IsDevelopment returns true if the app is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the app is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetServerAddress returns the server address in the format "host:port"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// RemoteConfigured reports whether remote credentials were supplied
func (c *Config) RemoteConfigured() bool {
	return c.Remote.CredentialsFile != ""
}

// Reload reloads the configuration (useful for testing or after loading .env files)
func Reload() {
	mu.Lock()
	defer mu.Unlock()
	once = sync.Once{}
	instance = nil
}

// ForceReload forces an immediate reload of the configuration
func ForceReload() {
	mu.Lock()
	defer mu.Unlock()
	instance = loadConfig()
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsBool gets an environment variable as boolean with a fallback value
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvAsInt gets an environment variable as int with a fallback value
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvAsFloat gets an environment variable as float64 with a fallback value
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// getEnvAsDuration gets an environment variable as duration with a fallback value
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
