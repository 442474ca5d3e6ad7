package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HomyTech Sync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Remote    RemoteConfig    `yaml:"remote"`
	Session   SessionConfig   `yaml:"session"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Journal   JournalConfig   `yaml:"journal"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RemoteConfig describes the HomyTech backend the client synchronises with.
type RemoteConfig struct {
	// BaseURL is the REST root, e.g. "http://homytech.local:8000".
	BaseURL string `yaml:"base_url"`

	// WSURL is the push-channel root. When empty it is derived from BaseURL
	// by swapping http for ws (https for wss).
	WSURL string `yaml:"ws_url"`

	// Timeout bounds snapshot, log and usage reads (seconds).
	// Device commands use the transport default only.
	Timeout int `yaml:"timeout"`

	UserAgent string `yaml:"user_agent"`
}

// SessionConfig identifies the user the client acts as.
type SessionConfig struct {
	// User is the display name sent with every device command.
	User string `yaml:"user"`

	// Token is the bearer token for authenticated endpoints.
	Token string `yaml:"token"`

	// Email and Password are used to obtain a token via /api/login when
	// Token is empty.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// ChannelsConfig contains push-channel settings.
type ChannelsConfig struct {
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	MaxMessageSize   int             `yaml:"max_message_size"`
	HandshakeTimeout int             `yaml:"handshake_timeout"`

	// ReadTimeout closes a channel that has been silent (no message and no
	// ping) for this many seconds. 0 waits forever.
	ReadTimeout int `yaml:"read_timeout"`
}

// ReconnectConfig controls the backoff between channel reconnection attempts.
type ReconnectConfig struct {
	InitialDelayMS int `yaml:"initial_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
}

// SnapshotConfig controls the startup snapshot load.
type SnapshotConfig struct {
	// RetryAttempts is how many extra attempts follow a failed load. 0 disables retry.
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the pause between attempts (seconds).
	RetryDelay int `yaml:"retry_delay"`
}

// JournalConfig controls the in-memory session journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Name identifies the shared in-memory database. Nothing is written to disk.
	Name string `yaml:"name"`

	// Retention is the number of entries kept per category.
	Retention int `yaml:"retention"`
}

// MQTTConfig contains settings for the optional local state mirror.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`

	// Commands enables toggle requests on {prefix}/command/+.
	Commands bool `yaml:"commands"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local presentation server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains presentation hub settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMYSYNC_SECTION_KEY
// For example: HOMYSYNC_REMOTE_BASE_URL, HOMYSYNC_SESSION_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadDefaults builds a configuration from defaults and environment variables
// only. It is used when no configuration file exists.
func LoadDefaults() (*Config, error) {
	return finish(defaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   10,
			UserAgent: "homysync",
		},
		Channels: ChannelsConfig{
			Reconnect: ReconnectConfig{
				InitialDelayMS: 1000,
				MaxDelayMS:     30000,
			},
			MaxMessageSize:   65536,
			HandshakeTimeout: 10,
		},
		Snapshot: SnapshotConfig{
			RetryAttempts: 0,
			RetryDelay:    5,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Name:      "homysync",
			Retention: 500,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homysync",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "homysync",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMYSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Remote
	if v := os.Getenv("HOMYSYNC_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("HOMYSYNC_REMOTE_WS_URL"); v != "" {
		cfg.Remote.WSURL = v
	}

	// Session (secrets belong here rather than in the file)
	if v := os.Getenv("HOMYSYNC_SESSION_USER"); v != "" {
		cfg.Session.User = v
	}
	if v := os.Getenv("HOMYSYNC_SESSION_TOKEN"); v != "" {
		cfg.Session.Token = v
	}
	if v := os.Getenv("HOMYSYNC_SESSION_EMAIL"); v != "" {
		cfg.Session.Email = v
	}
	if v := os.Getenv("HOMYSYNC_SESSION_PASSWORD"); v != "" {
		cfg.Session.Password = v
	}

	// MQTT
	if v := os.Getenv("HOMYSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMYSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMYSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HOMYSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("HOMYSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HOMYSYNC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("HOMYSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Remote validation
	if c.Remote.BaseURL == "" {
		errs = append(errs, "remote.base_url is required")
	} else if u, err := url.Parse(c.Remote.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "remote.base_url must be an absolute http or https URL")
	}
	if c.Remote.WSURL != "" {
		if u, err := url.Parse(c.Remote.WSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, "remote.ws_url must be an absolute ws or wss URL")
		}
	}
	if c.Remote.Timeout < 0 {
		errs = append(errs, "remote.timeout must not be negative")
	}

	// Channel validation
	if c.Channels.Reconnect.InitialDelayMS <= 0 {
		errs = append(errs, "channels.reconnect.initial_delay_ms must be positive")
	}
	if c.Channels.Reconnect.MaxDelayMS < c.Channels.Reconnect.InitialDelayMS {
		errs = append(errs, "channels.reconnect.max_delay_ms must be at least initial_delay_ms")
	}

	// Snapshot validation
	if c.Snapshot.RetryAttempts < 0 {
		errs = append(errs, "snapshot.retry_attempts must not be negative")
	}

	// Journal validation
	if c.Journal.Enabled && c.Journal.Name == "" {
		errs = append(errs, "journal.name is required when the journal is enabled")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ChannelBaseURL returns the push-channel root, deriving it from the REST
// base URL when ws_url is not set.
func (c *Config) ChannelBaseURL() string {
	if c.Remote.WSURL != "" {
		return strings.TrimRight(c.Remote.WSURL, "/")
	}
	base := strings.TrimRight(c.Remote.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// GetRemoteTimeout returns the read timeout for REST calls as a Duration.
func (c *Config) GetRemoteTimeout() time.Duration {
	return time.Duration(c.Remote.Timeout) * time.Second
}

// GetInitialDelay returns the first reconnect delay unit.
func (c *Config) GetInitialDelay() time.Duration {
	return time.Duration(c.Channels.Reconnect.InitialDelayMS) * time.Millisecond
}

// GetMaxDelay returns the reconnect delay cap.
func (c *Config) GetMaxDelay() time.Duration {
	return time.Duration(c.Channels.Reconnect.MaxDelayMS) * time.Millisecond
}

// GetHandshakeTimeout returns the channel handshake timeout as a Duration.
func (c *Config) GetHandshakeTimeout() time.Duration {
	return time.Duration(c.Channels.HandshakeTimeout) * time.Second
}

// GetChannelReadTimeout returns the channel silence limit as a Duration.
func (c *Config) GetChannelReadTimeout() time.Duration {
	return time.Duration(c.Channels.ReadTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
