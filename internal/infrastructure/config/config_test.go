package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
remote:
  base_url: "http://homytech.local:8000"
  timeout: 5
session:
  user: "Ann"
channels:
  reconnect:
    initial_delay_ms: 500
    max_delay_ms: 8000
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 9000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Remote.BaseURL != "http://homytech.local:8000" {
		t.Errorf("Remote.BaseURL = %q, want %q", cfg.Remote.BaseURL, "http://homytech.local:8000")
	}
	if cfg.Session.User != "Ann" {
		t.Errorf("Session.User = %q, want %q", cfg.Session.User, "Ann")
	}
	if cfg.GetInitialDelay() != 500*time.Millisecond {
		t.Errorf("GetInitialDelay() = %v, want 500ms", cfg.GetInitialDelay())
	}
	if cfg.GetMaxDelay() != 8*time.Second {
		t.Errorf("GetMaxDelay() = %v, want 8s", cfg.GetMaxDelay())
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	// Unset values keep their defaults.
	if cfg.MQTT.TopicPrefix != "homysync" {
		t.Errorf("MQTT.TopicPrefix = %q, want default %q", cfg.MQTT.TopicPrefix, "homysync")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
remote:
  base_url: "ftp://homytech.local"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for ftp base_url, got nil")
	}
	if !strings.Contains(err.Error(), "remote.base_url") {
		t.Errorf("error = %v, want mention of remote.base_url", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOMYSYNC_REMOTE_BASE_URL", "https://cloud.homytech.id")
	t.Setenv("HOMYSYNC_SESSION_TOKEN", "tok")
	t.Setenv("HOMYSYNC_SESSION_USER", "Bo")
	t.Setenv("HOMYSYNC_API_PORT", "9191")

	cfg, err := Load(writeConfig(t, "remote:\n  base_url: \"http://ignored:8000\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Remote.BaseURL != "https://cloud.homytech.id" {
		t.Errorf("Remote.BaseURL = %q, want env override", cfg.Remote.BaseURL)
	}
	if cfg.Session.Token != "tok" || cfg.Session.User != "Bo" {
		t.Errorf("Session = %+v, want env overrides", cfg.Session)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("API.Port = %d, want 9191", cfg.API.Port)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}
	if cfg.Channels.Reconnect.InitialDelayMS != 1000 || cfg.Channels.Reconnect.MaxDelayMS != 30000 {
		t.Errorf("reconnect defaults = %+v, want 1000/30000", cfg.Channels.Reconnect)
	}
	if cfg.Snapshot.RetryAttempts != 0 {
		t.Errorf("Snapshot.RetryAttempts = %d, want 0", cfg.Snapshot.RetryAttempts)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty base url",
			mutate:  func(c *Config) { c.Remote.BaseURL = "" },
			wantErr: "remote.base_url is required",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Remote.BaseURL = "/api" },
			wantErr: "remote.base_url must be",
		},
		{
			name:    "http ws url",
			mutate:  func(c *Config) { c.Remote.WSURL = "http://host" },
			wantErr: "remote.ws_url must be",
		},
		{
			name:    "zero initial delay",
			mutate:  func(c *Config) { c.Channels.Reconnect.InitialDelayMS = 0 },
			wantErr: "initial_delay_ms must be positive",
		},
		{
			name:    "cap below initial delay",
			mutate:  func(c *Config) { c.Channels.Reconnect.MaxDelayMS = 10 },
			wantErr: "max_delay_ms must be at least",
		},
		{
			name:    "negative snapshot retries",
			mutate:  func(c *Config) { c.Snapshot.RetryAttempts = -1 },
			wantErr: "snapshot.retry_attempts",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "influx without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "api port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ChannelBaseURL(t *testing.T) {
	tests := []struct {
		base string
		ws   string
		want string
	}{
		{base: "http://host:8000", want: "ws://host:8000"},
		{base: "https://host/", want: "wss://host"},
		{base: "http://host:8000", ws: "wss://push.host/", want: "wss://push.host"},
	}

	for _, tt := range tests {
		cfg := defaultConfig()
		cfg.Remote.BaseURL = tt.base
		cfg.Remote.WSURL = tt.ws
		if got := cfg.ChannelBaseURL(); got != tt.want {
			t.Errorf("ChannelBaseURL(%q, %q) = %q, want %q", tt.base, tt.ws, got, tt.want)
		}
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/config.yaml) error = %v", err)
	}
	if cfg.Channels.Reconnect.InitialDelayMS != 1000 || cfg.Channels.Reconnect.MaxDelayMS != 30000 {
		t.Errorf("reconnect = %+v, want 1000/30000", cfg.Channels.Reconnect)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional integrations should ship disabled")
	}
}
