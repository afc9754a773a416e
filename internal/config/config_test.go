package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("RAGLAB_PORT", "9090")
	os.Setenv("RAGLAB_LOG_LEVEL", "debug")
	os.Setenv("RAGLAB_STORE_TYPE", "memory")
	defer func() {
		os.Unsetenv("RAGLAB_PORT")
		os.Unsetenv("RAGLAB_LOG_LEVEL")
		os.Unsetenv("RAGLAB_STORE_TYPE")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if cfg.Store.Type != "memory" {
		t.Errorf("Store.Type = %s, want memory", cfg.Store.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
host: "127.0.0.1"
port: 8888
log:
  level: warn
  format: json
qdrant:
  host: custom
  port: 7334
  collection: handbook
dashboard:
  refresh_interval: 10s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Host)
	}

	if cfg.Port != 8888 {
		t.Errorf("Port = %d, want 8888", cfg.Port)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}

	if cfg.Qdrant.Host != "custom" || cfg.Qdrant.Port != 7334 {
		t.Errorf("Qdrant = %+v, want custom:7334", cfg.Qdrant)
	}

	if cfg.Qdrant.Collection != "handbook" {
		t.Errorf("Qdrant.Collection = %s, want handbook", cfg.Qdrant.Collection)
	}

	if cfg.Dashboard.RefreshInterval != 10*time.Second {
		t.Errorf("Dashboard.RefreshInterval = %s, want 10s", cfg.Dashboard.RefreshInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("port: 8888\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("RAGLAB_PORT", "9999")
	defer os.Unsetenv("RAGLAB_PORT")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, environment must override the file", cfg.Port)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid port",
			modify: func(c *Config) {
				c.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid store type",
			modify: func(c *Config) {
				c.Store.Type = "invalid"
			},
			wantErr: true,
		},
		{
			name: "sqlite store without path",
			modify: func(c *Config) {
				c.Store.Type = "sqlite"
				c.Store.Path = ""
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid cache type",
			modify: func(c *Config) {
				c.Cache.Type = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid bus type",
			modify: func(c *Config) {
				c.Bus.Type = "invalid"
			},
			wantErr: true,
		},
		{
			name: "kafka bus without brokers",
			modify: func(c *Config) {
				c.Bus.Type = "kafka"
				c.Bus.KafkaBrokers = ""
			},
			wantErr: true,
		},
		{
			name: "chunk overlap >= chunk size",
			modify: func(c *Config) {
				c.Ingest.ChunkSize = 100
				c.Ingest.ChunkOverlap = 100
			},
			wantErr: true,
		},
		{
			name: "temperature out of range",
			modify: func(c *Config) {
				c.Gemini.Temperature = 2.5
			},
			wantErr: true,
		},
		{
			name: "refresh interval below one second",
			modify: func(c *Config) {
				c.Dashboard.RefreshInterval = 100 * time.Millisecond
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{
		Host: "localhost",
		Port: 8080,
	}

	if addr := cfg.Address(); addr != "localhost:8080" {
		t.Errorf("Address() = %s, want localhost:8080", addr)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}

	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for info level")
	}
}
