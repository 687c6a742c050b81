package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
api:
  key_id: "test-key-id"
  private_key_path: "/tmp/key.pem"
database:
  host: "localhost"
  name: "kalshi_stream"
  user: "collector"
  password: "secret"
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.KeyID != "test-key-id" {
		t.Errorf("KeyID = %s, want test-key-id", cfg.API.KeyID)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Host = %s, want localhost", cfg.Database.Host)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "api: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "expanded-secret")

	path := writeConfig(t, `
database:
  password: "${TEST_DB_PASSWORD}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "expanded-secret" {
		t.Errorf("Password = %s, want expanded-secret", cfg.Database.Password)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}

	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("RestURL = %s, want default", cfg.API.RestURL)
	}
	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("WSURL = %s, want default", cfg.API.WSURL)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Session.SubscribeTimeout != DefaultSubscribeTimeout {
		t.Errorf("SubscribeTimeout = %v, want %v", cfg.Session.SubscribeTimeout, DefaultSubscribeTimeout)
	}
	if cfg.Sink.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.Sink.BatchSize, DefaultBatchSize)
	}
}

func TestLoadWithDefaults_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, validConfig+`
session:
  subscribe_timeout: 3s
sink:
  batch_size: 42
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Session.SubscribeTimeout != 3*time.Second {
		t.Errorf("SubscribeTimeout = %v, want 3s", cfg.Session.SubscribeTimeout)
	}
	if cfg.Sink.BatchSize != 42 {
		t.Errorf("BatchSize = %d, want 42", cfg.Sink.BatchSize)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, validConfig)
	if _, err := LoadAndValidate(path); err != nil {
		t.Errorf("LoadAndValidate: %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CollectorConfig)
	}{
		{"missing key_id", func(c *CollectorConfig) { c.API.KeyID = "" }},
		{"missing private_key_path", func(c *CollectorConfig) { c.API.PrivateKeyPath = "" }},
		{"missing db host", func(c *CollectorConfig) { c.Database.Host = "" }},
		{"missing db name", func(c *CollectorConfig) { c.Database.Name = "" }},
		{"missing db user", func(c *CollectorConfig) { c.Database.User = "" }},
		{"missing db password", func(c *CollectorConfig) { c.Database.Password = "" }},
		{"min_conns exceeds max_conns", func(c *CollectorConfig) { c.Database.MinConns = 20 }},
		{"zero subscribe_timeout", func(c *CollectorConfig) { c.Session.SubscribeTimeout = 0 }},
		{"zero ping_timeout", func(c *CollectorConfig) { c.Session.PingTimeout = 0 }},
		{"negative write_timeout", func(c *CollectorConfig) { c.Session.WriteTimeout = -time.Second }},
		{"zero reconnect_base_wait", func(c *CollectorConfig) { c.Session.ReconnectBaseWait = 0 }},
		{"zero reconnect_max_wait", func(c *CollectorConfig) { c.Session.ReconnectMaxWait = 0 }},
		{"zero batch_size", func(c *CollectorConfig) { c.Sink.BatchSize = 0 }},
		{"negative flush_interval", func(c *CollectorConfig) { c.Sink.FlushInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, validConfig)
			cfg, err := LoadWithDefaults(path)
			if err != nil {
				t.Fatalf("LoadWithDefaults: %v", err)
			}

			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
