package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./givecrm.db" {
			t.Errorf("expected database path ./givecrm.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Accounting.FallbackFinancialTypeID != 49 {
			t.Errorf("expected fallback financial type 49, got %d", config.Accounting.FallbackFinancialTypeID)
		}

		if config.Accounting.DefaultFinancialTypeID != 49 {
			t.Errorf("expected default financial type 49, got %d", config.Accounting.DefaultFinancialTypeID)
		}

		if got := config.Accounting.LocalAreas["Colorado"]; got != 20 {
			t.Errorf("expected Colorado to map to 20, got %d", got)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("embedded config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if len(config.Accounting.Campaigns) != len(defaultConfig.Accounting.Campaigns) {
			t.Errorf("expected %d campaigns, got %d", len(defaultConfig.Accounting.Campaigns), len(config.Accounting.Campaigns))
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
port = 8080

[crm]
base_url = "https://crm.example.org/civicrm/ajax/rest"
site_key = "site"
api_key = "key"

[accounting]
default_policy = "local_area"

[accounting.local_areas]
"Front Range" = 77
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Server.Host != "0.0.0.0" {
			t.Errorf("expected host to fall back to 0.0.0.0, got %s", config.Server.Host)
		}

		if config.Accounting.FallbackFinancialTypeID != 49 {
			t.Errorf("expected fallback to default to 49, got %d", config.Accounting.FallbackFinancialTypeID)
		}

		if len(config.Accounting.LocalAreas) != 1 || config.Accounting.LocalAreas["Front Range"] != 77 {
			t.Errorf("expected only the file's local area table, got %v", config.Accounting.LocalAreas)
		}

		if len(config.Accounting.Campaigns) != 0 {
			t.Errorf("expected no campaigns, got %d", len(config.Accounting.Campaigns))
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("Campaign", func(t *testing.T) {
		config := DefaultConfig()

		c, ok := config.Accounting.Campaign(" annual-gala ")
		if !ok {
			t.Fatal("expected annual-gala to be configured")
		}
		if c.Policy != PolicyFixed || c.FinancialTypeID != 4 {
			t.Errorf("unexpected campaign policy: %+v", c)
		}

		if _, ok := config.Accounting.Campaign(""); ok {
			t.Error("empty campaign id should not match")
		}
		if _, ok := config.Accounting.Campaign("unknown"); ok {
			t.Error("unknown campaign should not match")
		}
	})

	t.Run("Addr", func(t *testing.T) {
		s := ServerConfig{Host: "127.0.0.1", Port: 4000}
		if got := s.Addr(); got != "127.0.0.1:4000" {
			t.Errorf("expected 127.0.0.1:4000, got %s", got)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{
			name:    "unknown default policy",
			mutate:  func(c *Config) { c.Accounting.DefaultPolicy = "random" },
			wantErr: true,
		},
		{
			name: "duplicate campaign",
			mutate: func(c *Config) {
				c.Accounting.Campaigns = append(c.Accounting.Campaigns, c.Accounting.Campaigns[0])
			},
			wantErr: true,
		},
		{
			name: "fixed without financial type",
			mutate: func(c *Config) {
				c.Accounting.Campaigns = []CampaignPolicy{{CampaignID: "spring", Policy: PolicyFixed}}
			},
			wantErr: true,
		},
		{
			name: "campaign without id",
			mutate: func(c *Config) {
				c.Accounting.Campaigns = []CampaignPolicy{{Policy: PolicyLocalArea}}
			},
			wantErr: true,
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("CIVICRM_URL", "https://crm.example.org/rest")
	t.Setenv("CIVICRM_API_KEY", "crm-key")
	t.Setenv("PLATFORM_API_KEY", "platform-key")
	t.Setenv("PORT", "9090")
	t.Setenv("REQUIRE_SIGNATURE", "true")
	t.Setenv("LOG_LEVEL", "")

	config := DefaultConfig()
	config.ApplyEnv()

	if config.Webhook.Secret != "whsec" {
		t.Errorf("expected webhook secret from env, got %q", config.Webhook.Secret)
	}
	if config.CRM.BaseURL != "https://crm.example.org/rest" {
		t.Errorf("expected crm url from env, got %q", config.CRM.BaseURL)
	}
	if config.CRM.APIKey != "crm-key" {
		t.Errorf("expected crm api key from env, got %q", config.CRM.APIKey)
	}
	if config.Platform.APIKey != "platform-key" {
		t.Errorf("expected platform key from env, got %q", config.Platform.APIKey)
	}
	if config.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", config.Server.Port)
	}
	if !config.Webhook.RequireSignature {
		t.Error("expected require_signature from env")
	}
	if config.Logging.Level != "info" {
		t.Errorf("empty LOG_LEVEL should keep info, got %q", config.Logging.Level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("loads values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("GIVECRM_DOTENV_TEST=loaded\n"), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("GIVECRM_DOTENV_TEST", "")
		os.Unsetenv("GIVECRM_DOTENV_TEST")

		if err := LoadDotEnv(path); err != nil {
			t.Fatalf("failed to load env file: %v", err)
		}
		if got := os.Getenv("GIVECRM_DOTENV_TEST"); got != "loaded" {
			t.Errorf("expected loaded, got %q", got)
		}
	})
}
