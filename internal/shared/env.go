package shared

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into the process
// environment. Variables that are already set are left untouched. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides secrets and deployment settings from environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Webhook.Secret, "WEBHOOK_SECRET")
	setString(&c.Platform.APIKey, "GIVELIVELY_API_KEY")
	setString(&c.Platform.APIKey, "PLATFORM_API_KEY")
	setString(&c.Platform.BaseURL, "PLATFORM_API_URL")
	setString(&c.CRM.BaseURL, "CIVICRM_URL")
	setString(&c.CRM.SiteKey, "CIVICRM_SITE_KEY")
	setString(&c.CRM.APIKey, "CIVICRM_API_KEY")
	setString(&c.Database.Path, "DATABASE_PATH")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("REQUIRE_SIGNATURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Webhook.RequireSignature = b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
