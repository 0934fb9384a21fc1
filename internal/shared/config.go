package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	PolicyFixed     = "fixed"
	PolicyLocalArea = "local_area"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Logging      LoggingConfig      `toml:"logging"`
	Webhook      WebhookConfig      `toml:"webhook"`
	CRM          CRMConfig          `toml:"crm"`
	Platform     PlatformConfig     `toml:"platform"`
	Database     DatabaseConfig     `toml:"database"`
	Contribution ContributionConfig `toml:"contribution"`
	Accounting   AccountingConfig   `toml:"accounting"`
	Membership   MembershipConfig   `toml:"membership"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Provider string `toml:"provider"` // default provider name used by the test trigger
}

// LoggingConfig selects the log level and output format (text, json, logfmt).
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// WebhookConfig contains the shared secret for inbound signature checks.
type WebhookConfig struct {
	Secret           string `toml:"secret"`
	RequireSignature bool   `toml:"require_signature"`
}

// CRMConfig contains the CRM REST endpoint and its credentials.
type CRMConfig struct {
	BaseURL        string `toml:"base_url"`
	SiteKey        string `toml:"site_key"`
	APIKey         string `toml:"api_key"`
	LocalAreaField string `toml:"local_area_field"` // contact custom field holding the stored local area
}

// PlatformConfig contains payment platform API settings.
type PlatformConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// DatabaseConfig contains delivery log settings. An empty path disables the log.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ContributionConfig holds the fixed codes written on every contribution.
type ContributionConfig struct {
	SourcePrefix        string `toml:"source_prefix"`
	StatusID            int    `toml:"status_id"`
	PaymentInstrumentID int    `toml:"payment_instrument_id"`
	MinorUnits          bool   `toml:"minor_units"` // amounts arrive in cents
}

// AccountingConfig holds the financial type tables.
type AccountingConfig struct {
	DefaultPolicy           string           `toml:"default_policy"`
	DefaultFinancialTypeID  int              `toml:"default_financial_type_id"`
	FallbackFinancialTypeID int              `toml:"fallback_financial_type_id"`
	LocalAreaFieldID        string           `toml:"local_area_field_id"`
	LocalAreaFieldTitle     string           `toml:"local_area_field_title"`
	LocalAreas              map[string]int   `toml:"local_areas"`
	Campaigns               []CampaignPolicy `toml:"campaigns"`
}

// CampaignPolicy routes one campaign to a financial type policy.
type CampaignPolicy struct {
	CampaignID      string `toml:"campaign_id"`
	Policy          string `toml:"policy"`
	FinancialTypeID int    `toml:"financial_type_id"`
}

// MembershipConfig holds membership type ids and the active status code.
type MembershipConfig struct {
	Enabled                 bool `toml:"enabled"`
	StatusID                int  `toml:"status_id"`
	AnnualNonRenewingTypeID int  `toml:"annual_non_renewing_type_id"`
	MonthlyRenewingTypeID   int  `toml:"monthly_renewing_type_id"`
	AnnualRenewingTypeID    int  `toml:"annual_renewing_type_id"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Campaign returns the policy entry for campaignID, if one is configured.
func (a AccountingConfig) Campaign(campaignID string) (CampaignPolicy, bool) {
	id := strings.TrimSpace(campaignID)
	if id == "" {
		return CampaignPolicy{}, false
	}
	for _, c := range a.Campaigns {
		if c.CampaignID == id {
			return c, true
		}
	}
	return CampaignPolicy{}, false
}

// Validate checks the tables for values that cannot be routed.
func (c *Config) Validate() error {
	switch c.Accounting.DefaultPolicy {
	case "", PolicyFixed, PolicyLocalArea:
	default:
		return fmt.Errorf("%w: unknown accounting.default_policy %q", ErrInvalidConfig, c.Accounting.DefaultPolicy)
	}

	seen := make(map[string]bool, len(c.Accounting.Campaigns))
	for _, camp := range c.Accounting.Campaigns {
		if camp.CampaignID == "" {
			return fmt.Errorf("%w: campaign entry without campaign_id", ErrInvalidConfig)
		}
		if seen[camp.CampaignID] {
			return fmt.Errorf("%w: duplicate campaign %q", ErrInvalidConfig, camp.CampaignID)
		}
		seen[camp.CampaignID] = true

		switch camp.Policy {
		case PolicyLocalArea:
		case PolicyFixed:
			if camp.FinancialTypeID <= 0 {
				return fmt.Errorf("%w: campaign %q has fixed policy without financial_type_id", ErrInvalidConfig, camp.CampaignID)
			}
		default:
			return fmt.Errorf("%w: campaign %q has unknown policy %q", ErrInvalidConfig, camp.CampaignID, camp.Policy)
		}
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("%w: server.port must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Scalar settings missing from the file fall back to the embedded example config.
// The accounting tables are taken from the file as-is.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.fill(DefaultConfig())
	return &config, nil
}

func (c *Config) fill(d *Config) {
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.Provider == "" {
		c.Server.Provider = d.Server.Provider
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = d.Platform.BaseURL
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = d.Database.MaxIdleConns
	}
	if c.Contribution.SourcePrefix == "" {
		c.Contribution.SourcePrefix = d.Contribution.SourcePrefix
	}
	if c.Contribution.StatusID == 0 {
		c.Contribution.StatusID = d.Contribution.StatusID
	}
	if c.Contribution.PaymentInstrumentID == 0 {
		c.Contribution.PaymentInstrumentID = d.Contribution.PaymentInstrumentID
	}
	if c.Accounting.DefaultPolicy == "" {
		c.Accounting.DefaultPolicy = d.Accounting.DefaultPolicy
	}
	if c.Accounting.DefaultFinancialTypeID == 0 {
		c.Accounting.DefaultFinancialTypeID = d.Accounting.DefaultFinancialTypeID
	}
	if c.Accounting.FallbackFinancialTypeID == 0 {
		c.Accounting.FallbackFinancialTypeID = d.Accounting.FallbackFinancialTypeID
	}
	if c.Accounting.LocalAreaFieldTitle == "" {
		c.Accounting.LocalAreaFieldTitle = d.Accounting.LocalAreaFieldTitle
	}
	if c.Membership.StatusID == 0 {
		c.Membership.StatusID = d.Membership.StatusID
	}
	if c.Membership.AnnualNonRenewingTypeID == 0 {
		c.Membership.AnnualNonRenewingTypeID = d.Membership.AnnualNonRenewingTypeID
	}
	if c.Membership.MonthlyRenewingTypeID == 0 {
		c.Membership.MonthlyRenewingTypeID = d.Membership.MonthlyRenewingTypeID
	}
	if c.Membership.AnnualRenewingTypeID == 0 {
		c.Membership.AnnualRenewingTypeID = d.Membership.AnnualRenewingTypeID
	}
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
