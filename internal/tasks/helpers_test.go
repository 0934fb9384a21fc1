package tasks

import (
	"testing"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/services"
	"github.com/desertthunder/givecrm/internal/shared"
	tu "github.com/desertthunder/givecrm/internal/testing"
	"github.com/shopspring/decimal"
)

// newTestConfig returns the embedded default config pointed at fake.
func newTestConfig(fake *tu.FakeCRM) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.CRM = fake.Config()
	return cfg
}

func newTestCRM(t *testing.T) (*tu.FakeCRM, *services.CRMClient) {
	t.Helper()
	fake := tu.NewFakeCRM(t)
	return fake, services.NewCRMClient(fake.Config(), nil)
}

func localAreaTxn(id, email, campaign, localArea string) *models.Transaction {
	txn := &models.Transaction{
		ID:            models.FlexString(id),
		Amount:        decimal.NewFromInt(25),
		CreatedAt:     "2026-03-04T10:30:00Z",
		CampaignID:    models.FlexString(campaign),
		CampaignTitle: "Local Chapters",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         email,
	}
	if localArea != "" {
		txn.CustomFields = []models.CustomField{
			{FieldID: "5", Title: "Employer", Value: "Analytical Engines"},
			{FieldID: "9", Title: "Local Area", Value: localArea},
		}
	}
	return txn
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return -1
}
