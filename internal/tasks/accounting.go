package tasks

import (
	"strings"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
)

// FinancialType is the outcome of financial type resolution for one transaction.
type FinancialType struct {
	ID     int    // financial type id written on the contribution
	Policy string // policy applied: [shared.PolicyFixed] or [shared.PolicyLocalArea]
	Label  string // local area label used, when the local area policy applied
	Source string // where the label came from: "transaction", "contact" or ""
}

// FinancialTypes resolves financial type ids from the accounting tables.
type FinancialTypes struct {
	cfg    shared.AccountingConfig
	labels map[string]int
}

// NewFinancialTypes indexes the local area table by normalized label.
func NewFinancialTypes(cfg shared.AccountingConfig) *FinancialTypes {
	labels := make(map[string]int, len(cfg.LocalAreas))
	for label, id := range cfg.LocalAreas {
		labels[shared.NormalizeLabel(label)] = id
	}
	return &FinancialTypes{cfg: cfg, labels: labels}
}

// Lookup maps a local area label to its financial type id. Matching ignores case and surrounding
// or repeated whitespace.
func (f *FinancialTypes) Lookup(label string) (int, bool) {
	key := shared.NormalizeLabel(label)
	if key == "" {
		return 0, false
	}
	id, ok := f.labels[key]
	return id, ok
}

// TransactionLocalArea returns the local area the donor entered on this transaction, or "".
func (f *FinancialTypes) TransactionLocalArea(txn *models.Transaction) string {
	field, ok := txn.CustomField(f.cfg.LocalAreaFieldID, f.cfg.LocalAreaFieldTitle)
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(field.String()), " ")
}

// Policy returns the policy that applies to campaignID.
func (f *FinancialTypes) Policy(campaignID string) (string, int) {
	if c, ok := f.cfg.Campaign(campaignID); ok {
		return c.Policy, c.FinancialTypeID
	}
	if f.cfg.DefaultPolicy == shared.PolicyLocalArea {
		return shared.PolicyLocalArea, 0
	}
	return shared.PolicyFixed, f.cfg.DefaultFinancialTypeID
}

// Resolve picks the financial type for txn. storedLocalArea is the contact's previously stored
// value; the transaction's own value takes precedence.
func (f *FinancialTypes) Resolve(txn *models.Transaction, storedLocalArea string) FinancialType {
	policy, fixedID := f.Policy(string(txn.CampaignID))
	if policy == shared.PolicyFixed {
		return FinancialType{ID: fixedID, Policy: policy}
	}

	result := FinancialType{ID: f.cfg.FallbackFinancialTypeID, Policy: policy}
	switch label := f.TransactionLocalArea(txn); {
	case label != "":
		result.Label, result.Source = label, "transaction"
	case strings.TrimSpace(storedLocalArea) != "":
		result.Label, result.Source = strings.TrimSpace(storedLocalArea), "contact"
	}

	if id, ok := f.Lookup(result.Label); ok {
		result.ID = id
	}
	return result
}
