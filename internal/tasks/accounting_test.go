package tasks

import (
	"testing"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
)

func TestFinancialTypes(t *testing.T) {
	cfg := shared.DefaultConfig().Accounting
	types := NewFinancialTypes(cfg)

	tests := []struct {
		name       string
		campaign   string
		txnArea    string
		stored     string
		wantID     int
		wantPolicy string
		wantSource string
	}{
		{name: "colorado label", campaign: "local-chapters", txnArea: "Colorado", wantID: 20, wantPolicy: shared.PolicyLocalArea, wantSource: "transaction"},
		{name: "label match ignores case and spacing", campaign: "local-chapters", txnArea: "  northern   colorado ", wantID: 21, wantPolicy: shared.PolicyLocalArea, wantSource: "transaction"},
		{name: "unrecognized label falls back", campaign: "local-chapters", txnArea: "Atlantis", wantID: 49, wantPolicy: shared.PolicyLocalArea, wantSource: "transaction"},
		{name: "absent label falls back", campaign: "local-chapters", wantID: 49, wantPolicy: shared.PolicyLocalArea},
		{name: "stored value used when transaction has none", campaign: "local-chapters", stored: "Denver Metro", wantID: 19, wantPolicy: shared.PolicyLocalArea, wantSource: "contact"},
		{name: "transaction value wins over stored", campaign: "local-chapters", txnArea: "Colorado", stored: "Denver Metro", wantID: 20, wantPolicy: shared.PolicyLocalArea, wantSource: "transaction"},
		{name: "fixed campaign", campaign: "annual-gala", txnArea: "Colorado", wantID: 4, wantPolicy: shared.PolicyFixed},
		{name: "unlisted campaign uses default", campaign: "spring-appeal", txnArea: "Colorado", wantID: 49, wantPolicy: shared.PolicyFixed},
		{name: "missing campaign uses default", campaign: "", wantID: 49, wantPolicy: shared.PolicyFixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := localAreaTxn("t1", "a@example.org", tt.campaign, tt.txnArea)
			got := types.Resolve(txn, tt.stored)

			if got.ID != tt.wantID {
				t.Errorf("expected financial type %d, got %d", tt.wantID, got.ID)
			}
			if got.Policy != tt.wantPolicy {
				t.Errorf("expected policy %s, got %s", tt.wantPolicy, got.Policy)
			}
			if got.Source != tt.wantSource {
				t.Errorf("expected source %q, got %q", tt.wantSource, got.Source)
			}
		})
	}

	t.Run("local area default policy applies to every campaign", func(t *testing.T) {
		cfg := shared.DefaultConfig().Accounting
		cfg.DefaultPolicy = shared.PolicyLocalArea
		cfg.Campaigns = nil
		types := NewFinancialTypes(cfg)

		got := types.Resolve(localAreaTxn("t1", "a@example.org", "anything", "Colorado"), "")
		if got.ID != 20 || got.Policy != shared.PolicyLocalArea {
			t.Errorf("expected local area resolution to 20, got %+v", got)
		}
	})

	t.Run("field matched by id", func(t *testing.T) {
		cfg := shared.DefaultConfig().Accounting
		cfg.LocalAreaFieldID = "77"
		cfg.LocalAreaFieldTitle = ""
		types := NewFinancialTypes(cfg)

		txn := localAreaTxn("t1", "a@example.org", "local-chapters", "")
		txn.CustomFields = []models.CustomField{{FieldID: "77", Title: "Which chapter?", Value: "Western Slope"}}

		if got := types.Resolve(txn, ""); got.ID != 22 {
			t.Errorf("expected 22, got %d", got.ID)
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		if id, ok := types.Lookup("COLORADO"); !ok || id != 20 {
			t.Errorf("expected 20, got %d %v", id, ok)
		}
		if _, ok := types.Lookup("   "); ok {
			t.Error("blank label should not match")
		}
	})
}
