package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/shopspring/decimal"
)

func TestContributionBuilder(t *testing.T) {
	cfg := shared.DefaultConfig()
	contact := &models.Contact{ID: 101, Email: "a@example.org"}

	t.Run("Prepare", func(t *testing.T) {
		b := NewContributionBuilder(nil, cfg.Contribution, NewFinancialTypes(cfg.Accounting))
		txn := localAreaTxn("txn_1", "a@example.org", "local-chapters", "Colorado")

		c, ft, err := b.Prepare(contact, txn)
		if err != nil {
			t.Fatalf("failed to prepare contribution: %v", err)
		}

		if c.FinancialTypeID != 20 || ft.ID != 20 {
			t.Errorf("expected financial type 20, got %d", c.FinancialTypeID)
		}
		if !c.TotalAmount.Equal(decimal.NewFromInt(25)) {
			t.Errorf("expected amount 25, got %s", c.TotalAmount)
		}
		if c.Source != "Give Lively: Local Chapters" {
			t.Errorf("unexpected source %q", c.Source)
		}
		if c.TrxnID != "txn_1" || c.InvoiceID != "txn_1" {
			t.Errorf("expected trxn and invoice ids txn_1, got %q %q", c.TrxnID, c.InvoiceID)
		}
		if !c.ReceiveDate.Equal(time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)) {
			t.Errorf("expected event receive date, got %v", c.ReceiveDate)
		}
		if c.StatusID != cfg.Contribution.StatusID || c.PaymentInstrumentID != cfg.Contribution.PaymentInstrumentID {
			t.Errorf("expected configured status and instrument, got %d %d", c.StatusID, c.PaymentInstrumentID)
		}
	})

	t.Run("Prepare uses now without event time", func(t *testing.T) {
		b := NewContributionBuilder(nil, cfg.Contribution, NewFinancialTypes(cfg.Accounting))
		fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		b.now = func() time.Time { return fixed }

		txn := localAreaTxn("txn_2", "a@example.org", "", "")
		txn.CreatedAt = ""
		txn.CampaignTitle = ""

		c, _, err := b.Prepare(contact, txn)
		if err != nil {
			t.Fatalf("failed to prepare contribution: %v", err)
		}
		if !c.ReceiveDate.Equal(fixed) {
			t.Errorf("expected now, got %v", c.ReceiveDate)
		}
		if c.Source != "Give Lively" {
			t.Errorf("expected bare prefix without campaign, got %q", c.Source)
		}
		if c.FinancialTypeID != 49 {
			t.Errorf("expected default financial type 49, got %d", c.FinancialTypeID)
		}
	})

	t.Run("Prepare converts minor units", func(t *testing.T) {
		contribCfg := cfg.Contribution
		contribCfg.MinorUnits = true
		b := NewContributionBuilder(nil, contribCfg, NewFinancialTypes(cfg.Accounting))

		txn := localAreaTxn("txn_3", "a@example.org", "local-chapters", "")
		txn.Amount = decimal.NewFromInt(2550)

		c, _, err := b.Prepare(contact, txn)
		if err != nil {
			t.Fatalf("failed to prepare contribution: %v", err)
		}
		if c.TotalAmount.String() != "25.5" {
			t.Errorf("expected 25.5, got %s", c.TotalAmount)
		}
	})

	t.Run("Prepare forwards the amount as sent", func(t *testing.T) {
		b := NewContributionBuilder(nil, cfg.Contribution, NewFinancialTypes(cfg.Accounting))

		for _, amount := range []string{"0", "-12.5"} {
			txn := localAreaTxn("txn_4", "a@example.org", "", "")
			txn.Amount = decimal.RequireFromString(amount)

			c, _, err := b.Prepare(contact, txn)
			if err != nil {
				t.Fatalf("expected amount %s to be forwarded, got %v", amount, err)
			}
			if !c.TotalAmount.Equal(txn.Amount) {
				t.Errorf("expected %s, got %s", amount, c.TotalAmount)
			}
		}
	})

	t.Run("Prepare rejects invalid input", func(t *testing.T) {
		b := NewContributionBuilder(nil, cfg.Contribution, NewFinancialTypes(cfg.Accounting))

		noID := localAreaTxn("", "a@example.org", "", "")
		if _, _, err := b.Prepare(contact, noID); !errors.Is(err, shared.ErrInvalidPayload) {
			t.Errorf("expected ErrInvalidPayload for missing id, got %v", err)
		}

		if _, _, err := b.Prepare(nil, localAreaTxn("txn_x", "a@example.org", "", "")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing contact, got %v", err)
		}
	})

	t.Run("Build", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		contactID := fake.SeedContact("a@example.org", nil)
		b := NewContributionBuilder(crm, cfg.Contribution, NewFinancialTypes(cfg.Accounting))

		res, err := b.Build(context.Background(), &models.Contact{ID: contactID}, localAreaTxn("txn_5", "a@example.org", "local-chapters", "Colorado"))
		if err != nil {
			t.Fatalf("failed to build contribution: %v", err)
		}

		stored := fake.Contribution(res.Contribution.ID)
		if stored == nil {
			t.Fatalf("expected contribution %d to be stored", res.Contribution.ID)
		}
		if asInt(stored["financial_type_id"]) != 20 {
			t.Errorf("expected financial_type_id 20, got %v", stored["financial_type_id"])
		}
		if asInt(stored["contact_id"]) != contactID {
			t.Errorf("expected contact_id %d, got %v", contactID, stored["contact_id"])
		}
		if stored["trxn_id"] != "txn_5" || stored["invoice_id"] != "txn_5" {
			t.Errorf("expected trxn_id and invoice_id txn_5, got %v %v", stored["trxn_id"], stored["invoice_id"])
		}
		if stored["total_amount"] != "25.00" {
			t.Errorf("expected total_amount 25.00, got %v", stored["total_amount"])
		}
	})

	t.Run("Build surfaces CRM failure", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		contactID := fake.SeedContact("a@example.org", nil)
		fake.FailOn("Contribution", "create", "duplicate invoice")
		b := NewContributionBuilder(crm, cfg.Contribution, NewFinancialTypes(cfg.Accounting))

		_, err := b.Build(context.Background(), &models.Contact{ID: contactID}, localAreaTxn("txn_6", "a@example.org", "", ""))
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
