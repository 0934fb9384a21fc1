package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/services"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ContributionBuilder maps transactions to CRM contributions.
type ContributionBuilder struct {
	crm   services.CRM
	cfg   shared.ContributionConfig
	types *FinancialTypes
	now   func() time.Time
}

// BuildResult is a created contribution and the financial type decision behind it.
type BuildResult struct {
	Contribution  *models.Contribution
	FinancialType FinancialType
}

// NewContributionBuilder creates a [ContributionBuilder].
func NewContributionBuilder(crm services.CRM, cfg shared.ContributionConfig, types *FinancialTypes) *ContributionBuilder {
	return &ContributionBuilder{crm: crm, cfg: cfg, types: types, now: time.Now}
}

// Prepare builds the contribution for txn without calling the CRM.
func (b *ContributionBuilder) Prepare(contact *models.Contact, txn *models.Transaction) (*models.Contribution, FinancialType, error) {
	if contact == nil || contact.ID <= 0 {
		return nil, FinancialType{}, fmt.Errorf("%w: contact is required", shared.ErrInvalidInput)
	}
	if txn.ID == "" {
		return nil, FinancialType{}, fmt.Errorf("%w: transaction id is required", shared.ErrInvalidPayload)
	}

	amount := txn.Amount
	if b.cfg.MinorUnits {
		amount = amount.Div(hundred)
	}

	received, ok := txn.ReceivedAt()
	if !ok {
		received = b.now()
	}

	ft := b.types.Resolve(txn, contact.LocalArea)

	return &models.Contribution{
		ContactID:           contact.ID,
		FinancialTypeID:     ft.ID,
		TotalAmount:         amount,
		ReceiveDate:         received,
		Source:              b.source(txn),
		TrxnID:              string(txn.ID),
		InvoiceID:           string(txn.ID),
		StatusID:            b.cfg.StatusID,
		PaymentInstrumentID: b.cfg.PaymentInstrumentID,
	}, ft, nil
}

// Build submits Contribution.create for txn and returns the contribution with its CRM id.
func (b *ContributionBuilder) Build(ctx context.Context, contact *models.Contact, txn *models.Transaction) (*BuildResult, error) {
	contribution, ft, err := b.Prepare(contact, txn)
	if err != nil {
		return nil, err
	}

	resp, err := b.crm.Call(ctx, "Contribution", "create", contribution.Params())
	if err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}

	id, err := services.ExtractID(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}
	contribution.ID = id

	return &BuildResult{Contribution: contribution, FinancialType: ft}, nil
}

func (b *ContributionBuilder) source(txn *models.Transaction) string {
	prefix := strings.TrimSpace(b.cfg.SourcePrefix)
	campaign := txn.Campaign()
	switch {
	case prefix == "":
		return campaign
	case campaign == "":
		return prefix
	default:
		return prefix + ": " + campaign
	}
}
