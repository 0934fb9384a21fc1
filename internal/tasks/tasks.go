// package tasks implements donation forwarding from payment platform transactions to the CRM.
//
// The core abstraction is DonationEngine, which resolves the donor contact, creates the
// contribution and maintains memberships. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/services"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyntheticEmail is the donor email of [SyntheticTransaction].
const SyntheticEmail = "test.donor@example.org"

// Result contains everything one processed transaction produced in the CRM.
type Result struct {
	Contact          *models.Contact
	Contribution     *models.Contribution
	FinancialType    FinancialType
	Membership       *models.Membership // nil when memberships are disabled or the upsert failed
	LocalAreaUpdated bool
}

// MembershipID returns the membership id, or 0 when none was saved.
func (r *Result) MembershipID() int {
	if r == nil || r.Membership == nil {
		return 0
	}
	return r.Membership.ID
}

// Processor forwards one transaction to the CRM.
type Processor interface {
	Process(ctx context.Context, txn *models.Transaction) (*Result, error)
}

// DonationEngine implements [Processor].
// Each transaction's CRM calls run strictly in sequence.
type DonationEngine struct {
	contacts      *ContactResolver
	contributions *ContributionBuilder
	memberships   *MembershipManager
	types         *FinancialTypes
	logger        *log.Logger
}

// NewDonationEngine wires the resolver, builder and membership manager from cfg. plans may be
// nil. Memberships are skipped when membership.enabled is false.
func NewDonationEngine(cfg *shared.Config, crm services.CRM, plans services.PlanLookup, logger *log.Logger) *DonationEngine {
	logger = orDiscard(logger)
	types := NewFinancialTypes(cfg.Accounting)

	e := &DonationEngine{
		contacts:      NewContactResolver(crm, cfg.CRM.LocalAreaField, logger),
		contributions: NewContributionBuilder(crm, cfg.Contribution, types),
		types:         types,
		logger:        logger,
	}
	if cfg.Membership.Enabled {
		e.memberships = NewMembershipManager(crm, plans, cfg.Membership, logger)
	}
	return e
}

// Contacts returns the engine's [ContactResolver].
func (e *DonationEngine) Contacts() *ContactResolver {
	return e.contacts
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *DonationEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Process forwards txn without progress reporting.
func (e *DonationEngine) Process(ctx context.Context, txn *models.Transaction) (*Result, error) {
	return e.Run(ctx, nil, txn)
}

// Run forwards txn: resolve contact → create contribution → update the stored local area →
// upsert membership. Only the first two steps can fail the run. The local area is written back
// only for campaigns routed by local area.
func (e *DonationEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, txn *models.Transaction) (*Result, error) {
	logger := e.logger.With("transaction_id", string(txn.ID))

	e.sendProgress(progress, resolveContactUpdate(1, 4, nil))
	contact, err := e.contacts.Resolve(ctx, txn.Donor())
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, resolveContactUpdate(1, 4, contact))

	built, err := e.contributions.Build(ctx, contact, txn)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, contributionUpdate(2, 4, built))

	logger.Info("created contribution",
		"contact_id", contact.ID,
		"contribution_id", built.Contribution.ID,
		"financial_type_id", built.FinancialType.ID,
		"policy", built.FinancialType.Policy,
	)

	result := &Result{Contact: contact, Contribution: built.Contribution, FinancialType: built.FinancialType}

	if built.FinancialType.Policy == shared.PolicyLocalArea {
		e.updateLocalArea(ctx, progress, txn, contact, result)
	}

	if e.memberships != nil {
		frequency := ""
		if txn.Recurring {
			frequency = e.memberships.ResolveFrequency(ctx, txn)
		}
		result.Membership = e.memberships.Upsert(ctx, contact.ID, built.Contribution.ID, txn, frequency)
		e.sendProgress(progress, membershipUpdate(4, 4, result.Membership))
	}

	return result, nil
}

// updateLocalArea stores the transaction's local area on the contact when it differs from the
// stored value. Failures are logged by the resolver and never fail the run.
func (e *DonationEngine) updateLocalArea(ctx context.Context, progress chan<- ProgressUpdate, txn *models.Transaction, contact *models.Contact, result *Result) {
	supplied := e.types.TransactionLocalArea(txn)
	if supplied == "" || sameLabel(supplied, contact.LocalArea) {
		return
	}
	e.sendProgress(progress, localAreaUpdate(3, 4, supplied))
	if e.contacts.UpdateLocalArea(ctx, contact.ID, supplied) {
		contact.LocalArea = supplied
		result.LocalAreaUpdated = true
	}
}

// SyntheticTransaction returns a one-time test donation of 1.00 with a fresh transaction id.
// The test trigger and the CLI test command push it through the full pipeline.
func SyntheticTransaction() *models.Transaction {
	return &models.Transaction{
		ID:            models.FlexString("test-" + uuid.NewString()),
		Amount:        decimal.NewFromInt(1),
		CreatedAt:     time.Now().Format(time.RFC3339),
		CampaignTitle: "Webhook Test",
		FirstName:     "Test",
		LastName:      "Donor",
		Email:         SyntheticEmail,
	}
}

func sameLabel(a, b string) bool {
	return shared.NormalizeLabel(a) == shared.NormalizeLabel(b)
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard)
	}
	return logger
}

// redact hides the local part of an email for progress messages.
func redact(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
