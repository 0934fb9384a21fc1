package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/services"
	"github.com/desertthunder/givecrm/internal/shared"
)

// Recurrence frequencies understood by [MembershipManager.TermFor].
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyAnnual    = "annual"
)

// Term is a membership type and the length of one window.
type Term struct {
	Name   string
	TypeID int
	Months int
}

// MembershipManager derives membership windows from donations.
type MembershipManager struct {
	crm    services.CRM
	plans  services.PlanLookup
	cfg    shared.MembershipConfig
	logger *log.Logger
	now    func() time.Time
}

// NewMembershipManager creates a [MembershipManager]. plans may be nil, in which case
// frequencies come from the transaction only.
func NewMembershipManager(crm services.CRM, plans services.PlanLookup, cfg shared.MembershipConfig, logger *log.Logger) *MembershipManager {
	return &MembershipManager{crm: crm, plans: plans, cfg: cfg, logger: orDiscard(logger), now: time.Now}
}

// NormalizeFrequency maps platform frequency spellings onto the Frequency constants.
// Unrecognized values are returned lower-cased.
func NormalizeFrequency(frequency string) string {
	f := strings.ToLower(strings.TrimSpace(frequency))
	switch f {
	case "month", "monthly":
		return FrequencyMonthly
	case "quarter", "quarterly":
		return FrequencyQuarterly
	case "year", "yearly", "annual", "annually":
		return FrequencyAnnual
	default:
		return f
	}
}

// TermFor returns the membership term for a donation.
//
// One-time donations and recurring donations with an unrecognized frequency get an annual
// non-renewing membership. Quarterly donations use the monthly renewing type for three months.
func (m *MembershipManager) TermFor(recurring bool, frequency string) Term {
	fallback := Term{Name: "annual non-renewing", TypeID: m.cfg.AnnualNonRenewingTypeID, Months: 12}
	if !recurring {
		return fallback
	}

	switch NormalizeFrequency(frequency) {
	case FrequencyMonthly:
		return Term{Name: "monthly renewing", TypeID: m.cfg.MonthlyRenewingTypeID, Months: 1}
	case FrequencyQuarterly:
		return Term{Name: "monthly renewing", TypeID: m.cfg.MonthlyRenewingTypeID, Months: 3}
	case FrequencyAnnual:
		return Term{Name: "annual renewing", TypeID: m.cfg.AnnualRenewingTypeID, Months: 12}
	default:
		return fallback
	}
}

// ResolveFrequency returns the recurrence frequency for txn. When the transaction names a
// recurring plan the platform is asked first; lookup failures fall back to the transaction's own
// frequency, which may be empty.
func (m *MembershipManager) ResolveFrequency(ctx context.Context, txn *models.Transaction) string {
	planID := strings.TrimSpace(string(txn.RecurringPlanID))
	if planID != "" && m.plans != nil {
		plan, err := m.plans.GetPlan(ctx, planID)
		switch {
		case err != nil:
			m.logger.Warn("failed to fetch recurring plan", "plan_id", planID, "error", err)
		case plan != nil && strings.TrimSpace(plan.Frequency) != "":
			return NormalizeFrequency(plan.Frequency)
		}
	}
	return NormalizeFrequency(txn.Frequency)
}

// Window computes a membership window. The window starts today, or the day after the current
// window ends when that is later, and runs for months.
func Window(today time.Time, currentEnd *time.Time, months int) (time.Time, time.Time) {
	start := dateOf(today)
	if currentEnd != nil {
		y, mo, d := currentEnd.Date()
		if next := time.Date(y, mo, d+1, 0, 0, 0, 0, start.Location()); next.After(start) {
			start = next
		}
	}
	return start, start.AddDate(0, months, 0)
}

// Upsert renews the contact's latest membership of the resolved type, or creates one.
// Every failure is logged and reported as nil.
func (m *MembershipManager) Upsert(ctx context.Context, contactID, contributionID int, txn *models.Transaction, frequency string) *models.Membership {
	term := m.TermFor(txn.Recurring, frequency)
	logger := m.logger.With("contact_id", contactID, "term", term.Name)

	if term.TypeID <= 0 {
		logger.Warn("membership type is not configured")
		return nil
	}

	existing, err := m.latest(ctx, contactID, term.TypeID)
	if err != nil {
		logger.Error("failed to look up membership", "error", err)
		return nil
	}

	today := dateOf(m.now())
	membership := &models.Membership{
		ContactID:        contactID,
		MembershipTypeID: term.TypeID,
		JoinDate:         today,
		StatusID:         m.cfg.StatusID,
		ContributionID:   contributionID,
	}

	var currentEnd *time.Time
	if existing != nil {
		membership.ID = existing.ID
		membership.JoinDate = existing.JoinDate
		currentEnd = &existing.EndDate
	}
	membership.StartDate, membership.EndDate = Window(today, currentEnd, term.Months)

	resp, err := m.crm.Call(ctx, "Membership", "create", membership.Params())
	if err != nil {
		logger.Error("failed to save membership", "error", err)
		return nil
	}

	id, err := services.ExtractID(resp)
	if err != nil {
		logger.Error("failed to save membership", "error", err)
		return nil
	}
	membership.ID = id

	logger.Info("saved membership",
		"membership_id", id,
		"renewed", existing != nil,
		"start_date", membership.StartDate.Format(models.DateLayout),
		"end_date", membership.EndDate.Format(models.DateLayout),
	)
	return membership
}

// latest returns the contact's membership of typeID with the latest end date, or nil.
func (m *MembershipManager) latest(ctx context.Context, contactID, typeID int) (*models.Membership, error) {
	resp, err := m.crm.Call(ctx, "Membership", "get", map[string]any{
		"contact_id":         contactID,
		"membership_type_id": typeID,
		"options":            map[string]any{"sort": "end_date DESC", "limit": 1},
	})
	if err != nil {
		return nil, err
	}

	records := services.Records(resp)
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	id, ok := services.RecordInt(rec, "id")
	if !ok || id <= 0 {
		return nil, fmt.Errorf("membership record without id: %w", shared.ErrNoIdentifier)
	}

	end, err := parseDate(services.RecordString(rec, "end_date"))
	if err != nil {
		return nil, fmt.Errorf("membership %d: %w", id, err)
	}

	existing := &models.Membership{ID: id, ContactID: contactID, MembershipTypeID: typeID, EndDate: end}
	if join, err := parseDate(services.RecordString(rec, "join_date")); err == nil {
		existing.JoinDate = join
	}
	return existing, nil
}

// parseDate reads "2006-01-02" or "2006-01-02 15:04:05" as a local date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	t, err := time.ParseInLocation(models.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", shared.ErrInvalidInput, s)
	}
	return t, nil
}

func dateOf(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
