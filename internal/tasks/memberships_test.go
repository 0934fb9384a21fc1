package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
	tu "github.com/desertthunder/givecrm/internal/testing"
)

func TestMembershipTerms(t *testing.T) {
	m := NewMembershipManager(nil, nil, shared.DefaultConfig().Membership, nil)

	tests := []struct {
		name      string
		recurring bool
		frequency string
		wantType  int
		wantMonth int
	}{
		{name: "one-time", recurring: false, frequency: "monthly", wantType: 1, wantMonth: 12},
		{name: "monthly", recurring: true, frequency: "monthly", wantType: 2, wantMonth: 1},
		{name: "yearly", recurring: true, frequency: "yearly", wantType: 3, wantMonth: 12},
		{name: "annual", recurring: true, frequency: "Annual", wantType: 3, wantMonth: 12},
		{name: "annually", recurring: true, frequency: "annually", wantType: 3, wantMonth: 12},
		{name: "quarterly", recurring: true, frequency: "quarterly", wantType: 2, wantMonth: 3},
		{name: "unrecognized", recurring: true, frequency: "fortnightly", wantType: 1, wantMonth: 12},
		{name: "empty", recurring: true, frequency: "", wantType: 1, wantMonth: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := m.TermFor(tt.recurring, tt.frequency)
			if term.TypeID != tt.wantType || term.Months != tt.wantMonth {
				t.Errorf("expected type %d for %d months, got %+v", tt.wantType, tt.wantMonth, term)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	today := time.Date(2026, 3, 15, 9, 30, 0, 0, time.Local)
	midnight := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local)

	t.Run("no membership starts today", func(t *testing.T) {
		start, end := Window(today, nil, 12)
		if !start.Equal(midnight) || !end.Equal(midnight.AddDate(1, 0, 0)) {
			t.Errorf("unexpected window %v - %v", start, end)
		}
	})

	t.Run("ended yesterday starts today", func(t *testing.T) {
		yesterday := midnight.AddDate(0, 0, -1)
		start, end := Window(today, &yesterday, 1)
		if !start.Equal(midnight) {
			t.Errorf("expected start today, got %v", start)
		}
		if !end.Equal(time.Date(2026, 4, 15, 0, 0, 0, 0, time.Local)) {
			t.Errorf("expected end one month later, got %v", end)
		}
	})

	t.Run("ending in 60 days extends from the day after", func(t *testing.T) {
		current := midnight.AddDate(0, 0, 60)
		start, end := Window(today, &current, 1)
		if !start.Equal(current.AddDate(0, 0, 1)) {
			t.Errorf("expected start %v, got %v", current.AddDate(0, 0, 1), start)
		}
		if !end.Equal(start.AddDate(0, 1, 0)) {
			t.Errorf("expected end one month after start, got %v", end)
		}
	})

	t.Run("ending today starts tomorrow", func(t *testing.T) {
		start, _ := Window(today, &midnight, 12)
		if !start.Equal(midnight.AddDate(0, 0, 1)) {
			t.Errorf("expected start tomorrow, got %v", start)
		}
	})
}

func TestMembershipManager(t *testing.T) {
	ctx := context.Background()
	cfg := shared.DefaultConfig().Membership
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local)
	monthly := &models.Transaction{ID: "t1", Recurring: true}

	newManager := func(t *testing.T) (*tu.FakeCRM, *MembershipManager) {
		fake, crm := newTestCRM(t)
		m := NewMembershipManager(crm, nil, cfg, nil)
		m.now = func() time.Time { return today.Add(10 * time.Hour) }
		return fake, m
	}

	t.Run("renews membership that ended yesterday", func(t *testing.T) {
		fake, m := newManager(t)
		contactID := fake.SeedContact("m@example.org", nil)
		existing := fake.SeedMembership(contactID, cfg.MonthlyRenewingTypeID, today.AddDate(-1, 0, 0), today.AddDate(0, 0, -1))

		got := m.Upsert(ctx, contactID, 501, monthly, "monthly")
		if got == nil {
			t.Fatal("expected membership")
		}
		if got.ID != existing {
			t.Errorf("expected in-place update of %d, got %d", existing, got.ID)
		}

		stored := fake.Membership(existing)
		if stored["start_date"] != "2026-03-15" || stored["end_date"] != "2026-04-15" {
			t.Errorf("expected 2026-03-15 → 2026-04-15, got %v → %v", stored["start_date"], stored["end_date"])
		}
		if asInt(stored["contribution_id"]) != 501 {
			t.Errorf("expected contribution link 501, got %v", stored["contribution_id"])
		}
		if n := len(fake.Calls("Membership", "create")); n != 1 {
			t.Errorf("expected one save call, got %d", n)
		}
	})

	t.Run("extends membership ending in 60 days", func(t *testing.T) {
		fake, m := newManager(t)
		contactID := fake.SeedContact("m@example.org", nil)
		end := today.AddDate(0, 0, 60)
		existing := fake.SeedMembership(contactID, cfg.MonthlyRenewingTypeID, today.AddDate(0, -1, 0), end)

		got := m.Upsert(ctx, contactID, 502, monthly, "monthly")
		if got == nil {
			t.Fatal("expected membership")
		}

		wantStart := end.AddDate(0, 0, 1)
		if !got.StartDate.Equal(wantStart) {
			t.Errorf("expected start %v, got %v", wantStart, got.StartDate)
		}
		if stored := fake.Membership(existing); stored["start_date"] != wantStart.Format(models.DateLayout) {
			t.Errorf("expected stored start %s, got %v", wantStart.Format(models.DateLayout), stored["start_date"])
		}
	})

	t.Run("uses the latest window", func(t *testing.T) {
		fake, m := newManager(t)
		contactID := fake.SeedContact("m@example.org", nil)
		fake.SeedMembership(contactID, cfg.MonthlyRenewingTypeID, today.AddDate(-2, 0, 0), today.AddDate(-1, 0, 0))
		latest := fake.SeedMembership(contactID, cfg.MonthlyRenewingTypeID, today.AddDate(0, -1, 0), today.AddDate(0, 0, 10))

		if got := m.Upsert(ctx, contactID, 503, monthly, "monthly"); got == nil || got.ID != latest {
			t.Errorf("expected latest membership %d to be renewed, got %+v", latest, got)
		}
	})

	t.Run("creates membership with join date today", func(t *testing.T) {
		fake, m := newManager(t)
		contactID := fake.SeedContact("m@example.org", nil)

		got := m.Upsert(ctx, contactID, 504, &models.Transaction{ID: "t2"}, "")
		if got == nil {
			t.Fatal("expected membership")
		}

		stored := fake.Membership(got.ID)
		if stored["join_date"] != "2026-03-15" || stored["end_date"] != "2027-03-15" {
			t.Errorf("unexpected new membership dates: %v", stored)
		}
		if asInt(stored["membership_type_id"]) != cfg.AnnualNonRenewingTypeID {
			t.Errorf("expected annual non-renewing type, got %v", stored["membership_type_id"])
		}
	})

	t.Run("failures yield nil", func(t *testing.T) {
		fake, m := newManager(t)
		contactID := fake.SeedContact("m@example.org", nil)

		fake.FailOn("Membership", "create", "constraint violation")
		if got := m.Upsert(ctx, contactID, 505, monthly, "monthly"); got != nil {
			t.Errorf("expected nil on save failure, got %+v", got)
		}

		fake.FailOn("Membership", "get", "timeout")
		if got := m.Upsert(ctx, contactID, 505, monthly, "monthly"); got != nil {
			t.Errorf("expected nil on lookup failure, got %+v", got)
		}
	})

	t.Run("unconfigured type yields nil", func(t *testing.T) {
		_, crm := newTestCRM(t)
		m := NewMembershipManager(crm, nil, shared.MembershipConfig{Enabled: true}, nil)
		if got := m.Upsert(ctx, 1, 1, monthly, "monthly"); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestResolveFrequency(t *testing.T) {
	ctx := context.Background()
	cfg := shared.DefaultConfig().Membership

	t.Run("plan frequency wins", func(t *testing.T) {
		plans := &tu.MockPlans{Plans: map[string]*models.Plan{"p1": {ID: "p1", Frequency: "Yearly"}}}
		m := NewMembershipManager(nil, plans, cfg, nil)

		txn := &models.Transaction{Recurring: true, RecurringPlanID: "p1", Frequency: "monthly"}
		if got := m.ResolveFrequency(ctx, txn); got != FrequencyAnnual {
			t.Errorf("expected annual, got %q", got)
		}
		if len(plans.Calls) != 1 || plans.Calls[0] != "p1" {
			t.Errorf("expected one plan lookup for p1, got %v", plans.Calls)
		}
	})

	t.Run("lookup failure falls back to transaction", func(t *testing.T) {
		plans := &tu.MockPlans{Err: errors.New("platform down")}
		m := NewMembershipManager(nil, plans, cfg, nil)

		txn := &models.Transaction{Recurring: true, RecurringPlanID: "p1", Frequency: "Quarterly"}
		if got := m.ResolveFrequency(ctx, txn); got != FrequencyQuarterly {
			t.Errorf("expected quarterly, got %q", got)
		}
	})

	t.Run("no plan id skips lookup", func(t *testing.T) {
		plans := &tu.MockPlans{}
		m := NewMembershipManager(nil, plans, cfg, nil)

		if got := m.ResolveFrequency(ctx, &models.Transaction{Recurring: true}); got != "" {
			t.Errorf("expected empty frequency, got %q", got)
		}
		if len(plans.Calls) != 0 {
			t.Errorf("expected no plan lookups, got %v", plans.Calls)
		}
	})
}
