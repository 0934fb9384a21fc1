package tasks

import (
	"fmt"

	"github.com/desertthunder/givecrm/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveContact Phase = iota
	CreateContribution
	UpdateLocalArea
	UpsertMembership
	ReplayDelivery
)

func (p Phase) String() string {
	switch p {
	case ResolveContact:
		return "resolve_contact"
	case CreateContribution:
		return "create_contribution"
	case UpdateLocalArea:
		return "update_local_area"
	case UpsertMembership:
		return "upsert_membership"
	case ReplayDelivery:
		return "replay_delivery"
	default:
		return ""
	}
}

func resolveContactUpdate(step, total int, contact *models.Contact) ProgressUpdate {
	if contact == nil {
		return ProgressUpdate{
			Phase:   ResolveContact,
			Step:    step,
			Total:   total,
			Message: "Resolving donor contact...",
		}
	}

	verb := "Matched"
	if contact.Created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   ResolveContact,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s contact %d (%s)", verb, contact.ID, redact(contact.Email)),
		Data:    contact,
	}
}

func contributionUpdate(step, total int, built *BuildResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateContribution,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Contribution %d created (financial type %d, %s)", built.Contribution.ID, built.FinancialType.ID, built.FinancialType.Policy),
		Data:    built,
	}
}

func localAreaUpdate(step, total int, label string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UpdateLocalArea,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Storing local area %q on contact...", label),
	}
}

func membershipUpdate(step, total int, m *models.Membership) ProgressUpdate {
	if m == nil {
		return ProgressUpdate{
			Phase:   UpsertMembership,
			Step:    step,
			Total:   total,
			Message: "No membership saved",
		}
	}
	return ProgressUpdate{
		Phase:   UpsertMembership,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Membership %d: %s → %s", m.ID, m.StartDate.Format(models.DateLayout), m.EndDate.Format(models.DateLayout)),
		Data:    m,
	}
}

func replayStartedUpdate(step, total int, d *models.Delivery) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReplayDelivery,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Replaying delivery %s...", step, total, d.ID()),
	}
}

func replayCompletedUpdate(step, total int, item ReplayItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReplayDelivery,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (contribution %d)", step, total, item.DeliveryID, item.ContributionID),
		Data:    item,
	}
}

func replayFailedUpdate(step, total int, item ReplayItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReplayDelivery,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, item.DeliveryID, item.Error),
		Data:    item,
	}
}

func replaySkippedUpdate(step, total int, item ReplayItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReplayDelivery,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] - %s skipped (%s)", step, total, item.DeliveryID, item.Status),
		Data:    item,
	}
}
