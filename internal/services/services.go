// package services defines the outbound HTTP clients used by the forwarder
//
// CRM (entity/action REST), payment platform (recurring plans)
package services

import (
	"context"

	"github.com/desertthunder/givecrm/internal/models"
)

// CRM issues entity/action calls against the CRM's remote API.
type CRM interface {
	// Call performs one entity/action request and returns the decoded body.
	// Failures are returned as [*CRMError].
	Call(ctx context.Context, entity, action string, params map[string]any) (*CRMResponse, error)
}

// PlanLookup fetches recurring plan details from the payment platform.
type PlanLookup interface {
	// GetPlan retrieves the plan with the given id.
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
}
