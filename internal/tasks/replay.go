package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
	"golang.org/x/time/rate"
)

// DeliveryStore is the part of the delivery log replay needs.
type DeliveryStore interface {
	Get(id string) (*models.Delivery, error)
	List(criteria map[string]any) ([]*models.Delivery, error)
	Update(delivery *models.Delivery) error
}

// ReplayOpts selects deliveries to re-process.
type ReplayOpts struct {
	IDs       []string // explicit delivery ids; when empty, deliveries are listed by Status
	Status    string   // status filter for listing (default: failed)
	Limit     int      // maximum deliveries to replay when listing (0 = all)
	RateLimit float64  // deliveries per second (default: 2)
	Force     bool     // also replay processed deliveries
}

// ReplayItem is the outcome for one delivery.
type ReplayItem struct {
	DeliveryID     string
	Status         string // resulting delivery status, or "skipped"
	ContactID      int
	ContributionID int
	MembershipID   int
	Error          error
}

// ReplayResult summarizes a replay run.
type ReplayResult struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Items     []ReplayItem
}

// Replay re-processes logged deliveries one at a time, paced by a rate limiter so the CRM is
// never hit in bursts. Each delivery's attempts, status and ids are written back to the store.
func (e *DonationEngine) Replay(ctx context.Context, prog chan<- ProgressUpdate, store DeliveryStore, opts ReplayOpts) (*ReplayResult, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: delivery log is not configured", shared.ErrServiceUnavailable)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	deliveries, err := e.selectDeliveries(store, opts)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{Total: len(deliveries), Items: make([]ReplayItem, 0, len(deliveries))}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	for i, d := range deliveries {
		step := i + 1
		item := ReplayItem{DeliveryID: d.ID()}

		if !d.Replayable(opts.Force) {
			item.Status = "skipped"
			result.Skipped++
			result.Items = append(result.Items, item)
			e.sendProgress(prog, replaySkippedUpdate(step, len(deliveries), item))
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("replay interrupted: %w", err)
		}

		e.sendProgress(prog, replayStartedUpdate(step, len(deliveries), d))
		item = e.replayOne(ctx, store, d)
		result.Items = append(result.Items, item)

		if item.Error != nil {
			result.Failed++
			e.sendProgress(prog, replayFailedUpdate(step, len(deliveries), item))
		} else {
			result.Succeeded++
			e.sendProgress(prog, replayCompletedUpdate(step, len(deliveries), item))
		}
	}

	return result, nil
}

func (e *DonationEngine) selectDeliveries(store DeliveryStore, opts ReplayOpts) ([]*models.Delivery, error) {
	if len(opts.IDs) > 0 {
		deliveries := make([]*models.Delivery, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			d, err := store.Get(id)
			if err != nil {
				return nil, err
			}
			deliveries = append(deliveries, d)
		}
		return deliveries, nil
	}

	status := opts.Status
	if status == "" {
		status = models.DeliveryFailed
	}

	deliveries, err := store.List(map[string]any{"status": status, "event": models.EventTransactionSucceeded})
	if err != nil {
		return nil, err
	}

	// List returns newest first; replay oldest first.
	for i, j := 0, len(deliveries)-1; i < j; i, j = i+1, j-1 {
		deliveries[i], deliveries[j] = deliveries[j], deliveries[i]
	}
	if opts.Limit > 0 && len(deliveries) > opts.Limit {
		deliveries = deliveries[:opts.Limit]
	}
	return deliveries, nil
}

func (e *DonationEngine) replayOne(ctx context.Context, store DeliveryStore, d *models.Delivery) ReplayItem {
	item := ReplayItem{DeliveryID: d.ID()}

	var event models.WebhookEvent
	err := json.Unmarshal(d.Payload(), &event)
	if err != nil {
		err = fmt.Errorf("%w: %v", shared.ErrInvalidPayload, err)
	}

	var res *Result
	if err == nil {
		var txn *models.Transaction
		if txn, err = models.ParseTransaction(event.Data); err == nil {
			res, err = e.Process(ctx, txn)
		}
	}

	d.SetAttempts(d.Attempts() + 1)
	if err != nil {
		d.Fail(err)
		item.Error = err
	} else {
		d.Succeed(res.Contact.ID, res.Contribution.ID, res.MembershipID())
		item.ContactID, item.ContributionID, item.MembershipID = res.Contact.ID, res.Contribution.ID, res.MembershipID()
	}
	item.Status = d.Status()

	if uerr := store.Update(d); uerr != nil {
		e.logger.Error("failed to record replay outcome", "delivery_id", d.ID(), "error", uerr)
	}
	e.logger.Info("replayed delivery", "delivery_id", d.ID(), "status", d.Status(), "attempts", d.Attempts())
	return item
}
