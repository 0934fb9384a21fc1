package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
)

// memoryStore is a [DeliveryStore] that lists newest first like the repository.
type memoryStore struct {
	items   []*models.Delivery
	updates int
}

func (s *memoryStore) add(d *models.Delivery) {
	d.SetID(fmt.Sprintf("d%d", len(s.items)+1))
	s.items = append(s.items, d)
}

func (s *memoryStore) Get(id string) (*models.Delivery, error) {
	for _, d := range s.items {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, shared.ErrDeliveryNotFound
}

func (s *memoryStore) List(criteria map[string]any) ([]*models.Delivery, error) {
	var out []*models.Delivery
	for i := len(s.items) - 1; i >= 0; i-- {
		d := s.items[i]
		if status, ok := criteria["status"].(string); ok && d.Status() != status {
			continue
		}
		if event, ok := criteria["event"].(string); ok && d.Event() != event {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *memoryStore) Update(d *models.Delivery) error {
	s.updates++
	return nil
}

func failedDelivery(t *testing.T, txnID, email string) *models.Delivery {
	t.Helper()

	data, err := json.Marshal(map[string]any{
		"id":             txnID,
		"amount":         40,
		"created_at":     "2026-02-01T12:00:00Z",
		"campaign_id":    "local-chapters",
		"campaign_title": "Local Chapters",
		"email":          email,
		"first_name":     "Grace",
		"last_name":      "Hopper",
		"custom_fields":  []map[string]any{{"field_id": 9, "title": "Local Area", "value": "Denver Metro"}},
	})
	if err != nil {
		t.Fatalf("failed to encode transaction: %v", err)
	}
	payload, err := json.Marshal(models.WebhookEvent{Event: models.EventTransactionSucceeded, Data: data})
	if err != nil {
		t.Fatalf("failed to encode event: %v", err)
	}

	d := models.NewDelivery(1, "givelively", models.EventTransactionSucceeded, payload)
	d.SetTransactionID(txnID)
	d.Fail(errors.New("crm unavailable"))
	return d
}

func TestReplay(t *testing.T) {
	ctx := context.Background()

	t.Run("replays failed deliveries oldest first", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		engine := NewDonationEngine(newTestConfig(fake), crm, nil, nil)

		store := &memoryStore{}
		store.add(failedDelivery(t, "txn_a", "a@example.org"))
		store.add(failedDelivery(t, "txn_b", "b@example.org"))

		done := models.NewDelivery(3, "givelively", models.EventTransactionSucceeded, []byte(`{}`))
		done.Succeed(1, 2, 3)
		store.add(done)

		res, err := engine.Replay(ctx, nil, store, ReplayOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}

		if res.Total != 2 || res.Succeeded != 2 || res.Failed != 0 {
			t.Errorf("expected 2 succeeded of 2, got %+v", res)
		}
		if res.Items[0].DeliveryID != "d1" || res.Items[1].DeliveryID != "d2" {
			t.Errorf("expected oldest first, got %s, %s", res.Items[0].DeliveryID, res.Items[1].DeliveryID)
		}

		first := store.items[0]
		if first.Status() != models.DeliveryProcessed || first.Attempts() != 2 || first.ErrorMessage() != "" {
			t.Errorf("expected processed on second attempt, got %s/%d/%q", first.Status(), first.Attempts(), first.ErrorMessage())
		}
		if first.ContributionID() == 0 || first.ContactID() == 0 {
			t.Error("expected ids to be recorded")
		}
		if contrib := fake.Contribution(first.ContributionID()); asInt(contrib["financial_type_id"]) != 19 {
			t.Errorf("expected financial type 19, got %v", contrib["financial_type_id"])
		}
		if store.updates != 2 {
			t.Errorf("expected 2 store updates, got %d", store.updates)
		}
	})

	t.Run("limit", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		engine := NewDonationEngine(newTestConfig(fake), crm, nil, nil)

		store := &memoryStore{}
		for i := range 3 {
			store.add(failedDelivery(t, fmt.Sprintf("txn_%d", i), fmt.Sprintf("l%d@example.org", i)))
		}

		res, err := engine.Replay(ctx, nil, store, ReplayOpts{Limit: 1, RateLimit: 100})
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}
		if res.Total != 1 || res.Items[0].DeliveryID != "d1" {
			t.Errorf("expected only d1, got %+v", res.Items)
		}
	})

	t.Run("failure is recorded", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		fake.FailOn("Contribution", "create", "still down")
		engine := NewDonationEngine(newTestConfig(fake), crm, nil, nil)

		store := &memoryStore{}
		store.add(failedDelivery(t, "txn_f", "f@example.org"))

		progress := make(chan ProgressUpdate, 8)
		res, err := engine.Replay(ctx, progress, store, ReplayOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}
		if res.Failed != 1 || !errors.Is(res.Items[0].Error, shared.ErrAPIRequest) {
			t.Errorf("expected one API failure, got %+v", res)
		}

		d := store.items[0]
		if d.Status() != models.DeliveryFailed || d.Attempts() != 2 || d.ErrorMessage() == "" {
			t.Errorf("expected failed with error after second attempt, got %s/%d/%q", d.Status(), d.Attempts(), d.ErrorMessage())
		}
		if len(progress) != 2 {
			t.Errorf("expected started and failed updates, got %d", len(progress))
		}
	})

	t.Run("explicit ids skip non-replayable deliveries", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		engine := NewDonationEngine(newTestConfig(fake), crm, nil, nil)

		store := &memoryStore{}
		rejected := models.NewDelivery(1, "givelively", models.EventTransactionSucceeded, []byte(`{}`))
		rejected.SetStatus(models.DeliveryRejected)
		store.add(rejected)

		res, err := engine.Replay(ctx, nil, store, ReplayOpts{IDs: []string{"d1"}, RateLimit: 100})
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}
		if res.Skipped != 1 || res.Items[0].Status != "skipped" {
			t.Errorf("expected skipped delivery, got %+v", res)
		}
		if len(fake.Calls("", "")) != 0 {
			t.Error("expected no CRM calls")
		}
	})

	t.Run("explicit ids skip processed deliveries unless forced", func(t *testing.T) {
		fake, crm := newTestCRM(t)
		engine := NewDonationEngine(newTestConfig(fake), crm, nil, nil)

		store := &memoryStore{}
		done := failedDelivery(t, "txn_done", "done@example.org")
		done.Succeed(101, 501, 0)
		store.add(done)

		res, err := engine.Replay(ctx, nil, store, ReplayOpts{IDs: []string{"d1"}, RateLimit: 100})
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}
		if res.Skipped != 1 || res.Succeeded != 0 {
			t.Errorf("expected processed delivery to be skipped, got %+v", res)
		}
		if n := len(fake.Calls("Contribution", "create")); n != 0 {
			t.Errorf("expected no duplicate contribution, got %d", n)
		}

		res, err = engine.Replay(ctx, nil, store, ReplayOpts{IDs: []string{"d1"}, RateLimit: 100, Force: true})
		if err != nil {
			t.Fatalf("failed to force replay: %v", err)
		}
		if res.Succeeded != 1 || done.Attempts() != 2 {
			t.Errorf("expected forced replay to succeed, got %+v (attempts %d)", res, done.Attempts())
		}
		if n := len(fake.Calls("Contribution", "create")); n != 1 {
			t.Errorf("expected 1 contribution after forced replay, got %d", n)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		engine := NewDonationEngine(shared.DefaultConfig(), nil, nil, nil)
		_, err := engine.Replay(ctx, nil, &memoryStore{}, ReplayOpts{IDs: []string{"missing"}})
		if !errors.Is(err, shared.ErrDeliveryNotFound) {
			t.Errorf("expected ErrDeliveryNotFound, got %v", err)
		}
	})

	t.Run("no store", func(t *testing.T) {
		engine := NewDonationEngine(shared.DefaultConfig(), nil, nil, nil)
		if _, err := engine.Replay(ctx, nil, nil, ReplayOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
