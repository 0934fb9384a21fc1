package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/services"
	"github.com/desertthunder/givecrm/internal/shared"
)

// ContactResolver finds or creates CRM contacts by email.
//
// Resolution for the same email is serialized within the process, so two deliveries for a new
// donor create one contact. Separate processes sharing a CRM are not coordinated.
type ContactResolver struct {
	crm            services.CRM
	localAreaField string
	logger         *log.Logger
	locks          *keyedMutex
}

// NewContactResolver creates a [ContactResolver]. localAreaField names the contact custom field
// holding the stored local area ("custom_12"); empty disables reading and writing it.
func NewContactResolver(crm services.CRM, localAreaField string, logger *log.Logger) *ContactResolver {
	return &ContactResolver{
		crm:            crm,
		localAreaField: strings.TrimSpace(localAreaField),
		logger:         orDiscard(logger),
		locks:          newKeyedMutex(),
	}
}

// Resolve returns the contact whose email matches donor, creating it when none exists.
func (r *ContactResolver) Resolve(ctx context.Context, donor models.Donor) (*models.Contact, error) {
	email := shared.NormalizeEmail(donor.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: donor email is required", shared.ErrInvalidPayload)
	}

	unlock := r.locks.Lock(email)
	defer unlock()

	contact, err := r.Find(ctx, email)
	if err == nil {
		r.logger.Debug("matched existing contact", "contact_id", contact.ID, "email", email)
		return contact, nil
	}
	if !errors.Is(err, shared.ErrContactNotFound) {
		return nil, err
	}

	params := map[string]any{
		"contact_type": "Individual",
		"email":        email,
		"first_name":   donor.FirstName,
		"last_name":    donor.LastName,
	}
	if donor.Phone != "" {
		params["api.Phone.create"] = map[string]any{
			"phone":            donor.Phone,
			"location_type_id": 1,
			"is_primary":       1,
		}
	}

	resp, err := r.crm.Call(ctx, "Contact", "create", params)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	id, err := services.ExtractID(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	r.logger.Info("created contact", "contact_id", id, "email", email)
	return &models.Contact{
		ID:        id,
		Email:     email,
		FirstName: donor.FirstName,
		LastName:  donor.LastName,
		Phone:     donor.Phone,
		Created:   true,
	}, nil
}

// Find looks up a contact by email. It returns [shared.ErrContactNotFound] when the CRM has no
// match. When several contacts share the email, the lowest id wins.
func (r *ContactResolver) Find(ctx context.Context, email string) (*models.Contact, error) {
	email = shared.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", shared.ErrMissingArgument)
	}

	fields := []string{"id", "email", "first_name", "last_name", "phone"}
	if r.localAreaField != "" {
		fields = append(fields, r.localAreaField)
	}

	resp, err := r.crm.Call(ctx, "Contact", "get", map[string]any{
		"email":      email,
		"return":     strings.Join(fields, ","),
		"sequential": 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}

	records := services.Records(resp)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrContactNotFound, email)
	}

	rec := records[0]
	id, ok := services.RecordInt(rec, "id")
	if !ok {
		id, ok = services.RecordInt(rec, "contact_id")
	}
	if !ok || id <= 0 {
		return nil, fmt.Errorf("failed to look up contact: %w", shared.ErrNoIdentifier)
	}

	contact := &models.Contact{
		ID:        id,
		Email:     email,
		FirstName: services.RecordString(rec, "first_name"),
		LastName:  services.RecordString(rec, "last_name"),
		Phone:     services.RecordString(rec, "phone"),
	}
	if r.localAreaField != "" {
		contact.LocalArea = services.RecordString(rec, r.localAreaField)
	}
	return contact, nil
}

// UpdateLocalArea writes value onto the contact's local area field. Failures are logged and
// reported as false; they never propagate.
func (r *ContactResolver) UpdateLocalArea(ctx context.Context, contactID int, value string) bool {
	if r.localAreaField == "" || contactID <= 0 || strings.TrimSpace(value) == "" {
		return false
	}

	_, err := r.crm.Call(ctx, "Contact", "create", map[string]any{
		"id":             contactID,
		r.localAreaField: value,
	})
	if err != nil {
		r.logger.Warn("failed to update contact local area", "contact_id", contactID, "local_area", value, "error", err)
		return false
	}

	r.logger.Info("updated contact local area", "contact_id", contactID, "local_area", value)
	return true
}

// keyedMutex hands out one mutex per key and drops it when no goroutine holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
