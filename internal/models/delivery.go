package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/givecrm/internal/shared"
)

// Delivery statuses.
const (
	DeliveryProcessed = "processed" // forwarded to the CRM
	DeliveryFailed    = "failed"    // forwarding failed; replayable
	DeliveryIgnored   = "ignored"   // event type is not forwarded
	DeliveryRejected  = "rejected"  // signature or payload rejected before processing
)

var _ SoftDeletable = (*Delivery)(nil)

// Delivery is one received webhook and the outcome of processing it.
type Delivery struct {
	id             string
	sequence       int
	requestID      string
	provider       string
	event          string
	transactionID  string
	email          string
	status         string
	contactID      int
	contributionID int
	membershipID   int
	errorMessage   string
	payload        []byte
	attempts       int
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

// NewDelivery creates a [Delivery] for a received payload. Status starts as [DeliveryIgnored]
// until processing records an outcome.
func NewDelivery(sequence int, provider, event string, payload []byte) *Delivery {
	now := time.Now()
	return &Delivery{
		sequence:  sequence,
		provider:  provider,
		event:     event,
		payload:   payload,
		status:    DeliveryIgnored,
		attempts:  1,
		createdAt: now,
		updatedAt: now,
	}
}

func (d *Delivery) ID() string { return d.id }
func (d *Delivery) Sequence() int { return d.sequence }
func (d *Delivery) RequestID() string { return d.requestID }
func (d *Delivery) Provider() string { return d.provider }
func (d *Delivery) Event() string { return d.event }
func (d *Delivery) TransactionID() string { return d.transactionID }
func (d *Delivery) Email() string { return d.email }
func (d *Delivery) Status() string { return d.status }
func (d *Delivery) ContactID() int { return d.contactID }
func (d *Delivery) ContributionID() int { return d.contributionID }
func (d *Delivery) MembershipID() int { return d.membershipID }
func (d *Delivery) ErrorMessage() string { return d.errorMessage }
func (d *Delivery) Payload() []byte { return d.payload }
func (d *Delivery) Attempts() int { return d.attempts }
func (d *Delivery) CreatedAt() time.Time { return d.createdAt }
func (d *Delivery) UpdatedAt() time.Time { return d.updatedAt }
func (d *Delivery) DeletedAt() *time.Time { return d.deletedAt }

func (d *Delivery) SetID(id string) { d.id = id }
func (d *Delivery) SetSequence(seq int) { d.sequence = seq }
func (d *Delivery) SetRequestID(id string) { d.requestID = id }
func (d *Delivery) SetTransactionID(id string) { d.transactionID = id }
func (d *Delivery) SetEmail(email string) { d.email = shared.NormalizeEmail(email) }
func (d *Delivery) SetStatus(status string) { d.status = status }
func (d *Delivery) SetErrorMessage(msg string) { d.errorMessage = msg }
func (d *Delivery) SetAttempts(n int) { d.attempts = n }
func (d *Delivery) SetCreatedAt(t time.Time) { d.createdAt = t }
func (d *Delivery) SetUpdatedAt(t time.Time) { d.updatedAt = t }
func (d *Delivery) SetDeletedAt(t *time.Time) { d.deletedAt = t }

// SetIdentifiers records the CRM ids produced by processing.
func (d *Delivery) SetIdentifiers(contact, contribution, membership int) {
	d.contactID, d.contributionID, d.membershipID = contact, contribution, membership
}

// Succeed marks the delivery processed with the CRM identifiers and clears any previous error.
func (d *Delivery) Succeed(contactID, contributionID, membershipID int) {
	d.SetIdentifiers(contactID, contributionID, membershipID)
	d.status = DeliveryProcessed
	d.errorMessage = ""
}

// Fail marks the delivery failed with err's message.
func (d *Delivery) Fail(err error) {
	d.status = DeliveryFailed
	if err != nil {
		d.errorMessage = err.Error()
	}
}

// Replayable reports whether the payload can be processed again. Failed deliveries always
// qualify; processed ones only with force, since each run creates another contribution.
func (d *Delivery) Replayable(force bool) bool {
	if d.event != EventTransactionSucceeded || len(d.payload) == 0 {
		return false
	}
	switch d.status {
	case DeliveryFailed:
		return true
	case DeliveryProcessed:
		return force
	default:
		return false
	}
}

// Validate checks required fields and the status value.
func (d *Delivery) Validate() error {
	if d.provider == "" {
		return fmt.Errorf("%w: delivery provider is required", shared.ErrInvalidInput)
	}
	if d.event == "" {
		return fmt.Errorf("%w: delivery event is required", shared.ErrInvalidInput)
	}
	switch d.status {
	case DeliveryProcessed, DeliveryFailed, DeliveryIgnored, DeliveryRejected:
	default:
		return fmt.Errorf("%w: unknown delivery status %q", shared.ErrInvalidInput, d.status)
	}
	if d.attempts < 1 {
		return fmt.Errorf("%w: attempts must be at least 1", shared.ErrInvalidInput)
	}
	return nil
}
