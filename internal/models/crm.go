package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the CRM's date format for membership windows.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the CRM's receive_date format.
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Contact is a CRM contact. LocalArea is empty when the contact has never stored one.
type Contact struct {
	ID        int
	Email     string
	FirstName string
	LastName  string
	Phone     string
	LocalArea string
	Created   bool // true when this request created the contact
}

// Contribution is the CRM contribution payload built for one transaction.
type Contribution struct {
	ID                  int
	ContactID           int
	FinancialTypeID     int
	TotalAmount         decimal.Decimal
	ReceiveDate         time.Time
	Source              string
	TrxnID              string
	InvoiceID           string
	StatusID            int
	PaymentInstrumentID int
}

// Params returns the Contribution.create parameters.
func (c *Contribution) Params() map[string]any {
	params := map[string]any{
		"contact_id":             c.ContactID,
		"financial_type_id":      c.FinancialTypeID,
		"total_amount":           c.TotalAmount.StringFixed(2),
		"receive_date":           c.ReceiveDate.Format(DateTimeLayout),
		"source":                 c.Source,
		"contribution_status_id": c.StatusID,
		"payment_instrument_id":  c.PaymentInstrumentID,
	}
	if c.TrxnID != "" {
		params["trxn_id"] = c.TrxnID
	}
	if c.InvoiceID != "" {
		params["invoice_id"] = c.InvoiceID
	}
	return params
}

// Membership is a CRM membership window.
type Membership struct {
	ID               int
	ContactID        int
	MembershipTypeID int
	JoinDate         time.Time
	StartDate        time.Time
	EndDate          time.Time
	StatusID         int
	ContributionID   int
}

// Params returns the Membership.create parameters. An existing id turns the create into an
// in-place update, and join_date is only sent for new memberships.
func (m *Membership) Params() map[string]any {
	params := map[string]any{
		"contact_id":         m.ContactID,
		"membership_type_id": m.MembershipTypeID,
		"start_date":         m.StartDate.Format(DateLayout),
		"end_date":           m.EndDate.Format(DateLayout),
		"status_id":          m.StatusID,
		"is_override":        1,
	}
	if m.ID > 0 {
		params["id"] = m.ID
	} else {
		params["join_date"] = m.JoinDate.Format(DateLayout)
	}
	if m.ContributionID > 0 {
		params["contribution_id"] = m.ContributionID
	}
	return params
}

// Plan is a payment platform recurring plan.
type Plan struct {
	ID        FlexString      `json:"id"`
	Frequency string          `json:"frequency"`
	Status    string          `json:"status,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}
