package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/shopspring/decimal"
)

// EventTransactionSucceeded is the only event type that is forwarded to the CRM.
const EventTransactionSucceeded = "transaction.succeeded"

// WebhookEvent is the inbound envelope posted by the payment platform.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Transaction decodes the event's data object.
type Transaction struct {
	ID              FlexString      `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	CreatedAt       string          `json:"created_at"`
	CampaignID      FlexString      `json:"campaign_id"`
	CampaignTitle   string          `json:"campaign_title"`
	Recurring       bool            `json:"recurring"`
	RecurringPlanID FlexString      `json:"recurring_plan_id,omitempty"`
	Frequency       string          `json:"frequency,omitempty"`
	FirstName       string          `json:"first_name,omitempty"`
	LastName        string          `json:"last_name,omitempty"`
	Name            string          `json:"name,omitempty"`
	Email           string          `json:"email,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Member          *Member         `json:"member,omitempty"`
	CustomFields    []CustomField   `json:"custom_fields,omitempty"`
}

// Member holds donor fields some payloads nest under "member".
type Member struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// CustomField is one donor-entered form field. Value is kept as decoded JSON.
type CustomField struct {
	FieldID FlexString `json:"field_id"`
	Title   string     `json:"title"`
	Value   any        `json:"value"`
}

// Donor is the flattened donor identity.
type Donor struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ParseTransaction decodes an event data object.
func ParseTransaction(data []byte) (*Transaction, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%w: missing data", shared.ErrInvalidPayload)
	}

	var txn Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPayload, err)
	}
	return &txn, nil
}

// Donor merges top-level and member donor fields. Top-level values win; a full name is split
// when no first or last name is given.
func (t *Transaction) Donor() Donor {
	d := Donor{FirstName: t.FirstName, LastName: t.LastName, Email: t.Email, Phone: t.Phone}
	name := t.Name

	if m := t.Member; m != nil {
		d.FirstName = firstNonEmpty(d.FirstName, m.FirstName)
		d.LastName = firstNonEmpty(d.LastName, m.LastName)
		d.Email = firstNonEmpty(d.Email, m.Email)
		d.Phone = firstNonEmpty(d.Phone, m.Phone)
		name = firstNonEmpty(name, m.Name)
	}

	if d.FirstName == "" && d.LastName == "" {
		d.FirstName, d.LastName = splitName(name)
	}

	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = shared.NormalizeEmail(d.Email)
	return d
}

// CustomField returns the first custom field whose id equals fieldID or, when no id matches,
// whose title equals title (case insensitive). Empty arguments never match.
func (t *Transaction) CustomField(fieldID, title string) (CustomField, bool) {
	if fieldID != "" {
		for _, f := range t.CustomFields {
			if string(f.FieldID) == fieldID {
				return f, true
			}
		}
	}
	if title != "" {
		for _, f := range t.CustomFields {
			if strings.EqualFold(strings.TrimSpace(f.Title), strings.TrimSpace(title)) {
				return f, true
			}
		}
	}
	return CustomField{}, false
}

// ReceivedAt parses CreatedAt, returning ok=false when it is empty or unparseable.
func (t *Transaction) ReceivedAt() (time.Time, bool) {
	s := strings.TrimSpace(t.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Campaign returns the campaign title, or the campaign id when no title is present.
func (t *Transaction) Campaign() string {
	if title := strings.TrimSpace(t.CampaignTitle); title != "" {
		return title
	}
	return string(t.CampaignID)
}

// String renders the field value as text. Lists are joined with ", ".
func (f CustomField) String() string {
	switch v := f.Value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := (CustomField{Value: item}).String(); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// FlexString accepts a JSON string or number and keeps it as text.
type FlexString string

// UnmarshalJSON implements [json.Unmarshaler].
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(str))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexString(n.String())
	return nil
}

// String returns the underlying text.
func (s FlexString) String() string { return string(s) }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
