// package formatter exports delivery log entries to various formats (CSV, JSON, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
)

// Export formats accepted by [Export] and [WriteExport].
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

const timeLayout = "2006-01-02 15:04:05"

// DeliveryView is the exported shape of a [models.Delivery].
type DeliveryView struct {
	ID             string          `json:"id"`
	Sequence       int             `json:"sequence"`
	RequestID      string          `json:"request_id,omitempty"`
	Provider       string          `json:"provider"`
	Event          string          `json:"event"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	Email          string          `json:"email,omitempty"`
	Status         string          `json:"status"`
	ContactID      int             `json:"contact_id,omitempty"`
	ContributionID int             `json:"contribution_id,omitempty"`
	MembershipID   int             `json:"membership_id,omitempty"`
	Error          string          `json:"error,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// NewDeliveryView copies d into a [DeliveryView]. The payload is included only when withPayload
// is set and it is valid JSON.
func NewDeliveryView(d *models.Delivery, withPayload bool) DeliveryView {
	v := DeliveryView{
		ID:             d.ID(),
		Sequence:       d.Sequence(),
		RequestID:      d.RequestID(),
		Provider:       d.Provider(),
		Event:          d.Event(),
		TransactionID:  d.TransactionID(),
		Email:          d.Email(),
		Status:         d.Status(),
		ContactID:      d.ContactID(),
		ContributionID: d.ContributionID(),
		MembershipID:   d.MembershipID(),
		Error:          d.ErrorMessage(),
		Attempts:       d.Attempts(),
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
	}
	if withPayload && json.Valid(d.Payload()) {
		v.Payload = json.RawMessage(d.Payload())
	}
	return v
}

// Export renders deliveries in format.
func Export(format string, deliveries []*models.Delivery) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(deliveries)
	case FormatJSON:
		return ExportToJSON(deliveries, true)
	case FormatMarkdown, "md":
		return ExportToMarkdown(deliveries, "Deliveries")
	case FormatText, "txt", "":
		return ExportToText(deliveries)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts deliveries to CSV with one row per delivery. Payloads are omitted.
func ExportToCSV(deliveries []*models.Delivery) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Sequence", "Received", "Provider", "Event", "Transaction", "Email", "Status", "Contact", "Contribution", "Membership", "Attempts", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, d := range deliveries {
		record := []string{
			d.ID(),
			strconv.Itoa(d.Sequence()),
			d.CreatedAt().Format(timeLayout),
			d.Provider(),
			d.Event(),
			d.TransactionID(),
			d.Email(),
			d.Status(),
			optionalID(d.ContactID()),
			optionalID(d.ContributionID()),
			optionalID(d.MembershipID()),
			strconv.Itoa(d.Attempts()),
			d.ErrorMessage(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts deliveries to an indented JSON array.
func ExportToJSON(deliveries []*models.Delivery, withPayload bool) ([]byte, error) {
	views := make([]DeliveryView, 0, len(deliveries))
	for _, d := range deliveries {
		views = append(views, NewDeliveryView(d, withPayload))
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deliveries: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToMarkdown converts deliveries to a Markdown report with a status summary and a table.
func ExportToMarkdown(deliveries []*models.Delivery, title string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Deliveries**: %d\n", len(deliveries)))
	for _, line := range summaryLines(deliveries) {
		buf.WriteString(fmt.Sprintf("- %s\n", line))
	}
	buf.WriteString("\n")

	if len(deliveries) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Received | Event | Transaction | Email | Status | Contribution | Error |\n")
	buf.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, d := range deliveries {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			d.Sequence(),
			d.CreatedAt().Format(timeLayout),
			d.Event(),
			markdownCell(d.TransactionID()),
			markdownCell(d.Email()),
			d.Status(),
			optionalID(d.ContributionID()),
			markdownCell(d.ErrorMessage()),
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts deliveries to plain text, one line per delivery.
func ExportToText(deliveries []*models.Delivery) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Deliveries: %d\n", len(deliveries)))
	if lines := summaryLines(deliveries); len(lines) > 0 {
		buf.WriteString(fmt.Sprintf("Status: %s\n", strings.Join(lines, ", ")))
	}
	buf.WriteString("\n")

	for _, d := range deliveries {
		buf.WriteString(fmt.Sprintf("#%d %s %s %s", d.Sequence(), d.CreatedAt().Format(timeLayout), d.Status(), d.Event()))
		if d.TransactionID() != "" {
			buf.WriteString(" " + d.TransactionID())
		}
		if d.Email() != "" {
			buf.WriteString(" <" + d.Email() + ">")
		}
		if d.ContributionID() > 0 {
			buf.WriteString(fmt.Sprintf(" contribution=%d", d.ContributionID()))
		}
		if d.ErrorMessage() != "" {
			buf.WriteString(" error=" + strconv.Quote(d.ErrorMessage()))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// WriteExport writes deliveries in format to path. An empty path defaults to
// deliveries.<extension> in the working directory.
func WriteExport(format string, deliveries []*models.Delivery, path string) (string, error) {
	data, err := Export(format, deliveries)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "deliveries." + Extension(format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatMarkdown, "md":
		return "md"
	default:
		return "txt"
	}
}

// summaryLines returns "status: count" entries sorted by status.
func summaryLines(deliveries []*models.Delivery) []string {
	counts := make(map[string]int)
	for _, d := range deliveries {
		counts[d.Status()]++
	}

	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		lines = append(lines, fmt.Sprintf("%s: %d", s, counts[s]))
	}
	return lines
}

func optionalID(id int) string {
	if id <= 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
