package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/givecrm/internal/shared"
)

// CRMClient calls the CRM's REST endpoint.
type CRMClient struct {
	baseURL    string
	siteKey    string
	apiKey     string
	httpClient *http.Client
}

// NewCRMClient creates a [CRMClient] from the [shared.CRMConfig]. A nil client uses [http.DefaultClient].
func NewCRMClient(cfg shared.CRMConfig, client *http.Client) *CRMClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &CRMClient{
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		siteKey:    cfg.SiteKey,
		apiKey:     cfg.APIKey,
		httpClient: client,
	}
}

// BaseURL returns the configured endpoint.
func (c *CRMClient) BaseURL() string {
	return c.baseURL
}

// CRMResponse is a decoded CRM response. Data holds the body with numbers kept as [json.Number].
type CRMResponse struct {
	StatusCode int
	Body       []byte
	Data       map[string]any
}

// CRMError is returned for transport failures, non-2xx statuses and is_error responses.
type CRMError struct {
	Entity     string
	Action     string
	StatusCode int
	Message    string
	Body       []byte
	Err        error
}

func (e *CRMError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s.%s (status %d): %s", shared.ErrAPIRequest, e.Entity, e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s.%s: %s", shared.ErrAPIRequest, e.Entity, e.Action, e.Message)
}

// Unwrap exposes [shared.ErrAPIRequest] and the underlying transport error, if any.
func (e *CRMError) Unwrap() []error {
	if e.Err != nil {
		return []error{shared.ErrAPIRequest, e.Err}
	}
	return []error{shared.ErrAPIRequest}
}

// Call performs a single entity/action request.
func (c *CRMClient) Call(ctx context.Context, entity, action string, params map[string]any) (*CRMResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: crm.base_url is not set", shared.ErrMissingConfig)
	}
	if c.siteKey == "" || c.apiKey == "" {
		return nil, fmt.Errorf("%w: crm site key and api key are required", shared.ErrMissingCredentials)
	}

	if params == nil {
		params = map[string]any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode params: %v", shared.ErrInvalidInput, err)
	}

	form := url.Values{}
	form.Set("entity", entity)
	form.Set("action", action)
	form.Set("key", c.siteKey)
	form.Set("api_key", c.apiKey)
	form.Set("json", string(encoded))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CRMError{Entity: entity, Action: action, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CRMError{Entity: entity, Action: action, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CRMError{
			Entity:     entity,
			Action:     action,
			StatusCode: resp.StatusCode,
			Message:    summarize(body, http.StatusText(resp.StatusCode)),
			Body:       body,
		}
	}

	data, err := decodeObject(body)
	if err != nil {
		return nil, &CRMError{
			Entity:     entity,
			Action:     action,
			StatusCode: resp.StatusCode,
			Message:    "invalid JSON response",
			Body:       body,
			Err:        err,
		}
	}

	crmResp := &CRMResponse{StatusCode: resp.StatusCode, Body: body, Data: data}
	if crmResp.IsError() {
		return nil, &CRMError{
			Entity:     entity,
			Action:     action,
			StatusCode: resp.StatusCode,
			Message:    crmResp.ErrorMessage(),
			Body:       body,
		}
	}

	return crmResp, nil
}

// IsError reports whether the body carries is_error = 1.
func (r *CRMResponse) IsError() bool {
	if r == nil || r.Data == nil {
		return false
	}
	switch v := r.Data["is_error"].(type) {
	case bool:
		return v
	default:
		n, ok := toInt(v)
		return ok && n != 0
	}
}

// ErrorMessage returns the body's error_message, if any.
func (r *CRMResponse) ErrorMessage() string {
	if r == nil || r.Data == nil {
		return ""
	}
	if msg, ok := r.Data["error_message"].(string); ok && msg != "" {
		return msg
	}
	return "unknown CRM error"
}

// Count returns the body's count field, or the number of records when it is missing.
func (r *CRMResponse) Count() int {
	if r == nil || r.Data == nil {
		return 0
	}
	if n, ok := toInt(r.Data["count"]); ok {
		return n
	}
	return len(Records(r))
}

// ExtractID returns the identifier from a CRM response.
//
// The id is read from, in order: the top-level "id" field, the first element of a "values" list,
// or the lowest key of a "values" map. [shared.ErrNoIdentifier] is returned when none applies.
func ExtractID(resp *CRMResponse) (int, error) {
	if resp == nil || resp.Data == nil {
		return 0, fmt.Errorf("%w: empty response", shared.ErrNoIdentifier)
	}

	if id, ok := toInt(resp.Data["id"]); ok && id > 0 {
		return id, nil
	}

	switch values := resp.Data["values"].(type) {
	case []any:
		if len(values) > 0 {
			if id, ok := recordID(values[0]); ok {
				return id, nil
			}
		}
	case map[string]any:
		keys := sortedKeys(values)
		if len(keys) > 0 {
			if id, ok := recordID(values[keys[0]]); ok {
				return id, nil
			}
			if id, err := strconv.Atoi(keys[0]); err == nil && id > 0 {
				return id, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: %s", shared.ErrNoIdentifier, summarize(resp.Body, "no id or values"))
}

// Records returns the response's "values" as records, whether the CRM sent a list or a map
// keyed by id. Map entries are ordered by key.
func Records(resp *CRMResponse) []map[string]any {
	if resp == nil || resp.Data == nil {
		return nil
	}

	var records []map[string]any
	switch values := resp.Data["values"].(type) {
	case []any:
		for _, v := range values {
			if rec, ok := v.(map[string]any); ok {
				records = append(records, rec)
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(values) {
			if rec, ok := values[k].(map[string]any); ok {
				records = append(records, rec)
			}
		}
	}
	return records
}

// RecordInt reads an integer field from a record.
func RecordInt(rec map[string]any, key string) (int, bool) {
	return toInt(rec[key])
}

// RecordString reads a field from a record as text. Missing and null values are empty.
func RecordString(rec map[string]any, key string) string {
	switch v := rec[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func recordID(v any) (int, bool) {
	if rec, ok := v.(map[string]any); ok {
		v = rec["id"]
	}
	id, ok := toInt(v)
	return id, ok && id > 0
}

// sortedKeys orders numeric keys numerically ahead of any non-numeric keys.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return data, nil
}

// summarize returns error_message from a JSON body, the trimmed body text, or fallback.
func summarize(body []byte, fallback string) string {
	var errResp struct {
		ErrorMessage string `json:"error_message"`
		Error        string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.ErrorMessage != "" {
			return errResp.ErrorMessage
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return fallback
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
