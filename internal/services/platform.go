package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
	"golang.org/x/oauth2"
)

const defaultPlatformBaseURL = "https://api.givelively.org/v1"

// PlanClient reads recurring plans from the payment platform API.
//
// Uses [oauth2] to attach the platform API key as a bearer token.
type PlanClient struct {
	baseURL    string
	hasKey     bool
	httpClient *http.Client
}

// NewPlanClient creates a [PlanClient]. When base is non-nil it is used as the underlying
// transport for the token-injecting client.
func NewPlanClient(cfg shared.PlatformConfig, base *http.Client) *PlanClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPlatformBaseURL
	}

	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})

	return &PlanClient{
		baseURL:    baseURL,
		hasKey:     cfg.APIKey != "",
		httpClient: oauth2.NewClient(ctx, ts),
	}
}

// GetPlan retrieves a recurring plan. The platform wraps bodies in {"data": {...}}; flat bodies
// are accepted too.
func (p *PlanClient) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, fmt.Errorf("%w: plan id is required", shared.ErrMissingArgument)
	}
	if !p.hasKey {
		return nil, fmt.Errorf("%w: platform api key is not set", shared.ErrMissingCredentials)
	}

	endpoint := fmt.Sprintf("%s/recurring_plans/%s", p.baseURL, url.PathEscape(planID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: platform API error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, summarize(body, http.StatusText(resp.StatusCode)))
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to decode plan: %v", shared.ErrAPIRequest, err)
	}

	raw := body
	if len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		raw = envelope.Data
	}

	var plan models.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: failed to decode plan: %v", shared.ErrAPIRequest, err)
	}
	plan.Frequency = strings.ToLower(strings.TrimSpace(plan.Frequency))

	return &plan, nil
}
