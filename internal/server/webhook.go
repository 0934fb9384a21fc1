package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/desertthunder/givecrm/internal/tasks"
)

// MaxBodyBytes caps inbound webhook bodies.
const MaxBodyBytes = 1 << 20

// unknownEvent labels deliveries whose body could not be decoded.
const unknownEvent = "unknown"

// DeliveryLog records received webhooks.
type DeliveryLog interface {
	Create(d *models.Delivery) error
}

// WebhookHandler serves the webhook, health and test trigger endpoints.
type WebhookHandler struct {
	cfg        *shared.Config
	engine     tasks.Processor
	verifier   *Verifier
	deliveries DeliveryLog
	logger     *log.Logger
	now        func() time.Time
}

// NewWebhookHandler creates a [WebhookHandler]. deliveries may be nil to run without a delivery log.
func NewWebhookHandler(cfg *shared.Config, engine tasks.Processor, deliveries DeliveryLog, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		engine:     engine,
		verifier:   NewVerifier(cfg.Webhook, logger),
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}
}

// Register adds the handler's routes to r.
func (h *WebhookHandler) Register(r Router) {
	r.Handle(http.MethodPost, "/webhook/{provider}", http.HandlerFunc(h.Webhook))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))
	r.Handle(http.MethodPost, "/test", http.HandlerFunc(h.Test))
}

// NewRouter returns a [BasicRouter] with request ids, panic recovery, request logging and the
// handler's routes.
func NewRouter(h *WebhookHandler, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(RequestIDMiddleware(), LoggingMiddleware(logger), RecoverMiddleware(logger))
	h.Register(router)
	return router
}

type webhookResponse struct {
	Success        bool   `json:"success"`
	ContactID      int    `json:"contact_id,omitempty"`
	ContributionID int    `json:"contribution_id,omitempty"`
	MembershipID   int    `json:"membership_id,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`
	DeliveryID     string `json:"delivery_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Webhook handles POST /webhook/{provider}.
//
// Signature failures answer 401. Every other outcome answers 200 so the platform does not
// re-deliver an event that was already handled; failures set success to false.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(r.PathValue("provider"))
	logger := h.logger.With("provider", provider, "request_id", RequestID(r.Context()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		logger.Warn("failed to read webhook body", "error", err)
		writeJSON(w, http.StatusOK, webhookResponse{Error: "failed to read request body: " + err.Error()})
		return
	}

	if err := h.verifier.Check(r, provider, body); err != nil {
		logger.Warn("rejected webhook", "error", err)
		h.record(r, logger, h.rejected(provider, body, err))
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Error: err.Error()})
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || strings.TrimSpace(event.Event) == "" {
		if err == nil {
			err = errors.New("event is required")
		}
		logger.Warn("invalid webhook payload", "error", err)
		h.record(r, logger, h.rejected(provider, body, err))
		writeJSON(w, http.StatusOK, webhookResponse{Error: "invalid payload: " + err.Error()})
		return
	}

	delivery := models.NewDelivery(0, provider, event.Event, body)
	logger = logger.With("event", event.Event)

	if event.Event != models.EventTransactionSucceeded {
		logger.Info("ignoring event")
		h.record(r, logger, delivery)
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := h.process(context.WithoutCancel(r.Context()), logger, delivery, event.Data)
	h.record(r, logger, delivery)
	resp.DeliveryID = delivery.ID()
	writeJSON(w, http.StatusOK, resp)
}

func (h *WebhookHandler) process(ctx context.Context, logger *log.Logger, d *models.Delivery, data json.RawMessage) webhookResponse {
	txn, err := models.ParseTransaction(data)
	if err != nil {
		logger.Error("invalid transaction", "error", err)
		d.Fail(err)
		return webhookResponse{Error: err.Error()}
	}

	d.SetTransactionID(string(txn.ID))
	d.SetEmail(txn.Donor().Email)
	logger = logger.With("transaction_id", string(txn.ID))

	res, err := h.engine.Process(ctx, txn)
	if err != nil {
		logger.Error("failed to forward transaction", "error", err)
		d.Fail(err)
		return webhookResponse{TransactionID: string(txn.ID), Error: err.Error()}
	}

	d.Succeed(res.Contact.ID, res.Contribution.ID, res.MembershipID())
	logger.Info("forwarded transaction", "contact_id", res.Contact.ID, "contribution_id", res.Contribution.ID)
	return webhookResponse{
		Success:        true,
		ContactID:      res.Contact.ID,
		ContributionID: res.Contribution.ID,
		MembershipID:   res.MembershipID(),
		TransactionID:  string(txn.ID),
	}
}

func (h *WebhookHandler) rejected(provider string, body []byte, err error) *models.Delivery {
	event := unknownEvent
	var peek models.WebhookEvent
	if json.Unmarshal(body, &peek) == nil && strings.TrimSpace(peek.Event) != "" {
		event = peek.Event
	}

	d := models.NewDelivery(0, provider, event, body)
	d.SetStatus(models.DeliveryRejected)
	d.SetErrorMessage(err.Error())
	return d
}

// record writes d to the delivery log. Failures are logged only.
func (h *WebhookHandler) record(r *http.Request, logger *log.Logger, d *models.Delivery) {
	if h.deliveries == nil {
		return
	}
	d.SetRequestID(RequestID(r.Context()))
	if err := h.deliveries.Create(d); err != nil {
		logger.Error("failed to record delivery", "error", err)
	}
}

type healthResponse struct {
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	CRMURL      string          `json:"crm_url"`
	Configured  map[string]bool `json:"configured"`
	DeliveryLog bool            `json:"delivery_log"`
}

// Health handles GET /health. Secrets are reported as present or absent, never echoed.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		CRMURL:    h.cfg.CRM.BaseURL,
		Configured: map[string]bool{
			"webhook_secret":   h.cfg.Webhook.Secret != "",
			"platform_api_key": h.cfg.Platform.APIKey != "",
			"crm_site_key":     h.cfg.CRM.SiteKey != "",
			"crm_api_key":      h.cfg.CRM.APIKey != "",
		},
		DeliveryLog: h.deliveries != nil,
	})
}

// Test handles POST /test by forwarding [tasks.SyntheticTransaction].
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	txn := tasks.SyntheticTransaction()
	logger := h.logger.With("request_id", RequestID(r.Context()), "transaction_id", string(txn.ID))

	res, err := h.engine.Process(context.WithoutCancel(r.Context()), txn)
	if err != nil {
		logger.Error("test transaction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, webhookResponse{TransactionID: string(txn.ID), Error: err.Error()})
		return
	}

	logger.Info("test transaction forwarded", "contact_id", res.Contact.ID, "contribution_id", res.Contribution.ID)
	writeJSON(w, http.StatusOK, webhookResponse{
		Success:        true,
		ContactID:      res.Contact.ID,
		ContributionID: res.Contribution.ID,
		MembershipID:   res.MembershipID(),
		TransactionID:  string(txn.ID),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
