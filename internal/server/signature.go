package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/shared"
)

const signaturePrefix = "sha256="

// SignatureHeader returns the header carrying provider's signature, e.g. "givelively-signature".
func SignatureHeader(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "-signature"
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body. A "sha256=" prefix and surrounding whitespace are ignored.
func Verify(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if len(signature) >= len(signaturePrefix) && strings.EqualFold(signature[:len(signaturePrefix)], signaturePrefix) {
		signature = signature[len(signaturePrefix):]
	}

	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Verifier checks inbound webhook signatures against the shared secret.
type Verifier struct {
	secret  string
	require bool
	logger  *log.Logger
}

// NewVerifier creates a [Verifier] from the webhook config.
func NewVerifier(cfg shared.WebhookConfig, logger *log.Logger) *Verifier {
	return &Verifier{secret: cfg.Secret, require: cfg.RequireSignature, logger: logger}
}

// Check verifies r's signature header for provider over body.
//
// A missing header passes unverified unless signatures are required. A present header is
// checked even without a secret, and then never matches.
func (v *Verifier) Check(r *http.Request, provider string, body []byte) error {
	header := SignatureHeader(provider)
	signature := r.Header.Get(header)

	if signature == "" {
		if v.require {
			return fmt.Errorf("%w: %s header is required", shared.ErrMissingSignature, header)
		}
		v.logger.Warn("accepting unsigned webhook", "provider", provider, "request_id", RequestID(r.Context()))
		return nil
	}

	if v.secret == "" || !Verify(v.secret, body, signature) {
		return fmt.Errorf("%w: %s", shared.ErrSignatureMismatch, header)
	}
	return nil
}
