package server

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/shared"
)

func TestSign(t *testing.T) {
	got := Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"transaction.succeeded","data":{"id":"txn_1"}}`)
	sig := Sign("s3cret", body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{name: "valid", secret: "s3cret", body: body, signature: sig, want: true},
		{name: "prefixed", secret: "s3cret", body: body, signature: "sha256=" + sig, want: true},
		{name: "upper case", secret: "s3cret", body: body, signature: "SHA256=" + strings.ToUpper(sig), want: true},
		{name: "padded", secret: "s3cret", body: body, signature: " " + sig + "\n", want: true},
		{name: "wrong secret", secret: "other", body: body, signature: sig, want: false},
		{name: "tampered body", secret: "s3cret", body: append([]byte(" "), body...), signature: sig, want: false},
		{name: "truncated", secret: "s3cret", body: body, signature: sig[:32], want: false},
		{name: "not hex", secret: "s3cret", body: body, signature: "zz" + sig[2:], want: false},
		{name: "empty", secret: "s3cret", body: body, signature: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.secret, tt.body, tt.signature); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestVerifyDetectsByteFlips(t *testing.T) {
	body := []byte(`{"event":"transaction.succeeded","data":{"id":"txn_1","amount":25}}`)
	sig := Sign("s3cret", body)

	for i := range body {
		mutated := bytes.Clone(body)
		mutated[i] ^= 0x01
		if Verify("s3cret", mutated, sig) {
			t.Errorf("expected mismatch after flipping byte %d (%q)", i, body[i])
		}
	}

	if !Verify("s3cret", body, sig) {
		t.Error("expected original body to still verify")
	}
}

func TestVerifierCheck(t *testing.T) {
	body := []byte(`{"event":"ping"}`)
	logger := log.New(io.Discard)

	tests := []struct {
		name    string
		cfg     shared.WebhookConfig
		header  string
		value   string
		wantErr error
	}{
		{name: "valid", cfg: shared.WebhookConfig{Secret: "s"}, header: "givelively-signature", value: Sign("s", body)},
		{name: "header case", cfg: shared.WebhookConfig{Secret: "s"}, header: "GiveLively-Signature", value: Sign("s", body)},
		{name: "missing passes", cfg: shared.WebhookConfig{Secret: "s"}},
		{name: "missing required", cfg: shared.WebhookConfig{Secret: "s", RequireSignature: true}, wantErr: shared.ErrMissingSignature},
		{name: "mismatch", cfg: shared.WebhookConfig{Secret: "s"}, header: "givelively-signature", value: Sign("t", body), wantErr: shared.ErrSignatureMismatch},
		{name: "no secret", cfg: shared.WebhookConfig{}, header: "givelively-signature", value: Sign("", body), wantErr: shared.ErrSignatureMismatch},
		{name: "other provider header ignored", cfg: shared.WebhookConfig{Secret: "s"}, header: "stripe-signature", value: "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/webhook/givelively", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			err := NewVerifier(tt.cfg, logger).Check(req, "givelively", body)
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSignatureHeader(t *testing.T) {
	if got := SignatureHeader(" GiveLively "); got != "givelively-signature" {
		t.Errorf("unexpected header %q", got)
	}
}
