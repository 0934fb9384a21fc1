// Package server provides the HTTP entry point for inbound payment platform webhooks.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] added first runs outermost. [BasicRouter] wraps the whole [http.ServeMux] with it,
// so 404 and 405 responses are logged too.
//
// Routes are registered as ServeMux method patterns, so path wildcards such as
// /webhook/{provider} are available through [http.Request.PathValue].
//
// # Endpoints
//
// [WebhookHandler] serves:
//   - POST /webhook/{provider} : verify the signature, decode the event, forward transaction.succeeded
//   - GET /health : status, CRM endpoint and which secrets are configured
//   - POST /test : forward a synthetic transaction through the same pipeline
//
// Handled failures answer 200 with success=false; only signature failures answer 401.
// Every delivery is written to the optional [DeliveryLog].
//
// # Signatures
//
// [Sign] and [Verify] implement the <provider>-signature header: a hex HMAC-SHA256 of the raw
// body keyed by the shared secret. [Verifier] applies the missing-header policy.
//
// # Lifecycle
//
// [Server] serves until its context is cancelled and then drains in-flight requests.
package server
