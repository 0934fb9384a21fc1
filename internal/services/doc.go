// Package services implements the outbound clients for the CRM and the payment platform.
//
// # CRM Client
//
// [CRMClient] implements [CRM] for a CiviCRM-style REST endpoint. Every call is a single form
// POST carrying entity, action, the site key, the API key and a JSON-encoded parameter blob.
// There is no retry or backoff.
//
// Responses vary in shape by call. [ExtractID] normalizes the identifier lookup (id field, first
// element of a values list, or lowest key of a values map) and [Records] normalizes the values
// collection into an ordered slice.
//
// # Plan Client
//
// [PlanClient] implements [PlanLookup] against the payment platform's REST API. The platform API
// key is sent as a bearer token through an [oauth2.StaticTokenSource].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed, non-2xx status, or is_error response
//   - [shared.ErrNoIdentifier] : no recognizable id in a CRM response
//   - [shared.ErrMissingCredentials] : API keys not configured
//
// CRM failures are returned as [*CRMError], which keeps the status code and raw response body.
package services
