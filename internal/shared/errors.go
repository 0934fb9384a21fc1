package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Inbound webhook errors
	ErrSignatureMismatch = fmt.Errorf("signature mismatch")
	ErrMissingSignature  = fmt.Errorf("missing signature")
	ErrInvalidPayload    = fmt.Errorf("invalid payload")
	ErrUnsupportedEvent  = fmt.Errorf("unsupported event")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoIdentifier       = fmt.Errorf("no identifier in response")
	ErrContactNotFound    = fmt.Errorf("contact not found")
	ErrDeliveryNotFound   = fmt.Errorf("delivery not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
