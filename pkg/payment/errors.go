package payment

import "errors"

var (
	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrMissingAPIKey     = errors.New("payment provider API key is required")
	ErrMissingSecret     = errors.New("payment provider webhook secret is required")
	ErrInvalidEnv        = errors.New("invalid payment provider environment")
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrCustomerNotFound  = errors.New("provider customer not found")
	ErrNoSubscription    = errors.New("provider customer has no subscription")
	ErrNoCheckoutURL     = errors.New("no checkout URL returned from provider")
	ErrProviderFailure   = errors.New("payment provider request failed")
)
