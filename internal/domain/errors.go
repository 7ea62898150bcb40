package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrValidation              = errors.New("validation failed")
	ErrProviderUnavailable     = errors.New("payment provider unavailable")
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	ErrVerificationFailed      = errors.New("payment verification failed")
	ErrDonationNotFound        = errors.New("donation not found")
)
