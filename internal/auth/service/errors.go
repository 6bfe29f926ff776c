package service

import (
	"errors"
	"fmt"
)

// Wire codes double as error strings so handlers can map them directly.
var (
	ErrMissingCredential       = errors.New("missing_credential")
	ErrInvalidCredential       = errors.New("invalid_credential")
	ErrInvalidOrExpiredAccess  = errors.New("invalid_or_expired_access")
	ErrInvalidOrExpiredRefresh = errors.New("invalid_or_expired_refresh")
	ErrReuseDetected           = errors.New("reuse_detected")
	ErrStoreUnavailable        = errors.New("store_unavailable")
	ErrEmailTaken              = errors.New("email_taken")
	ErrInvalidRequest          = errors.New("invalid_request")
)

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
