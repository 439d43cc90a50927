package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrSignerUninitialized   = errors.New("signer not initialized")
	ErrEmptyPayload          = errors.New("payload is empty")
	ErrPayloadTooLarge       = errors.New("payload exceeds size limit")
	ErrCanonicalization      = errors.New("canonicalization failed")
	ErrAuditKeyMissing       = errors.New("audit signing key not configured")
	ErrSessionInvalidated    = errors.New("refresh session invalidated")
	ErrBreakerOpen           = errors.New("session store circuit open")
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
	ErrStatusListFull        = errors.New("status list exhausted")
)
