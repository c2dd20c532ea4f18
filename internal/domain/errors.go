package domain

import "errors"

var (
	ErrInvalidRequestID = errors.New("invalid request id")
	ErrKeyDecryption    = errors.New("key decryption failed")
	ErrApprovalInvalid  = errors.New("approval invalid")
	ErrApprovalExpired  = errors.New("approval expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrNonceReused      = errors.New("nonce reused")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrRequestNotFound  = errors.New("request not found")
	ErrStorage          = errors.New("storage failure")
	ErrConnection       = errors.New("connection failed")
	ErrAuthentication   = errors.New("authentication failed")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrPathDenied       = errors.New("path denied")
	ErrNotImplemented   = errors.New("not implemented")
	ErrChainIntegrity   = errors.New("ledger chain integrity violation")
)
