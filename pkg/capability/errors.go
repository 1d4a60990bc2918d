package capability

import "errors"

// Failure taxonomy from spec.md §4.7.
var (
	ErrCertSignatureUnavailable    = errors.New("capability: certificate signature unavailable")
	ErrCertSignatureInvalid        = errors.New("capability: certificate signature invalid")
	ErrCertExpired                 = errors.New("capability: certificate expired")
	ErrTokenSignatureUnavailable   = errors.New("capability: token signature unavailable")
	ErrTokenSignatureInvalid       = errors.New("capability: token signature invalid")
	ErrTokenExpired                = errors.New("capability: token expired")
	ErrTokenNotYetValid            = errors.New("capability: token not yet valid")
	ErrTokenIssuedBeforeDelegation = errors.New("capability: token issued before delegation")
	ErrTokenOutlivesDelegation     = errors.New("capability: token outlives delegation")
	ErrAudienceNotAllowed          = errors.New("capability: audience not allowed")
	ErrScopeNotAllowed             = errors.New("capability: scope not allowed")
	ErrEncodeFailed                = errors.New("capability: encode failed")
)
