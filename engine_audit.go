package pomoAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventLoginRateLimited  = "login_rate_limited"
	auditEventRefreshSuccess    = "refresh_success"
	auditEventRefreshInvalid    = "refresh_invalid"
	auditEventTokenRevoked      = "token_revoked"
	auditEventLogout            = "logout"
	auditEventLogoutAll         = "logout_all"
	auditEventOAuthLoginSuccess = "oauth_login_success"
	auditEventOAuthLoginFailure = "oauth_login_failure"
	auditEventAccountCreated    = "account_created"
	auditEventProfileUpdated    = "profile_updated"
	auditEventPasswordChanged   = "password_changed"
	auditEventAccountDeleted    = "account_deleted"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrTokenExpired        AuditErrorCode = "token_expired"
	auditErrTokenRevoked        AuditErrorCode = "token_revoked"
	auditErrWrongTokenType      AuditErrorCode = "wrong_token_type"
	auditErrAccountNotFound     AuditErrorCode = "account_not_found"
	auditErrUnsupportedProvider AuditErrorCode = "unsupported_provider"
	auditErrOAuthExchange       AuditErrorCode = "oauth_exchange"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrInvalidAccount      AuditErrorCode = "invalid_account"
	auditErrInvalidPassword     AuditErrorCode = "invalid_password"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrWrongTokenType):
		return auditErrWrongTokenType
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrUnsupportedProvider):
		return auditErrUnsupportedProvider
	case errors.Is(err, ErrOAuthExchange):
		return auditErrOAuthExchange
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidAccount):
		return auditErrInvalidAccount
	case errors.Is(err, ErrInvalidPassword):
		return auditErrInvalidPassword
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
