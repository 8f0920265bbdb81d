package flows

import "context"

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
	OAuth   OAuthDeps
	Account AccountDeps
}

// AuditFunc emits one audit event. meta is evaluated only when auditing is on.
type AuditFunc func(ctx context.Context, event string, success bool, accountID, tokenID string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopWarn(string, ...any) {}
