package internaldefs

import (
	pomoAuth "github.com/MrEthical07/pomoAuth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   pomoAuth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   pomoAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "pomoauth_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

var CounterDefs = []CounterDef{
	{ID: pomoAuth.MetricLoginSuccess, Name: "pomoauth_login_success_total", Help: "Successful password logins."},
	{ID: pomoAuth.MetricLoginFailure, Name: "pomoauth_login_failure_total", Help: "Failed password logins."},
	{ID: pomoAuth.MetricLoginRateLimited, Name: "pomoauth_login_rate_limited_total", Help: "Logins rejected by the failed-login throttle."},
	{ID: pomoAuth.MetricPasswordUpgraded, Name: "pomoauth_password_upgraded_total", Help: "Credentials rehashed on login."},
	{ID: pomoAuth.MetricRefreshSuccess, Name: "pomoauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: pomoAuth.MetricRefreshFailure, Name: "pomoauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: pomoAuth.MetricValidateSuccess, Name: "pomoauth_validate_success_total", Help: "Tokens accepted by validation."},
	{ID: pomoAuth.MetricValidateInvalid, Name: "pomoauth_validate_invalid_total", Help: "Malformed or badly signed tokens."},
	{ID: pomoAuth.MetricValidateExpired, Name: "pomoauth_validate_expired_total", Help: "Expired tokens."},
	{ID: pomoAuth.MetricValidateWrongType, Name: "pomoauth_validate_wrong_type_total", Help: "Tokens presented as the wrong type."},
	{ID: pomoAuth.MetricRevokedToken, Name: "pomoauth_revoked_token_total", Help: "Tokens rejected by individual revocation."},
	{ID: pomoAuth.MetricRevokedLogoutAll, Name: "pomoauth_revoked_logout_all_total", Help: "Tokens rejected by a logout-all cutoff."},
	{ID: pomoAuth.MetricStoreUnavailable, Name: "pomoauth_store_unavailable_total", Help: "Validations failed closed on the revocation store."},
	{ID: pomoAuth.MetricLogout, Name: "pomoauth_logout_total", Help: "Single-pair logout operations."},
	{ID: pomoAuth.MetricLogoutAll, Name: "pomoauth_logout_all_total", Help: "Logout-all operations."},
	{ID: pomoAuth.MetricOAuthLoginSuccess, Name: "pomoauth_oauth_login_success_total", Help: "Successful provider logins."},
	{ID: pomoAuth.MetricOAuthLoginFailure, Name: "pomoauth_oauth_login_failure_total", Help: "Failed provider logins."},
	{ID: pomoAuth.MetricAccountCreated, Name: "pomoauth_account_created_total", Help: "Accounts registered or provisioned."},
	{ID: pomoAuth.MetricAccountDuplicate, Name: "pomoauth_account_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: pomoAuth.MetricProfileUpdated, Name: "pomoauth_profile_updated_total", Help: "Profile updates."},
	{ID: pomoAuth.MetricPasswordChanged, Name: "pomoauth_password_changed_total", Help: "Password changes."},
	{ID: pomoAuth.MetricAccountDeleted, Name: "pomoauth_account_deleted_total", Help: "Account deletions."},
}

var HistogramDefs = []HistogramDef{
	{ID: pomoAuth.MetricValidateLatency, Name: "pomoauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more overflow bucket.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names every bucket, overflow included, for exporters
// that need one instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
