package internaldefs

import (
	goShield "github.com/MrEthical07/goShield"
)

// Kind is the exposition type of a family.
type Kind uint8

const (
	Counter Kind = iota
	Gauge
	Histogram
)

// ModeLabel keys the authorization decision mode on decision series.
const ModeLabel = "mode"

// Def names one exported family. Label, when set, is the key of the single
// label every sample of the family carries.
type Def struct {
	ID    goShield.MetricID
	Name  string
	Help  string
	Kind  Kind
	Label string
}

// Defs lists every snapshot-backed family in export order.
var Defs = []Def{
	{ID: goShield.MetricLoginSuccess, Name: "goshield_login_success_total", Help: "Successful authentications."},
	{ID: goShield.MetricLoginFailure, Name: "goshield_login_failure_total", Help: "Failed authentications."},
	{ID: goShield.MetricLoginThrottled, Name: "goshield_login_throttled_total", Help: "Authentications refused by the attempt limiter."},
	{ID: goShield.MetricLogout, Name: "goshield_logout_total", Help: "Logouts processed by the security manager."},
	{ID: goShield.MetricSessionStarted, Name: "goshield_session_started_total", Help: "Started sessions."},
	{ID: goShield.MetricSessionStopped, Name: "goshield_session_stopped_total", Help: "Explicitly stopped sessions."},
	{ID: goShield.MetricSessionExpired, Name: "goshield_session_expired_total", Help: "Sessions reclaimed after expiring."},
	{ID: goShield.MetricSessionReaped, Name: "goshield_session_reaped_total", Help: "Sessions reclaimed by reaper sweeps."},
	{ID: goShield.MetricAuthzGranted, Name: "goshield_authz_granted_total", Help: "Granted authorization decisions.", Label: ModeLabel},
	{ID: goShield.MetricAuthzDenied, Name: "goshield_authz_denied_total", Help: "Denied authorization decisions.", Label: ModeLabel},
	{ID: goShield.MetricAuthzError, Name: "goshield_authz_error_total", Help: "Authorization decisions aborted by a realm or module error.", Label: ModeLabel},
	{ID: goShield.MetricEventSendFailure, Name: "goshield_event_send_failure_total", Help: "Event sink failures."},
	{ID: goShield.MetricCacheHit, Name: "goshield_cache_hit_total", Help: "Realm cache hits."},
	{ID: goShield.MetricCacheMiss, Name: "goshield_cache_miss_total", Help: "Realm cache misses."},
	{ID: goShield.MetricCacheError, Name: "goshield_cache_error_total", Help: "Realm cache backend failures."},
	{ID: goShield.MetricDecisionLatency, Name: "goshield_decision_latency_seconds", Help: "Authorization decision latency.", Kind: Histogram, Label: ModeLabel},
}

// Families that are not read from the metrics snapshot.
var (
	EventsDropped  = Def{Name: "goshield_events_dropped_total", Help: "Events dropped under dispatcher backpressure."}
	ActiveSessions = Def{Name: "goshield_sessions_active", Help: "Running sessions in the session store.", Kind: Gauge}
)

// All returns Defs followed by the source-backed families, in export order.
func All() []Def {
	out := make([]Def, 0, len(Defs)+2)
	out = append(out, Defs...)
	return append(out, EventsDropped, ActiveSessions)
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = [8]string{"0.0001", "0.00025", "0.0005", "0.001", "0.0025", "0.005", "0.01", "+Inf"}

// HistogramBoundSuffix renders HistogramBounds as metric name suffixes.
var HistogramBoundSuffix = [8]string{"0_0001", "0_00025", "0_0005", "0_001", "0_0025", "0_005", "0_01", "inf"}
