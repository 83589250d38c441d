// Package prometheus renders goShield metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads from a [goShield.SecurityManager] and exposes
// an [http.Handler]. Counter names are prefixed goshield_*_total; the single
// histogram is goshield_decision_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate security manager state.
package prometheus
