package internaldefs

import (
	"context"
	"fmt"

	goShield "github.com/MrEthical07/goShield"
)

// Source is what both exporters read. *goShield.SecurityManager implements it.
type Source interface {
	MetricsSnapshot() goShield.MetricsSnapshot
	EventsDropped() uint64
	AuthorizationMode() string
	ActiveSessionCount(ctx context.Context) (int, error)
}

// Family is one family's value at gather time. Histograms carry cumulative
// Buckets and their total in Value.
type Family struct {
	Def
	LabelValue string
	Value      uint64
	Buckets    [8]uint64
}

// Labeled reports whether the family's sample carries its label.
func (f Family) Labeled() bool {
	return f.Label != "" && f.LabelValue != ""
}

// Gather reads one view of src in export order. It returns nil when metrics
// are disabled and nothing was dropped. If the session store cannot be
// counted the active-session family is left out and the error is returned
// with everything else.
func Gather(ctx context.Context, src Source) ([]Family, error) {
	snap := src.MetricsSnapshot()
	dropped := src.EventsDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil, nil
	}

	mode := src.AuthorizationMode()
	out := make([]Family, 0, len(Defs)+2)
	for _, def := range Defs {
		f := Family{Def: def}
		if def.Label == ModeLabel {
			f.LabelValue = mode
		}
		if def.Kind == Histogram {
			f.Buckets = cumulative(snap.Histograms[def.ID])
			f.Value = f.Buckets[len(f.Buckets)-1]
		} else {
			f.Value = snap.Counters[def.ID]
		}
		out = append(out, f)
	}
	out = append(out, Family{Def: EventsDropped, Value: dropped})

	n, err := src.ActiveSessionCount(ctx)
	if err != nil {
		return out, fmt.Errorf("count active sessions: %w", err)
	}
	return append(out, Family{Def: ActiveSessions, Value: uint64(n)}), nil
}

// cumulative turns per-bucket counts into running totals, zero-filling
// missing buckets.
func cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
