package otel

import (
	"context"
	"errors"
	"fmt"

	goShield "github.com/MrEthical07/goShield"
	"github.com/MrEthical07/goShield/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource supplies the exporter. *goShield.SecurityManager implements it.
type MetricsSource = internaldefs.Source

// instruments holds what one family is observed through. Counters use
// counter; gauges use gauge; histograms use buckets plus gauge for the count.
type instruments struct {
	counter metric.Int64ObservableCounter
	gauge   metric.Int64ObservableGauge
	buckets [8]metric.Int64ObservableGauge
}

// OTelExporter publishes goShield metrics as observable instruments read
// from one gathered view per collection. Decision families carry the
// authorization mode as the "mode" attribute.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	byName       map[string]*instruments
}

func NewOTelExporter(meter metric.Meter, sm *goShield.SecurityManager) (*OTelExporter, error) {
	if sm == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, sm)
}

func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	defs := internaldefs.All()
	e := &OTelExporter{
		source: source,
		byName: make(map[string]*instruments, len(defs)),
	}
	var observables []metric.Observable
	for _, def := range defs {
		ins, obs, err := newInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		e.byName[def.Name] = ins
		observables = append(observables, obs...)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newInstruments(meter metric.Meter, def internaldefs.Def) (*instruments, []metric.Observable, error) {
	ins := &instruments{}
	var err error
	switch def.Kind {
	case internaldefs.Counter:
		ins.counter, err = meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		return ins, []metric.Observable{ins.counter}, nil
	case internaldefs.Gauge:
		ins.gauge, err = meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, nil, fmt.Errorf("create gauge %s: %w", def.Name, err)
		}
		return ins, []metric.Observable{ins.gauge}, nil
	}

	obs := make([]metric.Observable, 0, len(ins.buckets)+1)
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins.buckets[i], err = meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative count for "+def.Help))
		if err != nil {
			return nil, nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
		obs = append(obs, ins.buckets[i])
	}
	ins.gauge, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Sample count for "+def.Help))
	if err != nil {
		return nil, nil, fmt.Errorf("create count %s_count: %w", def.Name, err)
	}
	return ins, append(obs, ins.gauge), nil
}

// observe records one gathered view. A failed session count still records
// every other family and is reported to the SDK.
func (e *OTelExporter) observe(ctx context.Context, o metric.Observer) error {
	families, err := internaldefs.Gather(ctx, e.source)
	for _, f := range families {
		ins := e.byName[f.Name]
		if ins == nil {
			continue
		}
		var opts []metric.ObserveOption
		if f.Labeled() {
			opts = append(opts, metric.WithAttributes(attribute.String(f.Label, f.LabelValue)))
		}
		switch f.Kind {
		case internaldefs.Counter:
			o.ObserveInt64(ins.counter, int64(f.Value), opts...)
		case internaldefs.Gauge:
			o.ObserveInt64(ins.gauge, int64(f.Value), opts...)
		case internaldefs.Histogram:
			for i, n := range f.Buckets {
				o.ObserveInt64(ins.buckets[i], int64(n), opts...)
			}
			o.ObserveInt64(ins.gauge, int64(f.Value), opts...)
		}
	}
	return err
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
