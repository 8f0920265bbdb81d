package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// RejectionsName counts rejected bearer tokens, labelled by reason.
const RejectionsName = "pomoauth_token_rejections_total"

type metricsSource interface {
	MetricsSnapshot() pomoAuth.MetricsSnapshot
	AuditDropped() uint64
}

// rejectionReasons folds the validation outcome counters into one
// instrument keyed by "reason".
var rejectionReasons = []struct {
	id     pomoAuth.MetricID
	reason attribute.Set
}{
	{pomoAuth.MetricValidateInvalid, reasonSet("invalid")},
	{pomoAuth.MetricValidateExpired, reasonSet("expired")},
	{pomoAuth.MetricValidateWrongType, reasonSet("wrong_type")},
	{pomoAuth.MetricRevokedToken, reasonSet("revoked_individual")},
	{pomoAuth.MetricRevokedLogoutAll, reasonSet("revoked_logout_all")},
	{pomoAuth.MetricStoreUnavailable, reasonSet("store_unavailable")},
}

func reasonSet(r string) attribute.Set {
	return attribute.NewSet(attribute.String("reason", r))
}

type counterBinding struct {
	id  pomoAuth.MetricID
	ins metric.Int64ObservableCounter
}

// latencyBinding reports a histogram as one cumulative gauge per "le"
// bound plus a sample count.
type latencyBinding struct {
	id      pomoAuth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes engine snapshots through observable OTel instruments.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	counters     []counterBinding
	latencies    []latencyBinding
	rejections   metric.Int64ObservableCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter binds an Engine's counters to meter.
func NewExporter(meter metric.Meter, engine *pomoAuth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource registers a single callback that snapshots source
// once per collection.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencyBinding{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	var err error
	e.rejections, err = meter.Int64ObservableCounter(RejectionsName,
		metric.WithDescription("Bearer tokens rejected by validation, by reason."))
	if err != nil {
		return nil, fmt.Errorf("otel: counter %s: %w", RejectionsName, err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("otel: counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	observables = append(observables, e.rejections, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

var leSets = func() []attribute.Set {
	sets := make([]attribute.Set, 0, len(internaldefs.HistogramUpperBounds)+1)
	for _, b := range internaldefs.HistogramUpperBounds {
		sets = append(sets, attribute.NewSet(attribute.String("le", strconv.FormatFloat(b, 'g', -1, 64))))
	}
	return append(sets, attribute.NewSet(attribute.String("le", "+Inf")))
}()

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, l := range e.latencies {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[l.id]))
		for i, set := range leSets {
			o.ObserveInt64(l.buckets, int64(cum[i]), metric.WithAttributeSet(set))
		}
		o.ObserveInt64(l.count, int64(cum[len(cum)-1]))
	}
	for _, r := range rejectionReasons {
		o.ObserveInt64(e.rejections, int64(snap.Counters[r.id]), metric.WithAttributeSet(r.reason))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. Safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
