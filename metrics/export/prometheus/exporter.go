package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	goShield "github.com/MrEthical07/goShield"
	"github.com/MrEthical07/goShield/metrics/export/internaldefs"
)

// MetricsSource supplies the exporter. *goShield.SecurityManager implements it.
type MetricsSource = internaldefs.Source

// PrometheusExporter renders goShield metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter reading from sm.
func NewPrometheusExporter(sm *goShield.SecurityManager) *PrometheusExporter {
	return &PrometheusExporter{source: sm}
}

// NewPrometheusExporterFromSource creates an exporter over a custom source.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the rendered metrics. A session store that cannot be
// counted drops goshield_sessions_active from the scrape and nothing else.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := p.RenderContext(r.Context())
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
}

// Render is RenderContext with a background context, ignoring a failed
// session count.
func (p *PrometheusExporter) Render() string {
	body, _ := p.RenderContext(context.Background())
	return body
}

// RenderContext returns the current metrics in text exposition format, or
// "" when metrics are disabled and nothing was dropped. The error reports a
// family that had to be left out.
func (p *PrometheusExporter) RenderContext(ctx context.Context) (string, error) {
	if p == nil || p.source == nil {
		return "", nil
	}
	families, err := internaldefs.Gather(ctx, p.source)
	if len(families) == 0 {
		return "", err
	}

	var e encoder
	e.Grow(64 * len(families))
	for _, f := range families {
		e.family(f)
	}
	return e.String(), err
}

var typeNames = [...]string{
	internaldefs.Counter:   "counter",
	internaldefs.Gauge:     "gauge",
	internaldefs.Histogram: "histogram",
}

type encoder struct {
	strings.Builder
}

func (e *encoder) family(f internaldefs.Family) {
	e.comment("HELP", f.Name, escape(f.Help, false))
	e.comment("TYPE", f.Name, typeNames[f.Kind])

	var label string
	if f.Labeled() {
		label = f.Label + `="` + escape(f.LabelValue, true) + `"`
	}
	if f.Kind != internaldefs.Histogram {
		e.sample(f.Name, f.Value, label)
		return
	}
	for i, le := range internaldefs.HistogramBounds {
		e.sample(f.Name+"_bucket", f.Buckets[i], label, `le="`+le+`"`)
	}
	e.sample(f.Name+"_count", f.Value, label)
	// Snapshots carry no sum.
	e.sample(f.Name+"_sum", 0, label)
}

func (e *encoder) comment(kind, name, text string) {
	e.WriteString("# ")
	e.WriteString(kind)
	e.WriteByte(' ')
	e.WriteString(name)
	e.WriteByte(' ')
	e.WriteString(text)
	e.WriteByte('\n')
}

func (e *encoder) sample(name string, value uint64, labels ...string) {
	e.WriteString(name)
	sep := byte('{')
	for _, l := range labels {
		if l == "" {
			continue
		}
		e.WriteByte(sep)
		e.WriteString(l)
		sep = ','
	}
	if sep == ',' {
		e.WriteByte('}')
	}
	e.WriteByte(' ')
	var buf [20]byte
	e.Write(strconv.AppendUint(buf[:0], value, 10))
	e.WriteByte('\n')
}

var (
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
)

func escape(s string, quoted bool) string {
	if quoted {
		return labelEscaper.Replace(s)
	}
	return helpEscaper.Replace(s)
}
