// Package textfile writes gauges in the Prometheus text exposition format for
// the node_exporter textfile collector.
package textfile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hostwatch/hostwatch/internal/state"
	"github.com/hostwatch/hostwatch/internal/types"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Sample is one labelled gauge value
type Sample struct {
	Labels map[string]string
	Value  float64
}

// Gauge is a metric family of gauge samples
type Gauge struct {
	Name    string
	Help    string
	Samples []Sample
}

// Write renders gauges and atomically replaces path with them
func Write(path string, gauges []Gauge) error {
	var buf bytes.Buffer
	for _, g := range gauges {
		if _, err := expfmt.MetricFamilyToText(&buf, g.family()); err != nil {
			return fmt.Errorf("encode %s: %w", g.Name, err)
		}
	}
	return state.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func (g Gauge) family() *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr(g.Name),
		Help: ptr(g.Help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, s := range g.Samples {
		m := &dto.Metric{Gauge: &dto.Gauge{Value: ptr(s.Value)}}
		for _, name := range sortedKeys(s.Labels) {
			m.Label = append(m.Label, &dto.LabelPair{Name: ptr(name), Value: ptr(s.Labels[name])})
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// ResourceGauges describes one resource cycle. Unavailable values are left
// out rather than exported as -1.
func ResourceGauges(snap types.ResourceSnapshot, thresholds types.Thresholds, counters types.BreachState, at time.Time) []Gauge {
	usage := Gauge{Name: "hostwatch_resource_usage_percent", Help: "Sampled resource utilization in percent."}
	limit := Gauge{Name: "hostwatch_resource_threshold_percent", Help: "Configured alert threshold in percent."}
	streak := Gauge{Name: "hostwatch_breach_consecutive", Help: "Consecutive checks at or above threshold."}

	for _, kind := range types.AllKinds {
		labels := map[string]string{"resource": kind.Key()}
		if snap.Available(kind) {
			usage.Samples = append(usage.Samples, Sample{Labels: labels, Value: snap.Value(kind)})
		}
		if t, ok := thresholds[kind]; ok {
			limit.Samples = append(limit.Samples, Sample{Labels: labels, Value: t})
		}
		streak.Samples = append(streak.Samples, Sample{Labels: labels, Value: float64(counters[kind])})
	}

	return []Gauge{
		usage,
		limit,
		streak,
		{
			Name:    "hostwatch_last_check_timestamp_seconds",
			Help:    "Unix time of the last completed resource check.",
			Samples: []Sample{{Value: float64(at.Unix())}},
		},
	}
}

// NetworkGauges describes one network cycle
func NetworkGauges(target string, reachable bool, failures int) []Gauge {
	up := 0.0
	if reachable {
		up = 1
	}
	labels := map[string]string{"target": target}
	return []Gauge{
		{
			Name:    "hostwatch_network_reachable",
			Help:    "Whether the network target answered in the last check.",
			Samples: []Sample{{Labels: labels, Value: up}},
		},
		{
			Name:    "hostwatch_network_consecutive_failures",
			Help:    "Consecutive failed network checks.",
			Samples: []Sample{{Labels: labels, Value: float64(failures)}},
		},
	}
}

// NetworkPath derives the network metrics file from the resource one:
// /x/hostwatch.prom becomes /x/hostwatch.network.prom.
func NetworkPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".network" + ext
}
