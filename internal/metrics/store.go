package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/linkpulsehq/linkpulse/pkg/types"
)

// Store maintains in-memory gauges and counters for engine telemetry.
type Store struct {
	latency      probeCounters
	throughput   probeCounters
	externalAddr probeCounters

	timingMisses atomic.Uint64
	rateLimited  atomic.Uint64
	reloads      atomic.Uint64

	snapshotSeq atomic.Uint64
	quality     atomic.Value

	readiness atomic.Value
}

// ReadinessCategory labels one failing readiness condition.
type ReadinessCategory struct {
	Name     string
	Severity string
}

type readinessState struct {
	ready      bool
	reason     string
	categories []ReadinessCategory
}

type probeCounters struct {
	runs     atomic.Uint64
	failures atomic.Uint64
	timeouts atomic.Uint64
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	store := &Store{}
	store.quality.Store(string(types.QualityUnknown))
	return store
}

func (s *Store) counters(kind types.ProbeKind) *probeCounters {
	switch kind {
	case types.ProbeThroughput:
		return &s.throughput
	case types.ProbeExternalAddr:
		return &s.externalAddr
	default:
		return &s.latency
	}
}

// ObserveProbe records one completed probe invocation. The failure
// kind is empty for a success.
func (s *Store) ObserveProbe(kind types.ProbeKind, failure types.FailureKind) {
	c := s.counters(kind)
	c.runs.Add(1)
	switch failure {
	case types.FailTimeout:
		c.timeouts.Add(1)
		c.failures.Add(1)
	case types.FailError:
		c.failures.Add(1)
	}
}

func (s *Store) IncTimingMiss() {
	s.timingMisses.Add(1)
}

func (s *Store) IncRateLimited() {
	s.rateLimited.Add(1)
}

func (s *Store) IncReload() {
	s.reloads.Add(1)
}

// ObserveSnapshot records the sequence and quality of the snapshot
// most recently published.
func (s *Store) ObserveSnapshot(seq uint64, quality types.QualityLevel) {
	s.snapshotSeq.Store(seq)
	s.quality.Store(string(quality))
}

// ObserveReadiness records the latest readiness evaluation.
func (s *Store) ObserveReadiness(ready bool, reason string, categories []ReadinessCategory) {
	s.readiness.Store(readinessState{
		ready:      ready,
		reason:     reason,
		categories: append([]ReadinessCategory(nil), categories...),
	})
}

// ProbeSnapshot captures per-kind probe counters.
type ProbeSnapshot struct {
	Runs     uint64
	Failures uint64
	Timeouts uint64
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	Latency      ProbeSnapshot
	Throughput   ProbeSnapshot
	ExternalAddr ProbeSnapshot

	TimingMisses uint64
	RateLimited  uint64
	Reloads      uint64

	SnapshotSeq uint64
	Quality     string

	Ready               bool
	ReadinessReason     string
	ReadinessCategories []ReadinessCategory
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	quality, _ := s.quality.Load().(string)
	readiness, _ := s.readiness.Load().(readinessState)
	return Snapshot{
		Latency:      s.latency.snapshot(),
		Throughput:   s.throughput.snapshot(),
		ExternalAddr: s.externalAddr.snapshot(),
		TimingMisses: s.timingMisses.Load(),
		RateLimited:  s.rateLimited.Load(),
		Reloads:      s.reloads.Load(),
		SnapshotSeq:  s.snapshotSeq.Load(),
		Quality:      quality,

		Ready:               readiness.ready,
		ReadinessReason:     readiness.reason,
		ReadinessCategories: append([]ReadinessCategory(nil), readiness.categories...),
	}
}

func (c *probeCounters) snapshot() ProbeSnapshot {
	return ProbeSnapshot{
		Runs:     c.runs.Load(),
		Failures: c.failures.Load(),
		Timeouts: c.timeouts.Load(),
	}
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()

	lines := []string{
		"# HELP linkpulse_probes_total Total probe invocations by kind.",
		"# TYPE linkpulse_probes_total counter",
	}
	for _, entry := range []struct {
		kind string
		snap ProbeSnapshot
	}{
		{"latency", snap.Latency},
		{"throughput", snap.Throughput},
		{"external_addr", snap.ExternalAddr},
	} {
		lines = append(lines, fmt.Sprintf("linkpulse_probes_total{kind=%q} %d", entry.kind, entry.snap.Runs))
	}

	lines = append(lines,
		"# HELP linkpulse_probe_failures_total Total probe invocations that failed, by kind.",
		"# TYPE linkpulse_probe_failures_total counter",
		fmt.Sprintf("linkpulse_probe_failures_total{kind=%q} %d", "latency", snap.Latency.Failures),
		fmt.Sprintf("linkpulse_probe_failures_total{kind=%q} %d", "throughput", snap.Throughput.Failures),
		fmt.Sprintf("linkpulse_probe_failures_total{kind=%q} %d", "external_addr", snap.ExternalAddr.Failures),
		"# HELP linkpulse_probe_timeouts_total Total probe invocations cut off at their deadline, by kind.",
		"# TYPE linkpulse_probe_timeouts_total counter",
		fmt.Sprintf("linkpulse_probe_timeouts_total{kind=%q} %d", "latency", snap.Latency.Timeouts),
		fmt.Sprintf("linkpulse_probe_timeouts_total{kind=%q} %d", "throughput", snap.Throughput.Timeouts),
		fmt.Sprintf("linkpulse_probe_timeouts_total{kind=%q} %d", "external_addr", snap.ExternalAddr.Timeouts),
		"# HELP linkpulse_timing_misses_total Ticks skipped because the previous probe of the same cadence was still running.",
		"# TYPE linkpulse_timing_misses_total counter",
		fmt.Sprintf("linkpulse_timing_misses_total %d", snap.TimingMisses),
		"# HELP linkpulse_rate_limited_total Ticks skipped by probe rate governance.",
		"# TYPE linkpulse_rate_limited_total counter",
		fmt.Sprintf("linkpulse_rate_limited_total %d", snap.RateLimited),
		"# HELP linkpulse_config_reloads_total Configuration reloads applied.",
		"# TYPE linkpulse_config_reloads_total counter",
		fmt.Sprintf("linkpulse_config_reloads_total %d", snap.Reloads),
		"# HELP linkpulse_snapshot_seq Sequence number of the latest published snapshot.",
		"# TYPE linkpulse_snapshot_seq gauge",
		fmt.Sprintf("linkpulse_snapshot_seq %d", snap.SnapshotSeq),
		"# HELP linkpulse_quality_info Current connection quality classification.",
		"# TYPE linkpulse_quality_info gauge",
		fmt.Sprintf("linkpulse_quality_info{quality=%q} 1", snap.Quality),
	)

	readyVal := 0
	if snap.Ready {
		readyVal = 1
	}
	lines = append(lines,
		"# HELP linkpulse_ready Whether the monitor passes all readiness checks.",
		"# TYPE linkpulse_ready gauge",
		fmt.Sprintf("linkpulse_ready %d", readyVal),
	)
	if len(snap.ReadinessCategories) > 0 {
		lines = append(lines,
			"# HELP linkpulse_readiness_category Failing readiness conditions.",
			"# TYPE linkpulse_readiness_category gauge",
		)
		for _, cat := range snap.ReadinessCategories {
			lines = append(lines, fmt.Sprintf("linkpulse_readiness_category{name=%q,severity=%q} 1", cat.Name, cat.Severity))
		}
	}
	lines = append(lines, "")

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
