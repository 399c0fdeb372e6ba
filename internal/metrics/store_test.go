package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linkpulsehq/linkpulse/pkg/types"
)

func TestStoreCountsProbesByKind(t *testing.T) {
	store := NewStore()

	store.ObserveProbe(types.ProbeLatency, "")
	store.ObserveProbe(types.ProbeLatency, types.FailTimeout)
	store.ObserveProbe(types.ProbeThroughput, types.FailError)
	store.ObserveProbe(types.ProbeExternalAddr, "")

	snap := store.Snapshot()
	if snap.Latency.Runs != 2 || snap.Latency.Timeouts != 1 || snap.Latency.Failures != 1 {
		t.Fatalf("unexpected latency counters: %+v", snap.Latency)
	}
	if snap.Throughput.Runs != 1 || snap.Throughput.Failures != 1 || snap.Throughput.Timeouts != 0 {
		t.Fatalf("unexpected throughput counters: %+v", snap.Throughput)
	}
	if snap.ExternalAddr.Runs != 1 || snap.ExternalAddr.Failures != 0 {
		t.Fatalf("unexpected external addr counters: %+v", snap.ExternalAddr)
	}
}

func TestStoreTracksEngineCounters(t *testing.T) {
	store := NewStore()
	store.IncTimingMiss()
	store.IncTimingMiss()
	store.IncRateLimited()
	store.IncReload()
	store.ObserveSnapshot(17, types.QualityFair)

	snap := store.Snapshot()
	if snap.TimingMisses != 2 || snap.RateLimited != 1 || snap.Reloads != 1 {
		t.Fatalf("unexpected engine counters: %+v", snap)
	}
	if snap.SnapshotSeq != 17 || snap.Quality != "fair" {
		t.Fatalf("unexpected snapshot gauges: %+v", snap)
	}
}

func TestWritePrometheusRendersCountersAndQuality(t *testing.T) {
	store := NewStore()
	store.ObserveProbe(types.ProbeLatency, types.FailTimeout)
	store.IncTimingMiss()
	store.ObserveSnapshot(3, types.QualityGood)

	var sb strings.Builder
	if err := store.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus returned error: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		`linkpulse_probes_total{kind="latency"} 1`,
		`linkpulse_probe_timeouts_total{kind="latency"} 1`,
		"linkpulse_timing_misses_total 1",
		"linkpulse_snapshot_seq 3",
		`linkpulse_quality_info{quality="good"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWritePrometheusRendersReadiness(t *testing.T) {
	store := NewStore()
	store.ObserveReadiness(false, "snapshot stale", []ReadinessCategory{
		{Name: "SNAPSHOT_STALE", Severity: "warning"},
	})

	var sb strings.Builder
	if err := store.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus returned error: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "linkpulse_ready 0") {
		t.Fatalf("expected ready gauge 0, got:\n%s", out)
	}
	if !strings.Contains(out, `linkpulse_readiness_category{name="SNAPSHOT_STALE",severity="warning"} 1`) {
		t.Fatalf("expected readiness category line, got:\n%s", out)
	}

	store.ObserveReadiness(true, "", nil)
	sb.Reset()
	if err := store.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus returned error: %v", err)
	}
	if !strings.Contains(sb.String(), "linkpulse_ready 1") {
		t.Fatalf("expected ready gauge 1 after recovery")
	}
}

func TestHTTPHandlerMethods(t *testing.T) {
	handler := NewHTTPHandler(NewStore())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "linkpulse_probes_total") {
		t.Fatalf("GET body missing metrics")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", rec.Code)
	}
}
