package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnapshotJSONContract(t *testing.T) {
	payload := []byte(`{
        "seq": 42,
        "run_id": "run-abc",
        "generated_at": "2025-11-03T10:15:00Z",
        "metrics": {
            "latency_ms": 21.5,
            "jitter_ms": 1.2,
            "loss_ratio": 0.05,
            "download_mbps": 50.0,
            "upload_mbps": 10.0,
            "external_ip": "203.0.113.9",
            "measured": true,
            "has_throughput": true,
            "has_external_ip": true,
            "reachable": true
        },
        "quality": "good",
        "quality_label": "All Systems Go!",
        "history": [
            {"ts": "2025-11-03T10:14:58Z", "rtt_ms": 20.1},
            {"ts": "2025-11-03T10:14:59Z", "rtt_ms": 0, "timeout": true}
        ]
    }`)

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	if snap.Seq != 42 || snap.RunID != "run-abc" {
		t.Fatalf("unexpected identity fields: %+v", snap)
	}
	if !snap.GeneratedAt.Equal(time.Date(2025, 11, 3, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected generated_at: %s", snap.GeneratedAt)
	}
	if snap.Quality != QualityGood {
		t.Fatalf("unexpected quality: %s", snap.Quality)
	}
	if snap.Metrics.LossRatio != 0.05 || !snap.Metrics.Measured {
		t.Fatalf("unexpected metrics: %+v", snap.Metrics)
	}
	if len(snap.History) != 2 {
		t.Fatalf("expected two history samples, got %d", len(snap.History))
	}
	if !snap.History[1].Timeout {
		t.Fatalf("expected second sample to be a timeout marker")
	}
}

func TestWorseOrdersBySeverity(t *testing.T) {
	cases := []struct {
		a, b, want QualityLevel
	}{
		{QualityExcellent, QualityGood, QualityGood},
		{QualityCritical, QualityFair, QualityCritical},
		{QualityUnknown, QualityExcellent, QualityExcellent},
		{QualityPoor, QualityPoor, QualityPoor},
	}
	for _, tc := range cases {
		if got := Worse(tc.a, tc.b); got != tc.want {
			t.Fatalf("Worse(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
		if got := Worse(tc.b, tc.a); got != tc.want {
			t.Fatalf("Worse(%s, %s) = %s, want %s", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestQualityLabelsCoverAllLevels(t *testing.T) {
	levels := []QualityLevel{
		QualityUnknown, QualityExcellent, QualityGood,
		QualityFair, QualityPoor, QualityCritical,
	}
	seen := make(map[string]QualityLevel, len(levels))
	for _, level := range levels {
		label := level.Label()
		if label == "" {
			t.Fatalf("level %s has no label", level)
		}
		if prev, dup := seen[label]; dup {
			t.Fatalf("levels %s and %s share label %q", prev, level, label)
		}
		seen[label] = level
	}
}

func TestFailureResultCarriesProbeKind(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	res := FailureResult(ts, ProbeLatency, FailTimeout)
	if !res.Failed() {
		t.Fatalf("expected failure result to report Failed")
	}
	if res.Kind != ProbeLatency || res.Failure != FailTimeout {
		t.Fatalf("unexpected failure result: %+v", res)
	}

	ok := LatencyResult(ts, 20.5)
	if ok.Failed() {
		t.Fatalf("latency result should not report Failed")
	}
}
