package classify

import (
	"testing"

	"github.com/linkpulsehq/linkpulse/internal/config"
	"github.com/linkpulsehq/linkpulse/pkg/types"
)

func defaultClassifier() *Classifier {
	return New(config.DefaultMonitor().Thresholds)
}

func metrics(latencyMs, lossRatio float64) types.RollingMetrics {
	return types.RollingMetrics{
		LatencyMs: latencyMs,
		LossRatio: lossRatio,
		Measured:  true,
		Reachable: lossRatio < 1,
	}
}

func TestClassifyUnknownUntilMeasured(t *testing.T) {
	c := defaultClassifier()
	if got := c.Classify(types.RollingMetrics{}); got != types.QualityUnknown {
		t.Fatalf("expected unknown before first measurement, got %s", got)
	}
}

func TestClassifyLatencyBands(t *testing.T) {
	c := defaultClassifier()
	cases := []struct {
		latencyMs float64
		want      types.QualityLevel
	}{
		{10, types.QualityExcellent},
		{20, types.QualityExcellent},
		{25, types.QualityGood},
		{45, types.QualityFair},
		{90, types.QualityPoor},
		{250, types.QualityCritical},
	}
	for _, tc := range cases {
		if got := c.Classify(metrics(tc.latencyMs, 0)); got != tc.want {
			t.Fatalf("latency %vms: got %s, want %s", tc.latencyMs, got, tc.want)
		}
	}
}

func TestClassifyLossDowngrades(t *testing.T) {
	c := defaultClassifier()

	// Excellent latency but mild loss lands in the loss band.
	if got := c.Classify(metrics(10, 0.004)); got != types.QualityFair {
		t.Fatalf("expected loss band fair, got %s", got)
	}

	// Loss above the hard ceiling forces at most Poor even with
	// pristine latency.
	got := c.Classify(metrics(5, 0.10))
	if got.Rank() < types.QualityPoor.Rank() {
		t.Fatalf("loss above ceiling must cap quality at poor, got %s", got)
	}
}

func TestClassifyWorstBandWins(t *testing.T) {
	c := defaultClassifier()
	// Critical latency beats excellent loss.
	if got := c.Classify(metrics(500, 0)); got != types.QualityCritical {
		t.Fatalf("expected critical, got %s", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := defaultClassifier()
	m := metrics(42, 0.003)
	first := c.Classify(m)
	for i := 0; i < 100; i++ {
		if got := c.Classify(m); got != first {
			t.Fatalf("classification changed across calls: %s then %s", first, got)
		}
	}
}
