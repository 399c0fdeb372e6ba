// Package classify maps rolling metrics to a discrete quality level.
// Classification is a pure function of the metrics and the configured
// thresholds; it never looks at the latency history.
package classify

import (
	"github.com/linkpulsehq/linkpulse/internal/config"
	"github.com/linkpulsehq/linkpulse/pkg/types"
)

type Classifier struct {
	thresholds config.QualityThresholds
}

func New(thresholds config.QualityThresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify returns the quality level for the given metrics. Unknown
// until the first latency attempt has completed. The result is the
// worse of the latency band and the loss band; loss above the hard
// ceiling caps quality at Poor even when latency looks fine.
func (c *Classifier) Classify(m types.RollingMetrics) types.QualityLevel {
	if !m.Measured {
		return types.QualityUnknown
	}

	level := types.Worse(c.latencyBand(m.LatencyMs), c.lossBand(m.LossRatio))

	if m.LossRatio > c.thresholds.LossCeiling {
		level = types.Worse(level, types.QualityPoor)
	}

	return level
}

func (c *Classifier) latencyBand(latencyMs float64) types.QualityLevel {
	t := c.thresholds
	switch {
	case latencyMs <= t.LatencyExcellentMs:
		return types.QualityExcellent
	case latencyMs <= t.LatencyGoodMs:
		return types.QualityGood
	case latencyMs <= t.LatencyFairMs:
		return types.QualityFair
	case latencyMs <= t.LatencyPoorMs:
		return types.QualityPoor
	default:
		return types.QualityCritical
	}
}

func (c *Classifier) lossBand(ratio float64) types.QualityLevel {
	t := c.thresholds
	switch {
	case ratio <= t.LossExcellent:
		return types.QualityExcellent
	case ratio <= t.LossGood:
		return types.QualityGood
	case ratio <= t.LossFair:
		return types.QualityFair
	case ratio <= t.LossPoor:
		return types.QualityPoor
	default:
		return types.QualityCritical
	}
}
