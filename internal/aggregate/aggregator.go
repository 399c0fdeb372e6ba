// Package aggregate folds raw probe results into rolling link metrics
// and the bounded latency history behind the graph. The aggregator is
// single-writer: the engine applies results one at a time from its
// aggregation loop.
package aggregate

import (
	"github.com/linkpulsehq/linkpulse/pkg/types"
)

type Aggregator struct {
	alpha      float64
	lossWindow int
	capacity   int

	metrics types.RollingMetrics

	emaInit    bool
	jitterInit bool
	lastRTT    float64
	hasLastRTT bool

	// losses holds the last lossWindow attempt outcomes, true for a
	// lost ping. Shorter than the window until it fills at startup.
	losses  []bool
	history []types.LatencySample
}

func New(alpha float64, lossWindow, historySize int) *Aggregator {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	if lossWindow <= 0 {
		lossWindow = 1
	}
	if historySize <= 0 {
		historySize = 1
	}
	return &Aggregator{
		alpha:      alpha,
		lossWindow: lossWindow,
		capacity:   historySize,
		losses:     make([]bool, 0, lossWindow),
		history:    make([]types.LatencySample, 0, historySize),
	}
}

// Apply folds one probe result into the rolling state and returns the
// updated metrics value. Failed latency probes count as loss and leave
// a timeout marker in the history; failed throughput or address
// lookups leave the previous value untouched rather than blanking it.
func (a *Aggregator) Apply(res types.ProbeResult) types.RollingMetrics {
	switch res.Kind {
	case types.ProbeLatency:
		a.applyLatency(res)
	case types.ProbeLoss:
		a.applyLoss(res)
	case types.ProbeThroughput:
		if !res.Failed() {
			a.metrics.DownloadMbps = res.DownloadMbps
			a.metrics.UploadMbps = res.UploadMbps
			a.metrics.HasThroughput = true
			a.metrics.ThroughputUpdated = res.Timestamp
		}
	case types.ProbeExternalAddr:
		if !res.Failed() {
			a.metrics.ExternalIP = res.IP
			a.metrics.HasExternalIP = true
			a.metrics.ExternalIPUpdated = res.Timestamp
		}
	}
	return a.metrics
}

func (a *Aggregator) applyLatency(res types.ProbeResult) {
	if res.Failed() {
		a.recordAttempt(true)
		a.history = appendBounded(a.history, a.capacity, types.LatencySample{
			Timestamp: res.Timestamp,
			Timeout:   true,
		})
		a.metrics.Measured = true
		a.metrics.LossUpdated = res.Timestamp
		a.recomputeLoss()
		return
	}

	sample := res.RTTMilliseconds
	if sample < 0 {
		sample = 0
	}

	if !a.emaInit {
		a.metrics.LatencyMs = sample
		a.emaInit = true
	} else {
		a.metrics.LatencyMs = a.alpha*sample + (1-a.alpha)*a.metrics.LatencyMs
	}

	if a.hasLastRTT {
		delta := sample - a.lastRTT
		if delta < 0 {
			delta = -delta
		}
		if !a.jitterInit {
			a.metrics.JitterMs = delta
			a.jitterInit = true
		} else {
			a.metrics.JitterMs = a.alpha*delta + (1-a.alpha)*a.metrics.JitterMs
		}
	}
	a.lastRTT = sample
	a.hasLastRTT = true

	a.recordAttempt(false)
	a.history = appendBounded(a.history, a.capacity, types.LatencySample{
		Timestamp:       res.Timestamp,
		RTTMilliseconds: sample,
	})
	a.metrics.Measured = true
	a.metrics.LatencyUpdated = res.Timestamp
	a.metrics.LossUpdated = res.Timestamp
	a.recomputeLoss()
}

func (a *Aggregator) applyLoss(res types.ProbeResult) {
	if res.Failed() {
		a.recordAttempt(true)
	} else {
		received := res.Received
		if received > res.Sent {
			received = res.Sent
		}
		for i := 0; i < received; i++ {
			a.recordAttempt(false)
		}
		for i := 0; i < res.Sent-received; i++ {
			a.recordAttempt(true)
		}
	}
	a.metrics.Measured = true
	a.metrics.LossUpdated = res.Timestamp
	a.recomputeLoss()
}

func (a *Aggregator) recordAttempt(lost bool) {
	a.losses = append(a.losses, lost)
	for len(a.losses) > a.lossWindow {
		a.losses = a.losses[1:]
	}
}

func (a *Aggregator) recomputeLoss() {
	if len(a.losses) == 0 {
		a.metrics.LossRatio = 0
		a.metrics.Reachable = false
		return
	}
	lost := 0
	for _, l := range a.losses {
		if l {
			lost++
		}
	}
	a.metrics.LossRatio = float64(lost) / float64(len(a.losses))
	a.metrics.Reachable = lost < len(a.losses)
}

// Metrics returns the current rolling metrics value.
func (a *Aggregator) Metrics() types.RollingMetrics {
	return a.metrics
}

// History returns a copy of the latency ring, oldest first.
func (a *Aggregator) History() []types.LatencySample {
	out := make([]types.LatencySample, len(a.history))
	copy(out, a.history)
	return out
}

// Reset drops all accumulated state. Reload deliberately does not call
// this; it exists for a full metric reset only.
func (a *Aggregator) Reset() {
	a.metrics = types.RollingMetrics{}
	a.emaInit = false
	a.jitterInit = false
	a.hasLastRTT = false
	a.lastRTT = 0
	a.losses = a.losses[:0]
	a.history = a.history[:0]
}

func appendBounded(samples []types.LatencySample, capacity int, sample types.LatencySample) []types.LatencySample {
	samples = append(samples, sample)
	for len(samples) > capacity {
		samples = samples[1:]
	}
	return samples
}
