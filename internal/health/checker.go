// Package health evaluates readiness of the monitoring engine from its
// published snapshots.
package health

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/linkpulsehq/linkpulse/internal/metrics"
	"github.com/linkpulsehq/linkpulse/internal/state"
	"github.com/linkpulsehq/linkpulse/pkg/types"
)

const defaultStaleAfter = time.Minute

const (
	categorySnapshotPending = "SNAPSHOT_PENDING"
	categorySnapshotStale   = "SNAPSHOT_STALE"
	categoryLinkDown        = "LINK_DOWN"
	categoryQualityCritical = "QUALITY_CRITICAL"
)

const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// Checker evaluates readiness conditions for the monitor. Liveness is
// the process being up; readiness additionally requires fresh snapshots
// flowing from the engine.
type Checker struct {
	publisher *state.Publisher
	metrics   *metrics.Store

	mu         sync.RWMutex
	staleAfter time.Duration
}

// NewChecker constructs a readiness checker reading from the snapshot
// publisher. A snapshot older than staleAfter marks the monitor stale.
func NewChecker(publisher *state.Publisher, store *metrics.Store, staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Checker{
		publisher:  publisher,
		metrics:    store,
		staleAfter: staleAfter,
	}
}

// SetStaleAfter adjusts the staleness window, typically after a config
// reload changes the probe cadence.
func (c *Checker) SetStaleAfter(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.staleAfter = d
	c.mu.Unlock()
}

// StaleWindow derives the snapshot staleness threshold from the probe
// cadence. Several consecutive missed cycles are tolerated before the
// monitor reports stale.
func StaleWindow(pingInterval time.Duration) time.Duration {
	w := 10 * pingInterval
	if w < 15*time.Second {
		w = 15 * time.Second
	}
	return w
}

// Ready evaluates all readiness conditions and returns the overall
// status plus the reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	reasons := make([]string, 0, 3)
	categories := make([]metrics.ReadinessCategory, 0, 3)
	appendCategory := func(name, severity string) {
		categories = append(categories, metrics.ReadinessCategory{
			Name:     name,
			Severity: severity,
		})
	}

	c.mu.RLock()
	staleAfter := c.staleAfter
	c.mu.RUnlock()

	snap := c.publisher.Current()
	switch {
	case snap == nil:
		reasons = append(reasons, "no snapshot published yet")
		appendCategory(categorySnapshotPending, severityInfo)
	case now.Sub(snap.GeneratedAt) > staleAfter:
		reasons = append(reasons, fmt.Sprintf("snapshot stale (%s)", now.Sub(snap.GeneratedAt).Round(time.Second)))
		appendCategory(categorySnapshotStale, severityWarning)
	default:
		if snap.Metrics.Measured && !snap.Metrics.Reachable {
			reasons = append(reasons, "ping target unreachable")
			appendCategory(categoryLinkDown, severityCritical)
		}
		if snap.Quality == types.QualityCritical {
			reasons = append(reasons, "connection quality critical")
			appendCategory(categoryQualityCritical, severityWarning)
		}
	}

	ready := len(reasons) == 0
	if c.metrics != nil {
		if ready {
			c.metrics.ObserveReadiness(true, "", nil)
		} else {
			c.metrics.ObserveReadiness(false, strings.Join(reasons, "; "), categories)
		}
	}
	if !ready {
		return false, reasons
	}
	return true, nil
}
