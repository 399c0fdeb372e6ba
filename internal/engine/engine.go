// Package engine drives the monitoring cycle: independent cadence
// timers launch probes, results funnel through a single aggregation
// loop, and every update publishes a fresh immutable snapshot.
package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/linkpulsehq/linkpulse/internal/aggregate"
	"github.com/linkpulsehq/linkpulse/internal/classify"
	"github.com/linkpulsehq/linkpulse/internal/config"
	"github.com/linkpulsehq/linkpulse/internal/events"
	"github.com/linkpulsehq/linkpulse/internal/metrics"
	"github.com/linkpulsehq/linkpulse/internal/probe"
	"github.com/linkpulsehq/linkpulse/internal/state"
	"github.com/linkpulsehq/linkpulse/pkg/types"
)

const resultBuffer = 64

// Dependencies holds the external collaborators the engine probes and
// reports through.
type Dependencies struct {
	Pinger     probe.Pinger
	Throughput probe.ThroughputMeter
	Resolver   probe.AddrResolver

	Publisher *state.Publisher
	Metrics   *metrics.Store
	Events    events.Recorder
	Logger    *log.Logger
}

type Option func(*Engine)

func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine owns the probe schedule and is the sole writer of rolling
// metrics and snapshots.
type Engine struct {
	deps Dependencies
	now  func() time.Time

	runID string

	mu         sync.Mutex
	cfg        config.MonitorConfig
	classifier *classify.Classifier
	limiter    *rate.Limiter
	started    bool
	cancel     context.CancelFunc

	agg         *aggregate.Aggregator
	seq         uint64
	lastQuality types.QualityLevel

	results  chan types.ProbeResult
	cadences []*cadence
	wg       sync.WaitGroup
}

// cadence is one probe kind on its own timer. At most one probe of a
// cadence is in flight; a tick that would overlap is skipped.
type cadence struct {
	kind     types.ProbeKind
	interval func(config.MonitorConfig) time.Duration
	run      func(ctx context.Context, cfg config.MonitorConfig, now time.Time) types.ProbeResult
	inFlight atomic.Bool
}

func New(deps Dependencies, opts ...Option) *Engine {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Events == nil {
		deps.Events = events.NoopRecorder{}
	}
	if deps.Publisher == nil {
		deps.Publisher = state.NewPublisher()
	}

	e := &Engine{
		deps:        deps,
		now:         time.Now,
		lastQuality: types.QualityUnknown,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cadences = []*cadence{
		{
			kind:     types.ProbeLatency,
			interval: func(cfg config.MonitorConfig) time.Duration { return cfg.PingInterval() },
			run:      e.runLatencyProbe,
		},
		{
			kind:     types.ProbeThroughput,
			interval: func(cfg config.MonitorConfig) time.Duration { return cfg.SpeedTestInterval() },
			run:      e.runThroughputProbe,
		},
		{
			kind:     types.ProbeExternalAddr,
			interval: func(cfg config.MonitorConfig) time.Duration { return cfg.IPLookupInterval() },
			run:      e.runAddrProbe,
		},
	}
	return e
}

// RunID identifies this engine run; it changes on every Start.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Publisher exposes the snapshot holder for readers.
func (e *Engine) Publisher() *state.Publisher {
	return e.deps.Publisher
}

// Config returns the active monitor configuration.
func (e *Engine) Config() config.MonitorConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Start validates the configuration and begins the monitoring cycle.
// The only error it returns is a *config.ConfigError; probe failures
// after startup never stop the engine.
func (e *Engine) Start(ctx context.Context, cfg config.MonitorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.cfg = cfg
	e.classifier = classify.New(cfg.Thresholds)
	e.limiter = newLimiter(cfg.RateGovernance)
	e.runID = uuid.NewString()
	e.agg = aggregate.New(cfg.SmoothingAlpha, cfg.LossWindow, cfg.HistorySize)
	e.seq = 0
	e.lastQuality = types.QualityUnknown
	e.results = make(chan types.ProbeResult, resultBuffer)

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.started = true
	e.mu.Unlock()

	e.deps.Logger.Printf("engine starting (run=%s, target=%s, ping=%s, speedtest=%s, ip_lookup=%s)",
		e.runID, cfg.PingTarget, cfg.PingInterval(), cfg.SpeedTestInterval(), cfg.IPLookupInterval())

	e.publish()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runAggregator(runCtx)
	}()

	for _, c := range e.cadences {
		c := c
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runCadence(runCtx, c)
		}()
	}

	return nil
}

// Stop cancels all cadence timers. Probes still in flight run to their
// timeout; their results are discarded rather than applied.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.started = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.deps.Logger.Printf("engine stopped")
}

// Reload swaps the monitor configuration without losing accumulated
// history or rolling metrics. A probe in flight under the old config
// completes and is still applied; the new intervals take effect from
// each cadence's next cycle.
func (e *Engine) Reload(cfg config.MonitorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.classifier = classify.New(cfg.Thresholds)
	e.limiter = newLimiter(cfg.RateGovernance)
	e.mu.Unlock()

	if e.deps.Metrics != nil {
		e.deps.Metrics.IncReload()
	}
	e.deps.Events.Record(types.Event{
		Type:      types.EventConfigReload,
		Timestamp: e.now().UTC(),
		Details:   map[string]any{"target": cfg.PingTarget},
	})
	e.deps.Logger.Printf("config reloaded (target=%s, ping=%s)", cfg.PingTarget, cfg.PingInterval())
	return nil
}

func newLimiter(cfg config.RateGovernanceConfig) *rate.Limiter {
	if !cfg.Enabled || cfg.ProbesPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.ProbesPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(cfg.ProbesPerSecond), burst)
}

func (e *Engine) snapshotCfg() config.MonitorConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) currentLimiter() *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limiter
}

func (e *Engine) runCadence(ctx context.Context, c *cadence) {
	for {
		interval := c.interval(e.snapshotCfg())
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		e.fire(ctx, c)
	}
}

// fire launches one probe for the cadence unless one is already in
// flight or governance denies the slot. Skipped ticks are recorded,
// never queued.
func (e *Engine) fire(ctx context.Context, c *cadence) {
	if !c.inFlight.CompareAndSwap(false, true) {
		if e.deps.Metrics != nil {
			e.deps.Metrics.IncTimingMiss()
		}
		e.deps.Events.Record(types.Event{
			Type:      types.EventTimingMiss,
			Timestamp: e.now().UTC(),
			Probe:     c.kind,
		})
		e.deps.Logger.Printf("timing miss: %s probe still running, tick skipped", c.kind)
		return
	}

	if limiter := e.currentLimiter(); limiter != nil && !limiter.Allow() {
		c.inFlight.Store(false)
		if e.deps.Metrics != nil {
			e.deps.Metrics.IncRateLimited()
		}
		e.deps.Events.Record(types.Event{
			Type:      types.EventRateLimited,
			Timestamp: e.now().UTC(),
			Probe:     c.kind,
		})
		return
	}

	cfg := e.snapshotCfg()
	timeout := cfg.ProbeTimeout(c.interval(cfg))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		res := c.run(probeCtx, cfg, e.now().UTC())
		cancel()

		// Result before in-flight release keeps per-cadence issue
		// order on the results channel.
		select {
		case e.results <- res:
		case <-ctx.Done():
		}
		c.inFlight.Store(false)
	}()
}

func (e *Engine) runLatencyProbe(ctx context.Context, cfg config.MonitorConfig, now time.Time) types.ProbeResult {
	rtt, err := e.deps.Pinger.Ping(ctx, cfg.PingTarget)
	if err != nil {
		return types.FailureResult(now, types.ProbeLatency, failureKind(err))
	}
	return types.LatencyResult(now, float64(rtt.Microseconds())/1000.0)
}

func (e *Engine) runThroughputProbe(ctx context.Context, cfg config.MonitorConfig, now time.Time) types.ProbeResult {
	down, up, err := e.deps.Throughput.Measure(ctx)
	if err != nil {
		return types.FailureResult(now, types.ProbeThroughput, failureKind(err))
	}
	return types.ThroughputResult(now, down, up)
}

func (e *Engine) runAddrProbe(ctx context.Context, cfg config.MonitorConfig, now time.Time) types.ProbeResult {
	ip, err := e.deps.Resolver.ExternalIP(ctx)
	if err != nil {
		return types.FailureResult(now, types.ProbeExternalAddr, failureKind(err))
	}
	return types.ExternalAddrResult(now, ip)
}

func failureKind(err error) types.FailureKind {
	if errors.Is(err, probe.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return types.FailTimeout
	}
	return types.FailError
}

func (e *Engine) runAggregator(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-e.results:
			e.apply(res)
		}
	}
}

// apply is the single write path: fold the result in, reclassify, and
// publish the next snapshot. Runs only on the aggregation goroutine.
func (e *Engine) apply(res types.ProbeResult) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.ObserveProbe(res.Kind, res.Failure)
	}
	if res.Failed() {
		eventType := types.EventProbeFailure
		if res.Failure == types.FailTimeout {
			eventType = types.EventProbeTimeout
		}
		e.deps.Events.Record(types.Event{
			Type:      eventType,
			Timestamp: res.Timestamp,
			Probe:     res.Kind,
		})
		e.deps.Logger.Printf("probe %s failed: %s", res.Kind, res.Failure)
	}

	e.agg.Apply(res)
	e.publish()
}

func (e *Engine) publish() {
	m := e.agg.Metrics()

	e.mu.Lock()
	classifier := e.classifier
	runID := e.runID
	e.mu.Unlock()

	quality := classifier.Classify(m)
	if quality != e.lastQuality {
		e.deps.Events.Record(types.Event{
			Type:      types.EventQualityChange,
			Timestamp: e.now().UTC(),
			Details:   map[string]any{"from": string(e.lastQuality), "to": string(quality)},
		})
		e.deps.Logger.Printf("quality %s -> %s (%s)", e.lastQuality, quality, quality.Label())
		e.lastQuality = quality
	}

	e.seq++
	snap := &types.Snapshot{
		Seq:          e.seq,
		RunID:        runID,
		GeneratedAt:  e.now().UTC(),
		Metrics:      m,
		Quality:      quality,
		QualityLabel: quality.Label(),
		History:      e.agg.History(),
	}
	e.deps.Publisher.Publish(snap)
	if e.deps.Metrics != nil {
		e.deps.Metrics.ObserveSnapshot(snap.Seq, quality)
	}
}
