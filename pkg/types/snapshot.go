package types

import "time"

// RollingMetrics holds the current smoothed view of the link. It is
// replaced as a unit on every aggregation step and never mutated after
// publication.
type RollingMetrics struct {
	LatencyMs float64 `json:"latency_ms"`
	JitterMs  float64 `json:"jitter_ms"`
	LossRatio float64 `json:"loss_ratio"`

	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	ExternalIP   string  `json:"external_ip,omitempty"`

	// Measured flips once the first latency probe attempt has
	// completed, success or timeout. Quality stays Unknown before
	// that.
	Measured      bool `json:"measured"`
	HasThroughput bool `json:"has_throughput"`
	HasExternalIP bool `json:"has_external_ip"`

	// Reachable is false while the entire loss window is timeouts.
	Reachable bool `json:"reachable"`

	LatencyUpdated    time.Time `json:"latency_updated,omitempty"`
	LossUpdated       time.Time `json:"loss_updated,omitempty"`
	ThroughputUpdated time.Time `json:"throughput_updated,omitempty"`
	ExternalIPUpdated time.Time `json:"external_ip_updated,omitempty"`
}

// LatencySample is one entry in the history ring. Timeout samples mark
// lost pings so the graph can show gaps instead of dropping them.
type LatencySample struct {
	Timestamp       time.Time `json:"ts"`
	RTTMilliseconds float64   `json:"rtt_ms"`
	Timeout         bool      `json:"timeout,omitempty"`
}

// Snapshot is the immutable view published once per aggregation cycle.
// The sequence number increases by one per publish within a run.
type Snapshot struct {
	Seq          uint64          `json:"seq"`
	RunID        string          `json:"run_id"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Metrics      RollingMetrics  `json:"metrics"`
	Quality      QualityLevel    `json:"quality"`
	QualityLabel string          `json:"quality_label"`
	History      []LatencySample `json:"history"`
}
