package types

import "time"

// ProbeKind identifies which measurement a ProbeResult carries.
type ProbeKind string

const (
	ProbeLatency      ProbeKind = "latency"
	ProbeLoss         ProbeKind = "loss"
	ProbeThroughput   ProbeKind = "throughput"
	ProbeExternalAddr ProbeKind = "external_addr"
)

// FailureKind distinguishes a probe that ran out of time from one that
// errored outright. Empty means the probe succeeded.
type FailureKind string

const (
	FailTimeout FailureKind = "timeout"
	FailError   FailureKind = "error"
)

// ProbeResult is the outcome of a single probe invocation. Exactly the
// fields for its Kind are populated; Failure is set instead when the
// probe did not produce a measurement.
type ProbeResult struct {
	Kind      ProbeKind   `json:"kind"`
	Timestamp time.Time   `json:"ts"`
	Failure   FailureKind `json:"failure,omitempty"`

	RTTMilliseconds float64 `json:"rtt_ms,omitempty"`

	Sent     int `json:"sent,omitempty"`
	Received int `json:"received,omitempty"`

	DownloadMbps float64 `json:"download_mbps,omitempty"`
	UploadMbps   float64 `json:"upload_mbps,omitempty"`

	IP string `json:"ip,omitempty"`
}

// Failed reports whether the result records a failure rather than a
// measurement.
func (r ProbeResult) Failed() bool {
	return r.Failure != ""
}

func LatencyResult(ts time.Time, rttMs float64) ProbeResult {
	return ProbeResult{Kind: ProbeLatency, Timestamp: ts, RTTMilliseconds: rttMs}
}

func LossResult(ts time.Time, sent, received int) ProbeResult {
	return ProbeResult{Kind: ProbeLoss, Timestamp: ts, Sent: sent, Received: received}
}

func ThroughputResult(ts time.Time, downMbps, upMbps float64) ProbeResult {
	return ProbeResult{Kind: ProbeThroughput, Timestamp: ts, DownloadMbps: downMbps, UploadMbps: upMbps}
}

func ExternalAddrResult(ts time.Time, ip string) ProbeResult {
	return ProbeResult{Kind: ProbeExternalAddr, Timestamp: ts, IP: ip}
}

func FailureResult(ts time.Time, kind ProbeKind, failure FailureKind) ProbeResult {
	return ProbeResult{Kind: kind, Timestamp: ts, Failure: failure}
}
