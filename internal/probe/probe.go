// Package probe holds the capability interfaces the engine measures
// through, plus the default transports. The engine treats every probe
// as a black box that either returns a measurement within its context
// deadline or fails.
package probe

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout marks a probe that ran out of time. The aggregator counts
// these as loss; any other error is a hard probe failure.
var ErrTimeout = errors.New("probe timed out")

// Pinger measures one round trip to the target.
type Pinger interface {
	Ping(ctx context.Context, target string) (time.Duration, error)
}

// ThroughputMeter measures link throughput in each direction.
type ThroughputMeter interface {
	Measure(ctx context.Context) (downMbps, upMbps float64, err error)
}

// AddrResolver looks up the address this link presents to the outside.
type AddrResolver interface {
	ExternalIP(ctx context.Context) (string, error)
}
