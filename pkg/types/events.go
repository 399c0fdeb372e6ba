package types

import "time"

type EventType string

const (
	EventTimingMiss    EventType = "TimingMiss"
	EventProbeTimeout  EventType = "ProbeTimeout"
	EventProbeFailure  EventType = "ProbeFailure"
	EventRateLimited   EventType = "RateLimited"
	EventQualityChange EventType = "QualityChange"
	EventConfigReload  EventType = "ConfigReload"
)

type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"ts"`
	Probe     ProbeKind      `json:"probe,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
