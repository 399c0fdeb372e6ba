package events

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/linkpulsehq/linkpulse/pkg/types"
)

type Recorder interface {
	Record(event types.Event)
}

type NoopRecorder struct{}

func (NoopRecorder) Record(event types.Event) {}

type Multi struct {
	recorders []Recorder
}

func NewMulti(recorders ...Recorder) Multi {
	return Multi{recorders: recorders}
}

func (m Multi) Record(event types.Event) {
	for _, rec := range m.recorders {
		if rec != nil {
			rec.Record(event)
		}
	}
}

// LogRecorder writes one line per event to the process logger. This is
// the only sink on the device; nothing buffers or ships events.
type LogRecorder struct {
	logger *log.Logger
}

func NewLogRecorder(logger *log.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(event types.Event) {
	if r.logger == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "event %s", event.Type)
	if event.Probe != "" {
		fmt.Fprintf(&sb, " probe=%s", event.Probe)
	}
	if len(event.Details) > 0 {
		keys := make([]string, 0, len(event.Details))
		for k := range event.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, event.Details[k])
		}
	}
	r.logger.Print(sb.String())
}
