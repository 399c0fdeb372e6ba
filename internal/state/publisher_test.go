package state

import (
	"sync"
	"testing"

	"github.com/linkpulsehq/linkpulse/pkg/types"
)

func TestPublisherReturnsLatest(t *testing.T) {
	p := NewPublisher()
	if p.Current() != nil {
		t.Fatalf("expected nil before first publish")
	}

	first := &types.Snapshot{Seq: 1, Quality: types.QualityGood}
	p.Publish(first)
	if got := p.Current(); got != first {
		t.Fatalf("expected first snapshot, got %+v", got)
	}

	second := &types.Snapshot{Seq: 2, Quality: types.QualityPoor}
	p.Publish(second)
	if got := p.Current(); got != second {
		t.Fatalf("expected second snapshot, got %+v", got)
	}
}

func TestPublisherIgnoresNil(t *testing.T) {
	p := NewPublisher()
	snap := &types.Snapshot{Seq: 7}
	p.Publish(snap)
	p.Publish(nil)
	if got := p.Current(); got != snap {
		t.Fatalf("nil publish must not clear the snapshot")
	}
}

func TestPublisherConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	p := NewPublisher()
	p.Publish(&types.Snapshot{Seq: 0, Quality: types.QualityUnknown})

	const writes = 1000
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= writes; i++ {
			p.Publish(&types.Snapshot{Seq: i, Quality: types.QualityGood, RunID: "run"})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeq uint64
			for i := 0; i < writes; i++ {
				snap := p.Current()
				if snap == nil {
					t.Errorf("reader saw nil snapshot after first publish")
					return
				}
				if snap.Seq < lastSeq {
					t.Errorf("sequence went backwards: %d after %d", snap.Seq, lastSeq)
					return
				}
				lastSeq = snap.Seq
				if snap.Seq > 0 && snap.RunID != "run" {
					t.Errorf("torn snapshot: seq %d without run id", snap.Seq)
					return
				}
			}
		}()
	}

	wg.Wait()
}
