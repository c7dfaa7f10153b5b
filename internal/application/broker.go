package application

import (
	"sync"

	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

// SnapshotBroker fans the full document state out to every subscriber of a
// chart. Channels hold a single slot; a slow subscriber only ever misses
// intermediate states, never the latest one.
type SnapshotBroker struct {
	mu   sync.Mutex
	subs map[uint]map[chan domain.Snapshot]struct{}
}

func NewSnapshotBroker() *SnapshotBroker {
	return &SnapshotBroker{subs: make(map[uint]map[chan domain.Snapshot]struct{})}
}

// Subscribe registers a watcher and queues the seed snapshot on the new
// channel only; watchers already attached are not re-notified.
func (b *SnapshotBroker) Subscribe(chartID uint, seed domain.Snapshot) (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 1)
	ch <- seed

	b.mu.Lock()
	if b.subs[chartID] == nil {
		b.subs[chartID] = make(map[chan domain.Snapshot]struct{})
	}
	b.subs[chartID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[chartID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, chartID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *SnapshotBroker) Publish(snap domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[snap.ChartID] {
		select {
		case ch <- snap:
		default:
			// drop the stale state, keep the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
