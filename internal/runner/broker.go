package runner

import (
	"sync"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// Broker fans progress events out to any number of subscribers. A slow
// subscriber drops events instead of stalling the run.
type Broker struct {
	mu   sync.Mutex
	subs map[chan contracts.ProgressEvent]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan contracts.ProgressEvent]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be
// called when the listener goes away.
func (b *Broker) Subscribe() (<-chan contracts.ProgressEvent, func()) {
	ch := make(chan contracts.ProgressEvent, 32)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, non-blocking.
func (b *Broker) Publish(ev contracts.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// 订阅方堵了就丢, 进度流允许有洞
		}
	}
}
