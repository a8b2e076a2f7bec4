package application

import (
	"sync"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// defaultSubscriberBuffer is the per-subscriber queue depth used when the
// caller does not specify one.
const defaultSubscriberBuffer = 8

// LiveReadings is a latest-value broadcast of saved readings. New subscribers
// immediately receive the most recent reading, then every later publication
// in publish order. Publish never blocks: a subscriber whose buffer is full
// loses its oldest pending reading.
type LiveReadings struct {
	mu     sync.Mutex
	latest model.Reading
	has    bool
	subs   map[chan model.Reading]struct{}
	buffer int
	closed bool
}

// NewLiveReadings creates a broadcast whose subscribers each buffer up to
// buffer readings. Values below 1 select the default depth.
func NewLiveReadings(buffer int) *LiveReadings {
	if buffer < 1 {
		buffer = defaultSubscriberBuffer
	}
	return &LiveReadings{
		subs:   make(map[chan model.Reading]struct{}),
		buffer: buffer,
	}
}

// Publish records r as the latest reading and offers it to every subscriber.
func (l *LiveReadings) Publish(r model.Reading) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.latest = r
	l.has = true

	for ch := range l.subs {
		offer(ch, r)
	}
}

// Latest returns the most recently published reading, if any.
func (l *LiveReadings) Latest() (model.Reading, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.has
}

// Subscribe registers a new observer. The returned cancel function removes
// the subscription and closes the channel; it is safe to call more than once.
func (l *LiveReadings) Subscribe() (<-chan model.Reading, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan model.Reading, l.buffer)
	if l.closed {
		close(ch)
		return ch, func() {}
	}

	if l.has {
		ch <- l.latest
	}
	l.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[ch]; ok {
				delete(l.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (l *LiveReadings) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Close ends every subscription. Later publications are ignored.
func (l *LiveReadings) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}
}

// offer delivers r without blocking, evicting the oldest queued value when
// the buffer is full. Callers hold l.mu, so no other sender races on ch.
func offer(ch chan model.Reading, r model.Reading) {
	select {
	case ch <- r:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- r:
	default:
	}
}
