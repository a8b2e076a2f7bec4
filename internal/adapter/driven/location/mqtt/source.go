// Package mqtt provides a location source fed by JSON fixes published to an
// MQTT topic.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/geotrack/geotrack/internal/domain/model"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// Config selects the broker and topic.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// Source subscribes to a topic per Subscribe call. Each subscription owns
// its own client connection.
type Source struct {
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	newClient func(*paho.ClientOptions) paho.Client
}

// New creates a Source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{cfg: cfg, logger: logger, now: time.Now, newClient: paho.NewClient}
}

// fixPayload is the wire form of a published fix. Time is optional and
// defaults to the receive time.
type fixPayload struct {
	Lat  *float64   `json:"lat"`
	Lon  *float64   `json:"lon"`
	Time *time.Time `json:"time,omitempty"`
}

// DecodeFix parses and validates one published fix.
func DecodeFix(payload []byte, received time.Time) (model.Fix, error) {
	var p fixPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.Fix{}, fmt.Errorf("decode fix: %w: %w", model.ErrValidation, err)
	}
	if p.Lat == nil || p.Lon == nil {
		return model.Fix{}, fmt.Errorf("decode fix: %w: lat and lon are required", model.ErrValidation)
	}
	if *p.Lat < -90 || *p.Lat > 90 || *p.Lon < -180 || *p.Lon > 180 {
		return model.Fix{}, fmt.Errorf("decode fix: %w: coordinates out of range (%f, %f)", model.ErrValidation, *p.Lat, *p.Lon)
	}

	fix := model.Fix{Latitude: *p.Lat, Longitude: *p.Lon, Time: received}
	if p.Time != nil && !p.Time.IsZero() {
		fix.Time = *p.Time
	}
	return fix, nil
}

// Subscribe connects to the broker and forwards at most one fix per
// interval. Of the fixes arriving faster, only the newest is kept and it is
// delivered when the interval elapses. The channel is closed and the
// client disconnected once ctx ends.
func (s *Source) Subscribe(ctx context.Context, interval time.Duration) (<-chan model.Fix, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("subscribe mqtt location: interval %s: %w", interval, model.ErrConfig)
	}

	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(fmt.Sprintf("%s-%d", s.cfg.ClientID, s.now().UnixNano())).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn("mqtt connection lost", "broker", s.cfg.Broker, "error", err)
		})

	client := s.newClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", s.cfg.Broker, err)
	}

	fwd := newForwarder(interval, s.now)
	handler := func(_ paho.Client, msg paho.Message) {
		fix, err := DecodeFix(msg.Payload(), s.now())
		if err != nil {
			s.logger.Warn("invalid fix payload", "topic", msg.Topic(), "error", err)
			return
		}
		fwd.offer(fix)
	}

	if err := wait(client.Subscribe(s.cfg.Topic, 0, handler)); err != nil {
		client.Disconnect(disconnectQuiesce)
		return nil, fmt.Errorf("subscribe mqtt %s: %w", s.cfg.Topic, err)
	}
	s.logger.Info("mqtt location subscribed", "broker", s.cfg.Broker, "topic", s.cfg.Topic, "interval", interval)

	go func() {
		<-ctx.Done()
		if err := wait(client.Unsubscribe(s.cfg.Topic)); err != nil {
			s.logger.Debug("mqtt unsubscribe failed", "error", err)
		}
		client.Disconnect(disconnectQuiesce)
		fwd.close()
	}()

	return fwd.out, nil
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("timed out")
	}
	return token.Error()
}

// forwarder rate-limits fixes onto a one-slot channel. A fix arriving within
// interval of the last release is held, and a newer arrival replaces it; the
// held fix is released once the interval elapses. The newest fix also
// replaces one not yet consumed from the channel.
type forwarder struct {
	mu       sync.Mutex
	out      chan model.Fix
	interval time.Duration
	now      func() time.Time
	after    func(time.Duration, func()) (stop func() bool)
	last     time.Time
	pending  *model.Fix
	stop     func() bool
	gen      uint64
	closed   bool
}

func newForwarder(interval time.Duration, now func() time.Time) *forwarder {
	return &forwarder{
		out:      make(chan model.Fix, 1),
		interval: interval,
		now:      now,
		after: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
	}
}

// offer reports whether fix was released immediately. A held fix is released
// later by flush.
func (f *forwarder) offer(fix model.Fix) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	now := f.now()
	if f.last.IsZero() || now.Sub(f.last) >= f.interval {
		f.cancelFlush()
		f.release(fix, now)
		return true
	}

	f.pending = &fix
	if f.stop == nil {
		gen := f.gen
		f.stop = f.after(f.last.Add(f.interval).Sub(now), func() { f.flush(gen) })
	}
	return false
}

// flush releases the held fix scheduled under gen. A flush that lost the
// race with cancelFlush sees a newer gen and does nothing.
func (f *forwarder) flush(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		return
	}
	f.stop = nil
	if f.closed || f.pending == nil {
		return
	}
	fix := *f.pending
	f.pending = nil
	f.release(fix, f.now())
}

// release puts fix in the slot, evicting an unread one. Callers hold f.mu.
func (f *forwarder) release(fix model.Fix, now time.Time) {
	select {
	case f.out <- fix:
	default:
		select {
		case <-f.out:
		default:
		}
		f.out <- fix
	}
	f.last = now
}

func (f *forwarder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.cancelFlush()
	close(f.out)
}

// cancelFlush drops the held fix and its scheduled flush. Callers hold f.mu.
func (f *forwarder) cancelFlush() {
	f.pending = nil
	if f.stop != nil {
		f.stop()
		f.stop = nil
	}
	f.gen++
}
