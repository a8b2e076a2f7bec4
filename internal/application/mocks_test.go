package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// --- Mock implementations ---

type mockSettingsStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{values: map[string]string{}}
}

func (m *mockSettingsStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, m.getErr
}

func (m *mockSettingsStore) GetAll(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *mockSettingsStore) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

type mockReadingStore struct {
	mu        sync.Mutex
	readings  []model.Reading
	appendErr error
	nextID    int64
}

func (m *mockReadingStore) Append(_ context.Context, r model.Reading) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.nextID++
	r.ID = m.nextID
	m.readings = append(m.readings, r)
	return r.ID, nil
}

func (m *mockReadingStore) QueryRange(_ context.Context, start, end int64) ([]model.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Reading{}
	for i := len(m.readings) - 1; i >= 0; i-- {
		r := m.readings[i]
		if r.CapturedAtMillis >= start && r.CapturedAtMillis <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReadingStore) Latest(_ context.Context) (*model.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.readings) == 0 {
		return nil, nil
	}
	r := m.readings[len(m.readings)-1]
	return &r, nil
}

func (m *mockReadingStore) setAppendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

func (m *mockReadingStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readings)
}

// mockLocationSource gives every subscription its own input channel and
// records every subscription it served. send delivers to the newest one, so a
// cancelled subscription can never swallow a fix meant for its successor.
type mockLocationSource struct {
	mu        sync.Mutex
	current   chan model.Fix
	intervals []time.Duration
	released  int
	subErr    error
}

func newMockLocationSource() *mockLocationSource {
	return &mockLocationSource{}
}

func (m *mockLocationSource) Subscribe(ctx context.Context, interval time.Duration) (<-chan model.Fix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return nil, m.subErr
	}
	m.intervals = append(m.intervals, interval)

	in := make(chan model.Fix)
	m.current = in

	out := make(chan model.Fix)
	go func() {
		defer func() {
			m.mu.Lock()
			m.released++
			m.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case fix := <-in:
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// send hands fix to the newest subscription, following resubscriptions until
// one accepts it or timeout passes.
func (m *mockLocationSource) send(fix model.Fix, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		in := m.current
		m.mu.Unlock()

		select {
		case in <- fix:
			return true
		case <-deadline.C:
			return false
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (m *mockLocationSource) subscriptions() ([]time.Duration, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.intervals...), m.released
}

// fakeClock returns a settable time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var errDiskFull = errors.New("disk full")
