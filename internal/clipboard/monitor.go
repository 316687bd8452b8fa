package clipboard

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipvault/pkg/types"
)

const (
	// DefaultPollInterval is the cadence of clipboard checks.
	DefaultPollInterval = 500 * time.Millisecond

	// stopJoinTimeout bounds the wait for the poll goroutine on Stop. The
	// goroutine may still be blocked in a platform read when it elapses;
	// Stop reports success once the stop request has been delivered.
	stopJoinTimeout = 2 * time.Second

	eventBufferSize = 64
)

var (
	ErrAlreadyRunning = errors.New("clipboard monitor is already running")
	ErrNotRunning     = errors.New("clipboard monitor is not running")
)

// Event is a detected clipboard change.
type Event struct {
	Content *Content
}

// PollingMonitor polls a Reader on a fixed cadence and publishes change
// events on a bounded channel. Change detection for text compares content
// hashes; images are always forwarded and deduplicated one layer up, where
// the encoded bytes are hashed once instead of on every poll.
type PollingMonitor struct {
	reader   Reader
	interval time.Duration
	events   chan Event

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// lastHash is only touched by the poll goroutine.
	lastHash string
}

// NewMonitor creates a monitor over the given reader. A non-positive
// interval falls back to DefaultPollInterval.
func NewMonitor(reader Reader, interval time.Duration) *PollingMonitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingMonitor{
		reader:   reader,
		interval: interval,
		events:   make(chan Event, eventBufferSize),
	}
}

// Events returns the channel change events are published on. The channel is
// never closed; consumers exit via their own cancellation.
func (m *PollingMonitor) Events() <-chan Event {
	return m.events
}

// Start launches the background poll loop. Returns ErrAlreadyRunning if the
// monitor is active.
func (m *PollingMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(m.stopCh, m.doneCh)

	slog.Info("clipboard monitoring started", "backend", m.reader.Name(), "interval", m.interval)
	return nil
}

// Stop signals the poll loop to exit and waits up to stopJoinTimeout for it.
// Returns ErrNotRunning if the monitor is stopped; otherwise nil, even when
// the goroutine did not exit within the join window (best-effort).
func (m *PollingMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}

	close(m.stopCh)
	select {
	case <-m.doneCh:
	case <-time.After(stopJoinTimeout):
		slog.Warn("clipboard monitor did not exit within join timeout")
	}

	m.running = false
	slog.Info("clipboard monitoring stopped")
	return nil
}

// IsRunning reports whether the poll loop is active.
func (m *PollingMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *PollingMonitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll is the fault isolation boundary: reader failures are logged and the
// loop continues with the next tick.
func (m *PollingMonitor) poll() {
	content, err := m.reader.Read()
	if err != nil {
		slog.Debug("clipboard read failed", "err", err)
		return
	}
	if content == nil || len(content.Data) == 0 {
		return
	}

	if !m.hasChanged(content) {
		return
	}

	select {
	case m.events <- Event{Content: content}:
	default:
		slog.Warn("event buffer full, dropping clipboard change", "type", content.Type)
	}
}

func (m *PollingMonitor) hasChanged(c *Content) bool {
	switch c.Type {
	case types.TypeText, types.TypeLink:
		h := hashBytes(c.Data)
		if h == m.lastHash {
			return false
		}
		m.lastHash = h
		return true
	case types.TypeImage:
		// Hashing image bytes every poll is too expensive; forward and let
		// the service perform the authoritative hash-based dedup.
		m.lastHash = ""
		return true
	}
	return false
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
