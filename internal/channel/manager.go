package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/metrics"
)

// DeliveryPolicy controls how outbound messages reach channels.
type DeliveryPolicy struct {
	MaxConcurrentSends int
	// RetryMaxAttempts counts the first try; 1 disables retries.
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration
	RetryMaxBackoff  time.Duration
	// RateLimitPerSecond caps sends per channel; 0 means unlimited.
	RateLimitPerSecond float64
	// DedupWindow drops a request id already claimed within the window.
	DedupWindow time.Duration
}

// DefaultDeliveryPolicy returns the policy used by NewManager.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		MaxConcurrentSends: 16,
		RetryMaxAttempts:   3,
		RetryBaseBackoff:   200 * time.Millisecond,
		RetryMaxBackoff:    2 * time.Second,
		RateLimitPerSecond: 20,
		DedupWindow:        time.Minute,
	}
}

func (p DeliveryPolicy) normalized() DeliveryPolicy {
	if p.MaxConcurrentSends <= 0 {
		p.MaxConcurrentSends = 1
	}
	if p.RetryMaxAttempts <= 0 {
		p.RetryMaxAttempts = 1
	}
	if p.RetryBaseBackoff <= 0 {
		p.RetryBaseBackoff = 100 * time.Millisecond
	}
	if p.RetryMaxBackoff < p.RetryBaseBackoff {
		p.RetryMaxBackoff = p.RetryBaseBackoff
	}
	return p
}

// Manager coordinates the bridge channels and delivers outbound messages.
type Manager struct {
	channels      map[string]Channel
	limiters      map[string]*rate.Limiter
	bus           *bus.MessageBus
	policy        DeliveryPolicy
	sendSem       chan struct{}
	runtimeMetric *metrics.RuntimeMetrics
	mu            sync.RWMutex

	dedupMu   sync.Mutex
	delivered map[string]time.Time
}

// NewManager creates a channel manager with the default delivery policy.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return NewManagerWithPolicy(msgBus, DefaultDeliveryPolicy())
}

// NewManagerWithPolicy creates a channel manager with an explicit policy.
func NewManagerWithPolicy(msgBus *bus.MessageBus, policy DeliveryPolicy) *Manager {
	policy = policy.normalized()
	return &Manager{
		channels:  make(map[string]Channel),
		limiters:  make(map[string]*rate.Limiter),
		bus:       msgBus,
		policy:    policy,
		sendSem:   make(chan struct{}, policy.MaxConcurrentSends),
		delivered: make(map[string]time.Time),
	}
}

// Register adds a channel.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
	if m.policy.RateLimitPerSecond > 0 {
		m.limiters[ch.Name()] = rate.NewLimiter(rate.Limit(m.policy.RateLimitPerSecond), 1)
	}
}

// SetRuntimeMetrics attaches a recorder used for outbound send metrics.
func (m *Manager) SetRuntimeMetrics(recorder *metrics.RuntimeMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtimeMetric = recorder
}

// Get returns a registered channel.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns registered channel names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll starts all channels, each in its own goroutine.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		go func(n string, c Channel) {
			slog.Info("starting channel", "name", n)
			if err := c.Start(ctx); err != nil {
				slog.Error("channel error", "name", n, "error", err)
			}
		}(name, ch)
	}
}

// RouteOutbound sends outbound messages to their channels until ctx is done
// or the bus is closed.
func (m *Manager) RouteOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.bus.Outbound():
			if !ok {
				return
			}
			if msg == nil {
				continue
			}

			m.mu.RLock()
			ch, found := m.channels[msg.Channel]
			limiter := m.limiters[msg.Channel]
			recorder := m.runtimeMetric
			m.mu.RUnlock()

			if !found {
				slog.Warn("outbound for unknown channel dropped", "request_id", msg.RequestID, "channel", msg.Channel)
				continue
			}
			if !m.claim(msg.RequestID) {
				slog.Debug("duplicate outbound dropped", "request_id", msg.RequestID, "channel", msg.Channel)
				continue
			}

			select {
			case m.sendSem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(c Channel, outbound *bus.OutboundMessage) {
				defer func() { <-m.sendSem }()
				err := m.deliver(ctx, c, limiter, outbound)
				if err != nil {
					m.release(outbound.RequestID)
				}
				m.record(recorder, outbound, err)
			}(ch, msg)
		}
	}
}

// StopAll stops all channels.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			slog.Warn("stop channel failed", "name", name, "error", err)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, c Channel, limiter *rate.Limiter, msg *bus.OutboundMessage) error {
	backoff := m.policy.RetryBaseBackoff
	var err error
	for attempt := 1; attempt <= m.policy.RetryMaxAttempts; attempt++ {
		if limiter != nil {
			if waitErr := limiter.Wait(ctx); waitErr != nil {
				return waitErr
			}
		}
		if err = c.Send(ctx, msg); err == nil {
			return nil
		}
		if attempt == m.policy.RetryMaxAttempts {
			break
		}
		slog.Warn("outbound send failed, retrying",
			"request_id", msg.RequestID,
			"channel", msg.Channel,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, m.policy.RetryMaxBackoff)
	}
	return err
}

func (m *Manager) record(recorder *metrics.RuntimeMetrics, msg *bus.OutboundMessage, err error) {
	if recorder != nil {
		snapshot, recordErr := recorder.RecordChannelSend(err == nil)
		if recordErr != nil {
			slog.Warn("record runtime metrics failed", "scope", "channel", "error", recordErr)
		} else if err != nil {
			slog.Error("send outbound failed",
				"request_id", msg.RequestID,
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"error", err,
				"channel_send_attempts", snapshot.Channel.SendAttempts,
				"channel_send_failure_ratio", snapshot.Channel.FailureRatio(),
			)
			return
		}
	}
	if err != nil {
		slog.Error("send outbound failed", "request_id", msg.RequestID, "channel", msg.Channel, "chat_id", msg.ChatID, "error", err)
	}
}

// claim reserves requestID for delivery. It reports false when the id was
// claimed within the dedup window. Empty ids are never deduplicated.
func (m *Manager) claim(requestID string) bool {
	if requestID == "" || m.policy.DedupWindow <= 0 {
		return true
	}
	m.dedupMu.Lock()
	defer m.dedupMu.Unlock()

	now := time.Now()
	for id, at := range m.delivered {
		if now.Sub(at) > m.policy.DedupWindow {
			delete(m.delivered, id)
		}
	}
	if _, ok := m.delivered[requestID]; ok {
		return false
	}
	m.delivered[requestID] = now
	return true
}

// release forgets a failed delivery so the same request may be sent again.
func (m *Manager) release(requestID string) {
	if requestID == "" {
		return
	}
	m.dedupMu.Lock()
	delete(m.delivered, requestID)
	m.dedupMu.Unlock()
}
