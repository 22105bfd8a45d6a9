package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runtimeMetricsFileName = "runtime_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// RuntimeSnapshot contains aggregated runtime metrics for commands and channel sends.
type RuntimeSnapshot struct {
	UpdatedAt time.Time    `json:"updated_at"`
	Command   CommandStats `json:"command"`
	Channel   ChannelStats `json:"channel"`
}

// CommandStats tracks bot command and callback handling.
type CommandStats struct {
	Total             int64            `json:"total"`
	Errors            int64            `json:"errors"`
	Timeouts          int64            `json:"timeouts"`
	ByName            map[string]int64 `json:"by_name,omitempty"`
	TotalLatencyMs    int64            `json:"total_latency_ms"`
	MaxLatencyMs      int64            `json:"max_latency_ms"`
	P95ProxyLatencyMs int64            `json:"p95_proxy_latency_ms"`
}

// ErrorRatio returns errors/total in [0,1].
func (c CommandStats) ErrorRatio() float64 {
	if c.Total <= 0 {
		return 0
	}
	return float64(c.Errors) / float64(c.Total)
}

// AvgLatencyMs returns average latency in milliseconds.
func (c CommandStats) AvgLatencyMs() float64 {
	if c.Total <= 0 {
		return 0
	}
	return float64(c.TotalLatencyMs) / float64(c.Total)
}

// ChannelStats tracks outbound channel send metrics.
type ChannelStats struct {
	SendAttempts int64 `json:"send_attempts"`
	SendFailures int64 `json:"send_failures"`
	Forwarded    int64 `json:"forwarded"`
	Filtered     int64 `json:"filtered"`
}

// FailureRatio returns failures/attempts in [0,1].
func (c ChannelStats) FailureRatio() float64 {
	if c.SendAttempts <= 0 {
		return 0
	}
	return float64(c.SendFailures) / float64(c.SendAttempts)
}

// HasData reports whether any runtime metrics were recorded.
func (s RuntimeSnapshot) HasData() bool {
	return s.Command.Total > 0 || s.Channel.SendAttempts > 0 || s.Channel.Filtered > 0
}

// RuntimeMetrics records and persists runtime metrics.
type RuntimeMetrics struct {
	path string

	mu      sync.Mutex
	snap    RuntimeSnapshot
	buckets []int64
}

// NewRuntimeMetrics creates a metrics recorder rooted at <dataDir>/state/runtime_metrics.json.
func NewRuntimeMetrics(dataDir string) *RuntimeMetrics {
	return &RuntimeMetrics{
		path:    runtimeMetricsPath(dataDir),
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns a copy of the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

// RecordCommand updates command metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordCommand(name string, duration time.Duration, runErr error) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()
	latencyMs := duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Command.Total++
	m.snap.Command.TotalLatencyMs += latencyMs
	if latencyMs > m.snap.Command.MaxLatencyMs {
		m.snap.Command.MaxLatencyMs = latencyMs
	}
	if name = strings.TrimSpace(name); name != "" {
		if m.snap.Command.ByName == nil {
			m.snap.Command.ByName = make(map[string]int64)
		}
		m.snap.Command.ByName[name]++
	}
	if runErr != nil {
		m.snap.Command.Errors++
		if isTimeoutError(runErr) {
			m.snap.Command.Timeouts++
		}
	}

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Command.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, m.snap.Command.Total)

	snapshot := m.copyLocked()
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordChannelSend updates outbound channel send metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordChannelSend(success bool) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	m.mu.Lock()
	m.snap.UpdatedAt = time.Now().UTC()
	m.snap.Channel.SendAttempts++
	if !success {
		m.snap.Channel.SendFailures++
	}
	snapshot := m.copyLocked()
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordForward counts an inbound WhatsApp message as forwarded or filtered.
func (m *RuntimeMetrics) RecordForward(filtered bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.UpdatedAt = time.Now().UTC()
	if filtered {
		m.snap.Channel.Filtered++
	} else {
		m.snap.Channel.Forwarded++
	}
}

// ReadRuntimeSnapshot reads the persisted snapshot from the data directory.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(dataDir string) (RuntimeSnapshot, error) {
	path := runtimeMetricsPath(dataDir)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSnapshot{}, nil
		}
		return RuntimeSnapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap RuntimeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func (m *RuntimeMetrics) copyLocked() RuntimeSnapshot {
	snap := m.snap
	if m.snap.Command.ByName != nil {
		snap.Command.ByName = make(map[string]int64, len(m.snap.Command.ByName))
		for k, v := range m.snap.Command.ByName {
			snap.Command.ByName[k] = v
		}
	}
	return snap
}

func runtimeMetricsPath(dataDir string) string {
	if strings.TrimSpace(dataDir) == "" {
		return ""
	}
	return filepath.Join(dataDir, "state", runtimeMetricsFileName)
}

func persistRuntimeSnapshot(path string, snapshot RuntimeSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}

func isTimeoutError(runErr error) bool {
	if errors.Is(runErr, context.DeadlineExceeded) {
		return true
	}
	lowered := strings.ToLower(runErr.Error())
	return strings.Contains(lowered, "timeout") || strings.Contains(lowered, "timed out")
}
