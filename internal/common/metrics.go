package common

import (
	"fmt"
	"sync"
	"time"
)

// Metrics accumulates counters for one CLI operation: bytes touched, ECC
// groups examined, corrections made, patch blocks written.
type Metrics struct {
	mu            sync.Mutex
	start         time.Time
	end           time.Time
	bytes         int64
	totalBytes    int64
	groups        int64
	corrections   int64
	uncorrectable int64
	blocksWritten int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) AddBytes(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.bytes += n
	m.mu.Unlock()
}

func (m *Metrics) SetTotalBytes(total int64) {
	if total < 0 {
		total = 0
	}
	m.mu.Lock()
	m.totalBytes = total
	m.mu.Unlock()
}

func (m *Metrics) AddGroup() {
	m.mu.Lock()
	m.groups++
	m.mu.Unlock()
}

func (m *Metrics) IncCorrection() {
	m.mu.Lock()
	m.corrections++
	m.mu.Unlock()
}

func (m *Metrics) IncUncorrectable() {
	m.mu.Lock()
	m.uncorrectable++
	m.mu.Unlock()
}

func (m *Metrics) AddBlocksWritten(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.blocksWritten += n
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Duration:      m.elapsedLocked(),
		Bytes:         m.bytes,
		TotalBytes:    m.totalBytes,
		Groups:        m.groups,
		Corrections:   m.corrections,
		Uncorrectable: m.uncorrectable,
		BlocksWritten: m.blocksWritten,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration      time.Duration
	Bytes         int64
	TotalBytes    int64
	Groups        int64
	Corrections   int64
	Uncorrectable int64
	BlocksWritten int64
}

func (s MetricsSnapshot) ThroughputBytesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}
