package mcpserver

import (
	"sync"
	"time"
)

// Statistics tracks the running counters spec §4.7 names per server:
// "counts of {totalRequests, totalToolInvocations, totalResourceReads,
// totalPromptGenerations, totalErrors}, running avgResponseTime,
// successRate..., uptime, lastRequestAt." Grounded on the teacher pack's
// general metrics-via-mutex-guarded-struct idiom (matching events.Bus's
// own sync.RWMutex-guarded map), since no retrieved MCP server example
// ships equivalent per-server statistics.
type Statistics struct {
	mu sync.Mutex

	startedAt              time.Time
	totalRequests          int64
	totalToolInvocations   int64
	totalResourceReads     int64
	totalPromptGenerations int64
	totalErrors            int64
	totalResponseTime      time.Duration
	lastRequestAt          time.Time
}

// NewStatistics starts a fresh counter set with Uptime measured from now.
func NewStatistics() *Statistics {
	return &Statistics{startedAt: time.Now()}
}

func (s *Statistics) recordRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.lastRequestAt = time.Now()
}

func (s *Statistics) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalErrors++
}

func (s *Statistics) recordToolInvocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalToolInvocations++
}

func (s *Statistics) recordResourceRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalResourceReads++
}

func (s *Statistics) recordPromptGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalPromptGenerations++
}

// RecordResponseTime folds one request's duration into the running
// average (spec §4.7's "running avgResponseTime").
func (s *Statistics) RecordResponseTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalResponseTime += d
}

// Snapshot is the point-in-time view of Statistics' counters, suitable
// for JSON serialization over an MCP stats endpoint.
type Snapshot struct {
	TotalRequests          int64         `json:"totalRequests"`
	TotalToolInvocations   int64         `json:"totalToolInvocations"`
	TotalResourceReads     int64         `json:"totalResourceReads"`
	TotalPromptGenerations int64         `json:"totalPromptGenerations"`
	TotalErrors            int64         `json:"totalErrors"`
	AvgResponseTime        time.Duration `json:"avgResponseTime"`
	SuccessRate            float64       `json:"successRate"`
	Uptime                 time.Duration `json:"uptime"`
	LastRequestAt          time.Time     `json:"lastRequestAt"`
}

// Snapshot computes successRate = (totalRequests - totalErrors) /
// totalRequests * 100, per spec §4.7, guarding the zero-request case.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avg time.Duration
	if s.totalRequests > 0 {
		avg = s.totalResponseTime / time.Duration(s.totalRequests)
	}
	successRate := 100.0
	if s.totalRequests > 0 {
		successRate = float64(s.totalRequests-s.totalErrors) / float64(s.totalRequests) * 100
	}
	return Snapshot{
		TotalRequests:          s.totalRequests,
		TotalToolInvocations:   s.totalToolInvocations,
		TotalResourceReads:     s.totalResourceReads,
		TotalPromptGenerations: s.totalPromptGenerations,
		TotalErrors:            s.totalErrors,
		AvgResponseTime:        avg,
		SuccessRate:            successRate,
		Uptime:                 time.Since(s.startedAt),
		LastRequestAt:          s.lastRequestAt,
	}
}
