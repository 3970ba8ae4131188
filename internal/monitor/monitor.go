// Package monitor periodically logs runtime health: goroutines, heap,
// dispatcher queue depth, displayed markers, and attached stream clients.
package monitor

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Dependencies holds all dependencies for the monitor service. The count
// funcs are optional; nil ones report zero.
type Dependencies struct {
	Logger      *slog.Logger
	Interval    time.Duration
	QueueDepth  func() int
	MarkerCount func() int
	ClientCount func() int
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Minute
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status captures one runtime sample.
type Status struct {
	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heapAlloc"`
	HeapObjects uint64 `json:"heapObjects"`
	NumGC       uint32 `json:"numGC"`
	QueueDepth  int    `json:"queueDepth"`
	Markers     int    `json:"markers"`
	Clients     int    `json:"clients"`
}

// GetStatus returns the current runtime status
func (s *Service) GetStatus() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   mem.HeapAlloc,
		HeapObjects: mem.HeapObjects,
		NumGC:       mem.NumGC,
	}
	if s.deps.QueueDepth != nil {
		st.QueueDepth = s.deps.QueueDepth()
	}
	if s.deps.MarkerCount != nil {
		st.Markers = s.deps.MarkerCount()
	}
	if s.deps.ClientCount != nil {
		st.Clients = s.deps.ClientCount()
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.GetStatus()
				s.deps.Logger.Info("Runtime status",
					"goroutines", st.Goroutines,
					"heapAlloc", st.HeapAlloc,
					"heapObjects", st.HeapObjects,
					"numGC", st.NumGC,
					"queueDepth", st.QueueDepth,
					"markers", st.Markers,
					"clients", st.Clients)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
