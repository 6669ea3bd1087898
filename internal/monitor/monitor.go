package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Status is one sample of the host's health.
type Status struct {
	Time          time.Time `json:"time"`
	Session       string    `json:"session"`
	Turn          int64     `json:"turn"`
	PendingWrites int       `json:"pendingWrites"`
	Mirrors       int       `json:"mirrors"`
}

// Dependencies holds all dependencies for the monitor service. The
// func sources are optional and must be safe to call from another goroutine.
type Dependencies struct {
	Logger        *slog.Logger
	Session       string
	Turn          func() int64
	PendingWrites func() int
	Mirrors       func() int
	// StatusFile is rewritten with the latest sample when set.
	StatusFile string
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	last      Status
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent sample.
func (s *Service) Last() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Sample reads every source once.
func (s *Service) Sample() Status {
	st := Status{Time: time.Now(), Session: s.deps.Session}
	if s.deps.Turn != nil {
		st.Turn = s.deps.Turn()
	}
	if s.deps.PendingWrites != nil {
		st.PendingWrites = s.deps.PendingWrites()
	}
	if s.deps.Mirrors != nil {
		st.Mirrors = s.deps.Mirrors()
	}
	return st
}

// Start starts the status monitor goroutine. It registers observable gauges
// for the pending writes and connected mirrors.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	reg, err := s.registerGauges()
	if err != nil {
		s.deps.Logger.Warn("Failed to register status gauges", "error", err)
	}

	go func() {
		defer close(s.done)
		defer func() {
			if reg != nil {
				_ = reg.Unregister()
			}
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.record(s.Sample())
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Service) record(st Status) {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	s.deps.Logger.Debug("Status", "turn", st.Turn, "pendingWrites", st.PendingWrites, "mirrors", st.Mirrors)
	if s.deps.StatusFile == "" {
		return
	}
	if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}

// writeStatusFile replaces path with st as indented JSON.
func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Service) registerGauges() (metric.Registration, error) {
	m := otel.Meter("github.com/opendungeons/keeper/internal/monitor")
	pending, err := m.Int64ObservableGauge("storage.pending_writes",
		metric.WithDescription("Seat rows waiting for the next storage write"))
	if err != nil {
		return nil, err
	}
	mirrors, err := m.Int64ObservableGauge("netsync.mirrors",
		metric.WithDescription("Connected mirror clients"))
	if err != nil {
		return nil, err
	}
	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := s.Last()
		o.ObserveInt64(pending, int64(st.PendingWrites))
		o.ObserveInt64(mirrors, int64(st.Mirrors))
		return nil
	}, pending, mirrors)
}
