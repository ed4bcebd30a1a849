package jobs

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Supervisor tracks background task goroutines so a panic in one run
// cannot take the server down and shutdown can drain in-flight work.
type Supervisor struct {
	logger *slog.Logger
	wg     sync.WaitGroup
	active atomic.Int32
}

// NewSupervisor creates a supervisor.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{logger: logger}
}

// Spawn runs fn on a tracked goroutine with panic recovery. A panic is
// logged with its stack and absorbed; the task is simply over.
func (s *Supervisor) Spawn(name string, fn func()) {
	s.wg.Add(1)
	s.active.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background task panicked",
					"task", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// Active returns the number of tasks currently running.
func (s *Supervisor) Active() int {
	return int(s.active.Load())
}

// Wait blocks until all spawned tasks have finished.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
