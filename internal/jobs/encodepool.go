package jobs

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
)

// EncodePool bounds the goroutines doing base64 work on large images so
// CPU-bound encoding cannot starve the I/O goroutines driving jobs.
type EncodePool struct {
	tasks  chan func()
	done   chan struct{}
	logger *slog.Logger
}

// NewEncodePool starts a pool with the given worker count (clamped to
// 1-2; the work is memory-bandwidth bound and more workers just thrash).
func NewEncodePool(workers int, logger *slog.Logger) *EncodePool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > 2 {
		workers = 2
	}

	p := &EncodePool{
		tasks:  make(chan func()),
		done:   make(chan struct{}),
		logger: logger.With("pool", "encode", "workers", workers),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *EncodePool) worker() {
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			task()
		}
	}
}

// Close stops the workers. Tasks already running finish.
func (p *EncodePool) Close() {
	close(p.done)
}

// Encode base64-encodes data on a pool worker.
func (p *EncodePool) Encode(ctx context.Context, data []byte) (string, error) {
	var out string
	err := p.run(ctx, func() {
		out = base64.StdEncoding.EncodeToString(data)
	})
	return out, err
}

// Decode base64-decodes s on a pool worker.
func (p *EncodePool) Decode(ctx context.Context, s string) ([]byte, error) {
	var out []byte
	var decodeErr error
	err := p.run(ctx, func() {
		out, decodeErr = base64.StdEncoding.DecodeString(s)
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode base64 payload: %w", decodeErr)
	}
	return out, nil
}

func (p *EncodePool) run(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	finished := make(chan struct{})
	task := func() {
		fn()
		close(finished)
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("encode pool closed")
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
