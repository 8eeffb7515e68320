package capture

import (
	"context"
	"errors"
	"time"

	"robodash/internal/logger"
	"robodash/internal/services/vision"
)

// Producer is the capture loop: it reads frames from a Source at a fixed
// cadence and puts them into the shared FrameBuffer. Transient read errors
// are retried on the next tick; a permanently closed source stops the loop.
type Producer struct {
	source   Source
	buffer   *vision.FrameBuffer
	interval time.Duration
	clock    vision.Clock
	logger   *logger.Logger

	failures int
}

// NewProducer creates a capture producer running at the given cadence.
func NewProducer(source Source, buffer *vision.FrameBuffer, interval time.Duration, clock vision.Clock, log *logger.Logger) *Producer {
	return &Producer{
		source:   source,
		buffer:   buffer,
		interval: interval,
		clock:    clock,
		logger:   log,
	}
}

// Run drives capture until ctx is cancelled or the source closes.
func (p *Producer) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("📷 Capture started (every %s)", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Capture stopped")
			return
		case <-ticker.C():
			if done := p.cycle(); done {
				return
			}
		}
	}
}

// cycle reads one frame. Returns true when the loop must end.
func (p *Producer) cycle() bool {
	frame, err := p.source.Read()
	if err != nil {
		if errors.Is(err, ErrSourceClosed) {
			p.logger.Error("Capture source closed, stopping producer")
			return true
		}
		p.failures++
		// Only log every so often; a flaky camera would flood the log.
		if p.failures%30 == 1 {
			p.logger.Warning("Frame read failed (%d so far): %v", p.failures, err)
		}
		return false
	}

	p.failures = 0
	p.buffer.Put(frame)
	return false
}
