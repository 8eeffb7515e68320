package vision

import (
	"context"
	"fmt"
	"time"

	"robodash/internal/logger"
	"robodash/internal/models"
)

// Scheduler is one independently-clocked inference tier. It pulls the latest
// frame from the shared FrameBuffer, runs the active model, and publishes the
// filtered results as a new snapshot.
//
// A failed or timed-out detect call never blanks the display: the previous
// snapshot is retained unchanged (zero-order hold) and the tier simply tries
// again on its next tick. Nothing in a cycle can terminate the loop.
type Scheduler struct {
	name      string
	interval  time.Duration
	timeout   time.Duration
	buffer    *FrameBuffer
	state     *StateStore
	registry  *Registry
	publisher Publisher
	tracker   *Tracker
	clock     Clock
	logger    *logger.Logger

	// Loop-local state, touched only by the Run goroutine.
	lastSeq     uint64
	lastModelID string
	wasEnabled  bool
	warnedIdle  bool
}

// NewScheduler creates an inference tier. The timeout bounds a single detect
// call; an expired call counts as a detector failure.
func NewScheduler(name string, interval, timeout time.Duration, buffer *FrameBuffer, state *StateStore, registry *Registry, publisher Publisher, clock Clock, log *logger.Logger) *Scheduler {
	return &Scheduler{
		name:      name,
		interval:  interval,
		timeout:   timeout,
		buffer:    buffer,
		state:     state,
		registry:  registry,
		publisher: publisher,
		tracker:   NewTracker(),
		clock:     clock,
		logger:    log,
	}
}

// Run drives the tier until ctx is cancelled. Each tier runs on its own
// goroutine with its own ticker, so a slow tier can never starve a fast one.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("🔎 Inference tier %q started (every %s)", s.name, s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Inference tier %q stopped", s.name)
			return
		case <-ticker.C():
			s.Cycle()
		}
	}
}

// Cycle runs one inference pass. Exported so tests can drive the tier without
// a ticker.
func (s *Scheduler) Cycle() {
	cfg := s.state.Config()
	if !cfg.Enabled {
		s.wasEnabled = false
		return
	}
	if !s.wasEnabled {
		// Fresh enable: old track identifiers no longer mean anything.
		s.tracker.Reset()
		s.wasEnabled = true
	}

	frame, ok := s.buffer.Get()
	if !ok {
		// No frame yet (camera warming up). Retry next tick.
		return
	}
	if frame.Seq == s.lastSeq {
		// Nothing new since the last cycle; skipping is not an error.
		return
	}

	handle := s.registry.Acquire()
	if handle == nil {
		if !s.warnedIdle {
			s.logger.Warning("Tier %q: %v", s.name, ErrNoActiveModel)
			s.warnedIdle = true
		}
		return
	}
	s.warnedIdle = false

	if handle.ID != s.lastModelID {
		s.tracker.Reset()
		s.lastModelID = handle.ID
	}

	detections, err := s.detect(handle, frame, cfg.Confidence)
	if err != nil {
		// Zero-order hold: keep the previous snapshot on any failure.
		s.logger.Error("Tier %q: detection failed, holding last snapshot: %v", s.name, err)
		return
	}
	s.lastSeq = frame.Seq

	detections = filterDetections(detections, cfg)
	s.tracker.Assign(detections)

	snapshot := s.state.Publish(detections, frame.Timestamp)
	s.publisher.PublishDetections(snapshot)
}

// detect runs the model under a watchdog deadline. gocv's forward pass is not
// cancellable, so on expiry the goroutine is abandoned and its eventual result
// discarded; the goroutine keeps the handle pinned until the pass returns, so
// a concurrent swap cannot close the model under it.
func (s *Scheduler) detect(handle *ModelHandle, frame Frame, confidence float64) ([]models.Detection, error) {
	type result struct {
		detections []models.Detection
		err        error
	}

	done := make(chan result, 1)
	go func() {
		defer s.registry.Release(handle)
		detections, err := handle.Detector.Detect(frame, confidence)
		done <- result{detections, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("model %q: %w", handle.ID, res.err)
		}
		return res.detections, nil
	case <-timer.C:
		return nil, fmt.Errorf("model %q after %s: %w", handle.ID, s.timeout, ErrDetectTimeout)
	}
}

// filterDetections applies the confidence threshold and, when a vocabulary is
// set, drops classes outside it. Fixed-vocabulary models cannot restrict
// their class set at the model level, so the scene vocabulary is enforced
// here for every model.
func filterDetections(detections []models.Detection, cfg PipelineConfig) []models.Detection {
	allowed := make(map[string]bool, len(cfg.Vocabulary))
	for _, c := range cfg.Vocabulary {
		allowed[c] = true
	}

	filtered := detections[:0]
	for _, d := range detections {
		if d.Confidence < cfg.Confidence {
			continue
		}
		if len(allowed) > 0 && !allowed[d.Label] {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}
