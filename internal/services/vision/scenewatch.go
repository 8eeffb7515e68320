package vision

import (
	"context"
	"sync/atomic"
	"time"

	"robodash/internal/logger"
)

// SceneWatcher is the slow contextual tier: at a low cadence it classifies
// the latest frame against scene labels and publishes the top predictions as
// suggestions for the operator. It shares the FrameBuffer with the fast tier
// but runs on its own goroutine and clock, and it never touches the detection
// snapshot.
type SceneWatcher struct {
	interval   time.Duration
	classifier SceneClassifier
	buffer     *FrameBuffer
	publisher  Publisher
	clock      Clock
	logger     *logger.Logger
	topK       int

	enabled atomic.Bool
	lastSeq uint64
}

// NewSceneWatcher creates the contextual tier. It starts disabled.
func NewSceneWatcher(interval time.Duration, classifier SceneClassifier, buffer *FrameBuffer, publisher Publisher, clock Clock, log *logger.Logger) *SceneWatcher {
	return &SceneWatcher{
		interval:   interval,
		classifier: classifier,
		buffer:     buffer,
		publisher:  publisher,
		clock:      clock,
		logger:     log,
		topK:       5,
	}
}

// SetEnabled flips the tier's own enable flag, independent of the fast tier.
func (w *SceneWatcher) SetEnabled(enabled bool) {
	w.enabled.Store(enabled)
}

// Enabled reports whether the tier is running classifications.
func (w *SceneWatcher) Enabled() bool {
	return w.enabled.Load()
}

// Run drives the tier until ctx is cancelled.
func (w *SceneWatcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("🗺️  Scene watcher started (every %s)", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Scene watcher stopped")
			return
		case <-ticker.C():
			w.Cycle()
		}
	}
}

// Cycle runs one classification pass. Failures are logged and the previous
// suggestions simply stand until a later pass succeeds.
func (w *SceneWatcher) Cycle() {
	if !w.enabled.Load() {
		return
	}

	frame, ok := w.buffer.Get()
	if !ok || frame.Seq == w.lastSeq {
		return
	}

	predictions, err := w.classifier.Classify(frame)
	if err != nil {
		w.logger.Error("Scene classification failed: %v", err)
		return
	}
	w.lastSeq = frame.Seq

	if len(predictions) > w.topK {
		predictions = predictions[:w.topK]
	}
	w.publisher.PublishScenePredictions(predictions)
}
