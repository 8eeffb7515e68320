package services

import (
	"context"
	"strings"
	"time"

	"robodash/internal/config"
	"robodash/internal/logger"
	"robodash/internal/models"
	"robodash/internal/services/capture"
	"robodash/internal/services/scenes"
	"robodash/internal/services/vision"
	"robodash/internal/services/websocket"
)

// Broadcaster is the event surface the pipeline pushes state changes to.
// The websocket hub implements it; tests use a recorder.
type Broadcaster interface {
	vision.Publisher
	Broadcast(event string, data interface{})
}

// Pipeline is the owning aggregate for the whole detection pipeline: frame
// buffer, state store, model registry, scene resolver, inference tiers, and
// the capture producer. It is constructed once at startup and shared by
// reference; there are no package-level globals.
type Pipeline struct {
	Buffer   *vision.FrameBuffer
	State    *vision.StateStore
	Registry *vision.Registry
	Resolver *scenes.Resolver
	Watcher  *vision.SceneWatcher

	scheduler   *vision.Scheduler
	producer    *capture.Producer
	broadcaster Broadcaster
	logger      *logger.Logger
	statusEvery time.Duration
	clock       vision.Clock
}

// NewPipeline wires the aggregate. producer and watcher may be nil when the
// camera or the scene classifier is unavailable; the rest of the pipeline
// still runs (frames can arrive from tests or a future remote source).
func NewPipeline(cfg *config.Config, buffer *vision.FrameBuffer, state *vision.StateStore, registry *vision.Registry, resolver *scenes.Resolver, scheduler *vision.Scheduler, watcher *vision.SceneWatcher, producer *capture.Producer, broadcaster Broadcaster, clock vision.Clock, log *logger.Logger) *Pipeline {
	return &Pipeline{
		Buffer:      buffer,
		State:       state,
		Registry:    registry,
		Resolver:    resolver,
		Watcher:     watcher,
		scheduler:   scheduler,
		producer:    producer,
		broadcaster: broadcaster,
		logger:      log,
		statusEvery: time.Duration(cfg.StatusIntervalMs) * time.Millisecond,
		clock:       clock,
	}
}

// Run starts every concurrent unit of the pipeline and blocks until ctx is
// cancelled. Each loop has its own clock; none of them share an execution
// slot, so a slow tier can never delay the fast one.
func (p *Pipeline) Run(ctx context.Context) {
	if p.producer != nil {
		go p.producer.Run(ctx)
	}
	go p.scheduler.Run(ctx)
	if p.Watcher != nil {
		go p.Watcher.Run(ctx)
	}
	go p.statusLoop(ctx)

	<-ctx.Done()
	p.Registry.Close()
	p.logger.Info("🛑 Pipeline stopped")
}

// statusLoop periodically pushes the detection state so dashboards stay in
// sync even when they missed an event.
func (p *Pipeline) statusLoop(ctx context.Context) {
	ticker := p.clock.NewTicker(p.statusEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.broadcaster.Broadcast("detection_state", p.Status())
		}
	}
}

// DetectionStatus is the control-channel view of the live configuration.
type DetectionStatus struct {
	Enabled        bool     `json:"enabled"`
	Confidence     float64  `json:"confidence"`
	Classes        []string `json:"classes"`
	Model          string   `json:"model"`
	VocabularyMode string   `json:"vocabulary_mode"`
	SceneWatch     bool     `json:"scene_watch"`
	Detections     int      `json:"detections"`
}

// Status assembles the current detection state.
func (p *Pipeline) Status() DetectionStatus {
	cfg := p.State.Config()

	status := DetectionStatus{
		Enabled:    cfg.Enabled,
		Confidence: cfg.Confidence,
		Classes:    cfg.Vocabulary,
		Detections: len(p.State.Current().Detections),
	}
	if handle := p.Registry.Active(); handle != nil {
		status.Model = handle.ID
		status.VocabularyMode = handle.Mode()
	}
	if p.Watcher != nil {
		status.SceneWatch = p.Watcher.Enabled()
	}
	return status
}

// SetEnabled turns object detection on or off. Disabling clears the
// published snapshot immediately so no stale boxes linger.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.State.SetEnabled(enabled)
	p.logger.Info("Detection %s", enabledWord(enabled))
	p.broadcaster.Broadcast("detection_state", p.Status())
	if !enabled {
		// Push the cleared snapshot so viewers drop their boxes now, not
		// on the next status tick.
		p.broadcaster.PublishDetections(p.State.Current())
	}
}

// SetConfidence updates the confidence threshold for subsequent cycles.
func (p *Pipeline) SetConfidence(v float64) error {
	if err := p.State.SetConfidence(v); err != nil {
		return err
	}
	p.logger.Info("Confidence threshold set to %.2f", v)
	return nil
}

// SetVocabulary pushes a new class vocabulary to the active model and, only
// on success, to the state store. A fixed-vocabulary model rejects the change
// and both the model and the stored vocabulary stay as they were.
func (p *Pipeline) SetVocabulary(classes []string) error {
	cleaned := cleanClasses(classes)
	if len(cleaned) == 0 {
		return scenes.ErrNoClasses
	}

	if err := p.Registry.SetVocabulary(cleaned); err != nil {
		return err
	}

	p.State.SetVocabulary(cleaned)
	p.logger.Info("Detection classes updated: %v", cleaned)
	return nil
}

// SwitchScene resolves the scene name and applies the resulting context:
// hot-swaps the model when it differs from the active one, then activates
// the scene's vocabulary. An unknown scene applies the default context and
// is not an error.
func (p *Pipeline) SwitchScene(name string) (models.SceneContext, error) {
	scene, err := p.Resolver.Resolve(name)
	if err != nil {
		return models.SceneContext{}, err
	}

	if scene.Model != "" && scene.Model != p.Registry.ActiveID() {
		if err := p.Registry.RequestModel(scene.Model); err != nil {
			// Previous model keeps running; surface the load failure.
			return models.SceneContext{}, err
		}
	}

	// Dynamic models take the vocabulary directly; fixed models keep their
	// class set and the scheduler enforces the vocabulary as a filter.
	if handle := p.Registry.Active(); handle != nil && handle.Dynamic() {
		if err := p.Registry.SetVocabulary(scene.Classes); err != nil {
			p.logger.Warning("Scene %q: model rejected vocabulary: %v", name, err)
		}
	}
	p.State.SetVocabulary(scene.Classes)

	p.logger.Info("🎬 Scene switched to %q (%d classes, model %q)", name, len(scene.Classes), scene.Model)
	p.broadcaster.Broadcast("scene_switched", scene)
	return scene, nil
}

// SaveScene upserts a scene record for later switches.
func (p *Pipeline) SaveScene(name string, classes []string, model string) error {
	cleaned := cleanClasses(classes)
	if err := p.Resolver.UpdateScene(name, cleaned, model); err != nil {
		return err
	}
	p.logger.Info("Scene %q saved (%d classes)", name, len(cleaned))
	return nil
}

// SetSceneWatch toggles the slow contextual tier.
func (p *Pipeline) SetSceneWatch(enabled bool) {
	if p.Watcher == nil {
		return
	}
	p.Watcher.SetEnabled(enabled)
	p.logger.Info("Scene watcher %s", enabledWord(enabled))
}

// ServeFrame returns the latest frame with the current snapshot drawn on it,
// for the MJPEG feed. The draw function is injected so the HTTP layer stays
// free of gocv.
func (p *Pipeline) ServeFrame(draw func([]byte, []models.Detection) ([]byte, error)) ([]byte, error) {
	frame, ok := p.Buffer.Get()
	if !ok {
		return nil, vision.ErrFrameUnavailable
	}

	snapshot := p.State.Current()
	if len(snapshot.Detections) == 0 || draw == nil {
		return frame.Data, nil
	}

	drawn, err := draw(frame.Data, snapshot.Detections)
	if err != nil {
		// Zero-order hold for rendering too: an overlay failure falls back
		// to the plain frame rather than dropping it.
		p.logger.Error("Failed to draw detections: %v", err)
		return frame.Data, nil
	}
	return drawn, nil
}

func cleanClasses(classes []string) []string {
	cleaned := make([]string, 0, len(classes))
	for _, c := range classes {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

var _ Broadcaster = (*websocket.HubService)(nil)
