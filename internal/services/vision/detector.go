package vision

import "robodash/internal/models"

// Detector runs object detection on a single frame. Implementations must be
// safe for use from one scheduler goroutine at a time; the registry guarantees
// a handle is never shared between concurrent detect calls.
type Detector interface {
	// Detect returns all objects found in the frame with confidence at or
	// above the threshold.
	Detect(frame Frame, confidence float64) ([]models.Detection, error)
	Close() error
}

// DynamicVocabulary is an optional Detector capability: models that can change
// their recognizable class set at runtime implement it. Callers must check for
// the capability before calling SetVocabulary.
type DynamicVocabulary interface {
	SetVocabulary(classes []string) error
	Vocabulary() []string
}

// SceneClassifier scores a frame against scene labels (the slow contextual
// tier). Returns predictions ordered by descending score.
type SceneClassifier interface {
	Classify(frame Frame) ([]models.ScenePrediction, error)
	Close() error
}

// Publisher receives events produced by the inference tiers and pushes them to
// connected clients. The websocket hub implements it.
type Publisher interface {
	PublishDetections(snapshot models.Snapshot)
	PublishScenePredictions(predictions []models.ScenePrediction)
}
