package vision

import (
	"sync"
	"time"

	"robodash/internal/models"
)

// PipelineConfig is the live detection configuration read at the start of
// every inference cycle. Changes take effect on the next cycle, never
// retroactively on the current snapshot.
type PipelineConfig struct {
	Enabled    bool
	Confidence float64
	Vocabulary []string
}

// StateStore holds the latest published detection snapshot plus the live
// pipeline configuration. Publish replaces the snapshot atomically; readers
// always see one complete generation, never a torn mix.
type StateStore struct {
	mu         sync.RWMutex
	snapshot   models.Snapshot
	enabled    bool
	confidence float64
	vocabulary []string
}

// NewStateStore creates a state store with detection disabled and the given
// initial confidence threshold.
func NewStateStore(confidence float64) *StateStore {
	return &StateStore{
		confidence: confidence,
		snapshot:   models.Snapshot{Detections: []models.Detection{}},
	}
}

// Publish atomically replaces the snapshot with a new generation built from
// the given detections and returns it.
//
// A publish that lands while detection is disabled is dropped and the current
// (cleared) snapshot returned: a disable can arrive while a detect call is in
// flight, and its clear must win over that cycle's late result.
func (s *StateStore) Publish(detections []models.Detection, at time.Time) models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return s.snapshot
	}

	if detections == nil {
		detections = []models.Detection{}
	}
	s.snapshot = models.Snapshot{
		Generation: s.snapshot.Generation + 1,
		Detections: detections,
		Timestamp:  at,
	}
	return s.snapshot
}

// Current returns the latest snapshot. The returned slice is shared and must
// be treated as read-only; it is never mutated after publication.
func (s *StateStore) Current() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetEnabled flips the detection enable flag. Disabling clears the stored
// snapshot immediately so stale boxes are not displayed indefinitely;
// enabling does not publish anything itself, the next scheduler cycle does.
func (s *StateStore) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	if !enabled {
		s.snapshot = models.Snapshot{
			Generation: s.snapshot.Generation + 1,
			Detections: []models.Detection{},
			Timestamp:  s.snapshot.Timestamp,
		}
	}
}

// Enabled reports whether detection is enabled.
func (s *StateStore) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetConfidence updates the confidence threshold for subsequent cycles.
func (s *StateStore) SetConfidence(v float64) error {
	if v < 0 || v > 1 {
		return ErrConfidenceRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confidence = v
	return nil
}

// SetVocabulary replaces the active class vocabulary used to filter published
// detections on subsequent cycles.
func (s *StateStore) SetVocabulary(classes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vocabulary = append([]string(nil), classes...)
}

// Config returns a consistent copy of the live configuration.
func (s *StateStore) Config() PipelineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PipelineConfig{
		Enabled:    s.enabled,
		Confidence: s.confidence,
		Vocabulary: append([]string(nil), s.vocabulary...),
	}
}
