package vision

import "errors"

var (
	// ErrFrameUnavailable means no frame has been produced yet. Non-fatal;
	// the scheduler retries on its next tick.
	ErrFrameUnavailable = errors.New("no frame available")

	// ErrNoActiveModel means the registry holds no loaded model.
	ErrNoActiveModel = errors.New("no active model")

	// ErrVocabularyUnsupported is returned when a vocabulary change is
	// requested while the active model's vocabulary is fixed.
	ErrVocabularyUnsupported = errors.New("active model does not support vocabulary changes")

	// ErrDetectTimeout means a detect call exceeded the scheduler watchdog.
	// Treated like any detector failure: the previous snapshot is retained.
	ErrDetectTimeout = errors.New("detect call timed out")

	// ErrConfidenceRange is returned for thresholds outside [0,1].
	ErrConfidenceRange = errors.New("confidence threshold must be within [0,1]")
)

// ModelLoadError reports a failed model load. The registry keeps the
// previous model active when returning it, so the caller can surface the
// failure while the pipeline keeps running.
type ModelLoadError struct {
	ID  string
	Err error
}

func (e *ModelLoadError) Error() string {
	return "failed to load model \"" + e.ID + "\": " + e.Err.Error()
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
