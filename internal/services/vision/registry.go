package vision

import (
	"fmt"
	"sync"
	"sync/atomic"

	"robodash/internal/logger"
)

// ModelHandle pairs a loaded detector with its catalog identifier.
// Handles are owned by the Registry; consumers hold one only for the duration
// of a single detect call, bracketed by Acquire and Release.
type ModelHandle struct {
	ID       string
	Detector Detector

	refs atomic.Int32
}

// Dynamic reports whether the handle's detector supports runtime vocabulary
// changes, checked through the DynamicVocabulary capability interface.
func (h *ModelHandle) Dynamic() bool {
	_, ok := h.Detector.(DynamicVocabulary)
	return ok
}

// Mode returns the vocabulary mode tag for status reporting.
func (h *ModelHandle) Mode() string {
	if h.Dynamic() {
		return "dynamic"
	}
	return "fixed"
}

// Loader resolves a model identifier to a ready Detector.
type Loader func(id string) (Detector, error)

// Registry owns the currently active detector model and performs atomic hot
// swaps. A swap loads the replacement off to the side and only then replaces
// the active reference, so in-flight detect calls complete against the handle
// they started with and a failed load leaves the registry unchanged.
type Registry struct {
	mu      sync.RWMutex
	active  *ModelHandle
	retired []*ModelHandle
	loader  Loader
	logger  *logger.Logger
}

// NewRegistry creates a registry using loader to materialize model ids.
func NewRegistry(loader Loader, log *logger.Logger) *Registry {
	return &Registry{loader: loader, logger: log}
}

// Active returns the current model handle, or nil if none is loaded.
// Use only to inspect the handle (ID, Mode); callers that run detection must
// use Acquire so a concurrent swap cannot close the model under them.
func (r *Registry) Active() *ModelHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Acquire pins the active handle for one detect call and returns it, or nil
// if no model is loaded. Every non-nil return must be paired with Release.
func (r *Registry) Acquire() *ModelHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil
	}
	r.active.refs.Add(1)
	return r.active
}

// Release unpins a handle obtained from Acquire. If the handle was retired by
// a swap in the meantime and this was its last pin, it is closed here.
func (r *Registry) Release(h *ModelHandle) {
	if h == nil {
		return
	}
	if h.refs.Add(-1) > 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepRetiredLocked()
}

// sweepRetiredLocked closes retired handles with no remaining pins. Callers
// hold r.mu for writing.
func (r *Registry) sweepRetiredLocked() {
	kept := r.retired[:0]
	for _, h := range r.retired {
		if h.refs.Load() == 0 {
			h.Detector.Close()
			continue
		}
		kept = append(kept, h)
	}
	r.retired = kept
}

// ActiveID returns the active model's identifier ("" if none).
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return ""
	}
	return r.active.ID
}

// RequestModel makes the identified model active. Requesting the already
// active model is a no-op. On load failure the previous model stays active
// and the error is returned to the caller.
func (r *Registry) RequestModel(id string) error {
	r.mu.RLock()
	current := r.active
	r.mu.RUnlock()

	if current != nil && current.ID == id {
		return nil
	}

	detector, err := r.loader(id)
	if err != nil {
		return &ModelLoadError{ID: id, Err: err}
	}

	handle := &ModelHandle{ID: id, Detector: detector}

	r.mu.Lock()
	// Re-check under the write lock: a concurrent request may have won.
	if r.active != nil && r.active.ID == id {
		r.mu.Unlock()
		// Our freshly loaded duplicate is unused and safe to close now.
		detector.Close()
		return nil
	}
	old := r.active
	r.active = handle
	if old != nil {
		// The old handle may still be pinned mid-detect on a scheduler
		// goroutine; retire it and let the sweep close it once the last
		// pin is released.
		r.retired = append(r.retired, old)
	}
	r.sweepRetiredLocked()
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("Model switched to %q (%s vocabulary)", id, handle.Mode())
	}
	return nil
}

// SetVocabulary changes the active model's class vocabulary. Only valid when
// the active model implements DynamicVocabulary; otherwise
// ErrVocabularyUnsupported is returned and nothing changes.
func (r *Registry) SetVocabulary(classes []string) error {
	r.mu.RLock()
	handle := r.active
	r.mu.RUnlock()

	if handle == nil {
		return ErrNoActiveModel
	}

	dyn, ok := handle.Detector.(DynamicVocabulary)
	if !ok {
		return fmt.Errorf("model %q: %w", handle.ID, ErrVocabularyUnsupported)
	}

	if err := dyn.SetVocabulary(classes); err != nil {
		return fmt.Errorf("failed to set vocabulary on %q: %w", handle.ID, err)
	}
	return nil
}

// Close releases the active model and every retired handle. Call only after
// all scheduler loops have stopped.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, h := range r.retired {
		if err := h.Detector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.retired = nil

	if r.active != nil {
		if err := r.active.Detector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.active = nil
	}
	return firstErr
}
