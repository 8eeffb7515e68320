package vision

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"robodash/internal/logger"
	"robodash/internal/models"
)

// fakeDetector is a fixed-vocabulary detector for registry and scheduler
// tests. Detect returns the configured results after an optional delay.
type fakeDetector struct {
	mu         sync.Mutex
	id         string
	detections []models.Detection
	err        error
	delay      time.Duration
	calls      int
	closed     bool
}

func (d *fakeDetector) Detect(frame Frame, confidence float64) ([]models.Detection, error) {
	d.mu.Lock()
	d.calls++
	delay := d.delay
	detections := append([]models.Detection(nil), d.detections...)
	err := d.err
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return detections, nil
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeDynamicDetector adds the runtime-vocabulary capability.
type fakeDynamicDetector struct {
	fakeDetector
	vocab []string
}

func (d *fakeDynamicDetector) SetVocabulary(classes []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vocab = append([]string(nil), classes...)
	return nil
}

func (d *fakeDynamicDetector) Vocabulary() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.vocab...)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(t.TempDir())
}

func TestRegistry_RequestModel(t *testing.T) {
	loaded := make(map[string]*fakeDetector)
	loader := func(id string) (Detector, error) {
		d := &fakeDetector{id: id}
		loaded[id] = d
		return d, nil
	}

	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()

	if registry.Active() != nil {
		t.Fatal("Fresh registry should have no active model")
	}

	if err := registry.RequestModel("ssd_mobilenet"); err != nil {
		t.Fatalf("RequestModel failed: %v", err)
	}
	if id := registry.ActiveID(); id != "ssd_mobilenet" {
		t.Errorf("ActiveID = %q, expected ssd_mobilenet", id)
	}
}

func TestRegistry_SameModelIsNoOp(t *testing.T) {
	loads := 0
	loader := func(id string) (Detector, error) {
		loads++
		return &fakeDetector{id: id}, nil
	}

	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()

	registry.RequestModel("ssd_mobilenet")
	registry.RequestModel("ssd_mobilenet")
	registry.RequestModel("ssd_mobilenet")

	if loads != 1 {
		t.Errorf("Loader called %d times for the same id, expected 1", loads)
	}
}

func TestRegistry_LoadFailureKeepsPrevious(t *testing.T) {
	loader := func(id string) (Detector, error) {
		if id == "broken" {
			return nil, fmt.Errorf("missing weights file")
		}
		return &fakeDetector{id: id}, nil
	}

	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()

	registry.RequestModel("ssd_mobilenet")

	err := registry.RequestModel("broken")
	if err == nil {
		t.Fatal("Expected an error for a failing load")
	}
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) || loadErr.ID != "broken" {
		t.Errorf("Error = %v, expected *ModelLoadError for \"broken\"", err)
	}
	if id := registry.ActiveID(); id != "ssd_mobilenet" {
		t.Errorf("ActiveID = %q after failed load, expected ssd_mobilenet", id)
	}
}

// A swap must not invalidate a handle a detect call has pinned, and the
// replaced detector must stay open until that pin is released.
func TestRegistry_HotSwapKeepsPinnedHandle(t *testing.T) {
	first := &fakeDetector{id: "a"}
	second := &fakeDetector{id: "b"}
	loader := func(id string) (Detector, error) {
		if id == "a" {
			return first, nil
		}
		return second, nil
	}

	registry := NewRegistry(loader, testLogger(t))

	registry.RequestModel("a")
	held := registry.Acquire()

	registry.RequestModel("b")

	if first.isClosed() {
		t.Error("Replaced detector was closed while a handle was still pinned")
	}
	if _, err := held.Detector.Detect(Frame{}, 0.5); err != nil {
		t.Errorf("Detect on the held handle failed after swap: %v", err)
	}
	if id := registry.ActiveID(); id != "b" {
		t.Errorf("ActiveID = %q, expected b", id)
	}

	registry.Release(held)
	if !first.isClosed() {
		t.Error("Releasing the last pin should close the retired detector")
	}

	registry.Close()
	if !second.isClosed() {
		t.Error("Close should release the active detector")
	}
}

// Without any pin outstanding the replaced detector is closed by the swap
// itself; retired handles must not pile up until shutdown.
func TestRegistry_SwapClosesIdleRetiredModel(t *testing.T) {
	detectors := make(map[string]*fakeDetector)
	loader := func(id string) (Detector, error) {
		d := &fakeDetector{id: id}
		detectors[id] = d
		return d, nil
	}

	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()

	registry.RequestModel("a")
	registry.RequestModel("b")
	registry.RequestModel("c")

	if !detectors["a"].isClosed() || !detectors["b"].isClosed() {
		t.Error("Idle replaced detectors should be closed at swap time")
	}
	if detectors["c"].isClosed() {
		t.Error("Active detector must stay open")
	}
}

func TestRegistry_SetVocabulary(t *testing.T) {
	dynamic := &fakeDynamicDetector{}
	fixed := &fakeDetector{}
	loader := func(id string) (Detector, error) {
		if id == "yolo_world" {
			return dynamic, nil
		}
		return fixed, nil
	}

	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()

	if err := registry.SetVocabulary([]string{"person"}); !errors.Is(err, ErrNoActiveModel) {
		t.Errorf("SetVocabulary with no model = %v, expected ErrNoActiveModel", err)
	}

	registry.RequestModel("ssd_mobilenet")
	err := registry.SetVocabulary([]string{"person", "cup"})
	if !errors.Is(err, ErrVocabularyUnsupported) {
		t.Errorf("Fixed model SetVocabulary = %v, expected ErrVocabularyUnsupported", err)
	}
	if mode := registry.Active().Mode(); mode != "fixed" {
		t.Errorf("Mode = %q, expected fixed", mode)
	}

	registry.RequestModel("yolo_world")
	if err := registry.SetVocabulary([]string{"person", "cup"}); err != nil {
		t.Fatalf("Dynamic model SetVocabulary failed: %v", err)
	}
	if got := dynamic.Vocabulary(); len(got) != 2 || got[0] != "person" {
		t.Errorf("Vocabulary = %v, expected [person cup]", got)
	}
	if mode := registry.Active().Mode(); mode != "dynamic" {
		t.Errorf("Mode = %q, expected dynamic", mode)
	}
}
