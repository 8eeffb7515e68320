package vision

import (
	"sync"
	"testing"
	"time"

	"robodash/internal/models"
)

// fakePublisher records every published event.
type fakePublisher struct {
	mu          sync.Mutex
	snapshots   []models.Snapshot
	predictions [][]models.ScenePrediction
}

func (p *fakePublisher) PublishDetections(snapshot models.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
}

func (p *fakePublisher) PublishScenePredictions(predictions []models.ScenePrediction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictions = append(p.predictions, predictions)
}

func (p *fakePublisher) snapshotCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

func (p *fakePublisher) lastSnapshot() models.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots[len(p.snapshots)-1]
}

type schedulerFixture struct {
	buffer    *FrameBuffer
	state     *StateStore
	registry  *Registry
	publisher *fakePublisher
	scheduler *Scheduler
	detector  *fakeDetector
}

func newSchedulerFixture(t *testing.T, timeout time.Duration) *schedulerFixture {
	t.Helper()

	detector := &fakeDetector{id: "ssd_mobilenet"}
	loader := func(id string) (Detector, error) { return detector, nil }

	f := &schedulerFixture{
		buffer:    NewFrameBuffer(),
		state:     NewStateStore(0.5),
		registry:  NewRegistry(loader, testLogger(t)),
		publisher: &fakePublisher{},
		detector:  detector,
	}
	if err := f.registry.RequestModel("ssd_mobilenet"); err != nil {
		t.Fatalf("RequestModel failed: %v", err)
	}
	t.Cleanup(func() { f.registry.Close() })

	f.scheduler = NewScheduler("detect", 100*time.Millisecond, timeout,
		f.buffer, f.state, f.registry, f.publisher, SystemClock{}, testLogger(t))
	return f
}

func TestScheduler_PublishesFilteredDetections(t *testing.T) {
	f := newSchedulerFixture(t, time.Second)
	f.state.SetEnabled(true)
	f.detector.detections = []models.Detection{
		{Label: "person", Confidence: 0.9, X1: 10, Y1: 10, X2: 50, Y2: 90},
		{Label: "cup", Confidence: 0.3, X1: 60, Y1: 60, X2: 70, Y2: 70},
	}

	f.buffer.Put(Frame{Data: []byte("jpeg"), Timestamp: time.Now()})
	f.scheduler.Cycle()

	if f.publisher.snapshotCount() != 1 {
		t.Fatalf("Published %d snapshots, expected 1", f.publisher.snapshotCount())
	}
	snap := f.publisher.lastSnapshot()
	if len(snap.Detections) != 1 || snap.Detections[0].Label != "person" {
		t.Errorf("Snapshot = %+v, expected only the person above threshold", snap.Detections)
	}
	if snap.Detections[0].TrackID != 1 {
		t.Errorf("TrackID = %d, expected 1", snap.Detections[0].TrackID)
	}
	if got := f.state.Current(); got.Generation != snap.Generation {
		t.Errorf("State generation %d differs from published %d", got.Generation, snap.Generation)
	}
}

func TestScheduler_VocabularyFilter(t *testing.T) {
	f := newSchedulerFixture(t, time.Second)
	f.state.SetEnabled(true)
	f.state.SetVocabulary([]string{"person", "cup"})
	f.detector.detections = []models.Detection{
		{Label: "person", Confidence: 0.9},
		{Label: "chair", Confidence: 0.9},
		{Label: "cup", Confidence: 0.9},
	}

	f.buffer.Put(Frame{Data: []byte("jpeg")})
	f.scheduler.Cycle()

	snap := f.publisher.lastSnapshot()
	if len(snap.Detections) != 2 {
		t.Fatalf("Got %d detections, expected 2 (chair filtered out)", len(snap.Detections))
	}
	for _, d := range snap.Detections {
		if d.Label == "chair" {
			t.Error("Class outside the vocabulary was published")
		}
	}
}

func TestScheduler_DisabledDoesNothing(t *testing.T) {
	f := newSchedulerFixture(t, time.Second)
	f.detector.detections = []models.Detection{{Label: "person", Confidence: 0.9}}

	f.buffer.Put(Frame{Data: []byte("jpeg")})
	f.scheduler.Cycle()

	if f.publisher.snapshotCount() != 0 {
		t.Error("Disabled tier published a snapshot")
	}
	if f.detector.callCount() != 0 {
		t.Error("Disabled tier ran the detector")
	}
}

// gateDetector parks inside Detect until released, so a test can interleave
// other operations with an in-flight detect call.
type gateDetector struct {
	started    chan struct{}
	release    chan struct{}
	detections []models.Detection
}

func (d *gateDetector) Detect(Frame, float64) ([]models.Detection, error) {
	close(d.started)
	<-d.release
	return d.detections, nil
}

func (d *gateDetector) Close() error { return nil }

// A disable arriving while a detect call is in flight must win: the late
// result may not overwrite the cleared snapshot.
func TestScheduler_DisableDuringDetectStaysClear(t *testing.T) {
	detector := &gateDetector{
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		detections: []models.Detection{{Label: "person", Confidence: 0.9}},
	}
	loader := func(id string) (Detector, error) { return detector, nil }

	buffer := NewFrameBuffer()
	state := NewStateStore(0.5)
	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()
	registry.RequestModel("ssd_mobilenet")

	publisher := &fakePublisher{}
	scheduler := NewScheduler("detect", 100*time.Millisecond, time.Second,
		buffer, state, registry, publisher, SystemClock{}, testLogger(t))

	state.SetEnabled(true)
	buffer.Put(Frame{Data: []byte("jpeg"), Timestamp: time.Now()})

	done := make(chan struct{})
	go func() {
		scheduler.Cycle()
		close(done)
	}()

	<-detector.started
	state.SetEnabled(false)
	close(detector.release)
	<-done

	if snap := state.Current(); len(snap.Detections) != 0 {
		t.Errorf("Disabled pipeline holds %d stale detections (gen %d), expected none", len(snap.Detections), snap.Generation)
	}
}

func TestScheduler_SkipsRepeatedFrame(t *testing.T) {
	f := newSchedulerFixture(t, time.Second)
	f.state.SetEnabled(true)
	f.detector.detections = []models.Detection{{Label: "person", Confidence: 0.9}}

	f.buffer.Put(Frame{Data: []byte("jpeg")})
	f.scheduler.Cycle()
	f.scheduler.Cycle()
	f.scheduler.Cycle()

	if calls := f.detector.callCount(); calls != 1 {
		t.Errorf("Detector ran %d times on one frame, expected 1", calls)
	}
	if f.publisher.snapshotCount() != 1 {
		t.Errorf("Published %d snapshots for one frame, expected 1", f.publisher.snapshotCount())
	}
}

func TestScheduler_HoldsSnapshotOnDetectorError(t *testing.T) {
	f := newSchedulerFixture(t, time.Second)
	f.state.SetEnabled(true)
	f.detector.detections = []models.Detection{{Label: "person", Confidence: 0.9}}

	f.buffer.Put(Frame{Data: []byte("jpeg")})
	f.scheduler.Cycle()
	held := f.state.Current()

	f.detector.mu.Lock()
	f.detector.err = ErrFrameUnavailable
	f.detector.mu.Unlock()

	f.buffer.Put(Frame{Data: []byte("jpeg2")})
	f.scheduler.Cycle()

	if got := f.state.Current(); got.Generation != held.Generation {
		t.Errorf("Failed cycle changed the snapshot: gen %d -> %d", held.Generation, got.Generation)
	}
	if f.publisher.snapshotCount() != 1 {
		t.Errorf("Failed cycle published a snapshot")
	}

	// Recovery: the same frame is retried, not skipped.
	f.detector.mu.Lock()
	f.detector.err = nil
	f.detector.mu.Unlock()

	f.scheduler.Cycle()
	if got := f.state.Current(); got.Generation != held.Generation+1 {
		t.Errorf("Recovery did not publish: gen %d", got.Generation)
	}
}

func TestScheduler_HoldsSnapshotOnTimeout(t *testing.T) {
	f := newSchedulerFixture(t, 20*time.Millisecond)
	f.state.SetEnabled(true)
	f.detector.detections = []models.Detection{{Label: "person", Confidence: 0.9}}

	f.buffer.Put(Frame{Data: []byte("jpeg")})
	f.scheduler.Cycle()
	held := f.state.Current()

	f.detector.mu.Lock()
	f.detector.delay = 200 * time.Millisecond
	f.detector.mu.Unlock()

	f.buffer.Put(Frame{Data: []byte("jpeg2")})
	f.scheduler.Cycle()

	if got := f.state.Current(); got.Generation != held.Generation {
		t.Errorf("Timed-out cycle changed the snapshot: gen %d -> %d", held.Generation, got.Generation)
	}
}

func TestScheduler_TrackIDsStableAcrossFrames(t *testing.T) {
	f := newSchedulerFixture(t, time.Second)
	f.state.SetEnabled(true)
	f.detector.detections = []models.Detection{
		{Label: "person", Confidence: 0.9, X1: 10, Y1: 10, X2: 100, Y2: 200},
	}

	f.buffer.Put(Frame{Data: []byte("a")})
	f.scheduler.Cycle()
	first := f.publisher.lastSnapshot().Detections[0].TrackID

	// Same object, slightly moved.
	f.detector.mu.Lock()
	f.detector.detections = []models.Detection{
		{Label: "person", Confidence: 0.9, X1: 15, Y1: 12, X2: 105, Y2: 202},
	}
	f.detector.mu.Unlock()

	f.buffer.Put(Frame{Data: []byte("b")})
	f.scheduler.Cycle()
	second := f.publisher.lastSnapshot().Detections[0].TrackID

	if first != second {
		t.Errorf("TrackID changed across overlapping frames: %d -> %d", first, second)
	}
}

func TestScheduler_TrackerResetsOnModelSwap(t *testing.T) {
	detectors := map[string]*fakeDetector{
		"a": {detections: []models.Detection{{Label: "person", Confidence: 0.9, X1: 10, Y1: 10, X2: 100, Y2: 200}}},
		"b": {detections: []models.Detection{{Label: "person", Confidence: 0.9, X1: 10, Y1: 10, X2: 100, Y2: 200}}},
	}
	loader := func(id string) (Detector, error) { return detectors[id], nil }

	buffer := NewFrameBuffer()
	state := NewStateStore(0.5)
	registry := NewRegistry(loader, testLogger(t))
	defer registry.Close()
	registry.RequestModel("a")

	publisher := &fakePublisher{}
	scheduler := NewScheduler("detect", 100*time.Millisecond, time.Second,
		buffer, state, registry, publisher, SystemClock{}, testLogger(t))

	state.SetEnabled(true)
	buffer.Put(Frame{Data: []byte("a")})
	scheduler.Cycle()
	first := publisher.lastSnapshot().Detections[0].TrackID

	registry.RequestModel("b")
	buffer.Put(Frame{Data: []byte("b")})
	scheduler.Cycle()
	second := publisher.lastSnapshot().Detections[0].TrackID

	if second == first {
		t.Errorf("TrackID %d survived a model swap, expected a fresh id", second)
	}
}
