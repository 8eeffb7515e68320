package vision

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"robodash/internal/models"
)

type fakeClassifier struct {
	mu          sync.Mutex
	predictions []models.ScenePrediction
	err         error
	calls       int
}

func (c *fakeClassifier) Classify(frame Frame) ([]models.ScenePrediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]models.ScenePrediction(nil), c.predictions...), nil
}

func (c *fakeClassifier) Close() error { return nil }

func newWatcherFixture(t *testing.T) (*SceneWatcher, *FrameBuffer, *fakeClassifier, *fakePublisher) {
	t.Helper()
	buffer := NewFrameBuffer()
	classifier := &fakeClassifier{}
	publisher := &fakePublisher{}
	watcher := NewSceneWatcher(5*time.Second, classifier, buffer, publisher, SystemClock{}, testLogger(t))
	return watcher, buffer, classifier, publisher
}

func TestSceneWatcher_StartsDisabled(t *testing.T) {
	watcher, buffer, classifier, publisher := newWatcherFixture(t)

	buffer.Put(Frame{Data: []byte("jpeg")})
	watcher.Cycle()

	if classifier.calls != 0 || len(publisher.predictions) != 0 {
		t.Error("Disabled watcher ran the classifier")
	}
	if watcher.Enabled() {
		t.Error("Watcher should start disabled")
	}
}

func TestSceneWatcher_PublishesTopPredictions(t *testing.T) {
	watcher, buffer, classifier, publisher := newWatcherFixture(t)
	watcher.SetEnabled(true)

	for i := 0; i < 8; i++ {
		classifier.predictions = append(classifier.predictions, models.ScenePrediction{
			Label: fmt.Sprintf("scene_%d", i),
			Score: 1.0 - float64(i)*0.1,
		})
	}

	buffer.Put(Frame{Data: []byte("jpeg")})
	watcher.Cycle()

	if len(publisher.predictions) != 1 {
		t.Fatalf("Published %d times, expected 1", len(publisher.predictions))
	}
	top := publisher.predictions[0]
	if len(top) != 5 {
		t.Errorf("Published %d predictions, expected the top 5", len(top))
	}
	if top[0].Label != "scene_0" {
		t.Errorf("Top prediction = %q, expected scene_0", top[0].Label)
	}
}

func TestSceneWatcher_SkipsRepeatedFrame(t *testing.T) {
	watcher, buffer, classifier, _ := newWatcherFixture(t)
	watcher.SetEnabled(true)
	classifier.predictions = []models.ScenePrediction{{Label: "kitchen", Score: 0.8}}

	buffer.Put(Frame{Data: []byte("jpeg")})
	watcher.Cycle()
	watcher.Cycle()

	if classifier.calls != 1 {
		t.Errorf("Classifier ran %d times on one frame, expected 1", classifier.calls)
	}
}

func TestSceneWatcher_ErrorKeepsPreviousSuggestions(t *testing.T) {
	watcher, buffer, classifier, publisher := newWatcherFixture(t)
	watcher.SetEnabled(true)
	classifier.predictions = []models.ScenePrediction{{Label: "kitchen", Score: 0.8}}

	buffer.Put(Frame{Data: []byte("a")})
	watcher.Cycle()

	classifier.err = fmt.Errorf("inference failed")
	buffer.Put(Frame{Data: []byte("b")})
	watcher.Cycle()

	if len(publisher.predictions) != 1 {
		t.Errorf("Failed cycle published %d extra results", len(publisher.predictions)-1)
	}

	// The failed frame is retried once the classifier recovers.
	classifier.err = nil
	watcher.Cycle()
	if len(publisher.predictions) != 2 {
		t.Errorf("Recovery cycle did not publish")
	}
}
