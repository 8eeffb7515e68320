package ai

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"robodash/internal/models"
	"robodash/internal/services/vision"
)

// PlacesClassifier scores frames against the Places365 scene taxonomy using
// a GoogLeNet Caffe model. It backs the slow contextual tier.
type PlacesClassifier struct {
	net    gocv.Net
	labels []string
	mu     sync.Mutex
	closed bool
}

// NewPlacesClassifier loads the Caffe model and its label file.
// labelsPath holds one scene label per line, ordered by network output index.
func NewPlacesClassifier(prototxtPath, caffemodelPath, labelsPath string) (*PlacesClassifier, error) {
	for _, path := range []string{prototxtPath, caffemodelPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("scene model file not found: %s", path)
		}
	}

	labels, err := readLabelFile(labelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromCaffe(prototxtPath, caffemodelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load scene classification network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set network backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set network target: %w", err)
	}

	return &PlacesClassifier{net: net, labels: labels}, nil
}

// Classify returns all scene predictions ordered by descending score.
func (c *PlacesClassifier) Classify(frame vision.Frame) ([]models.ScenePrediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("classifier is closed")
	}

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded frame is empty")
	}

	// GoogLeNet Places365 expects 224x224 with mean (104, 117, 123).
	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(224, 224),
		gocv.NewScalar(104, 117, 123, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	prob := c.net.Forward("")
	defer prob.Close()

	total := prob.Total()
	predictions := make([]models.ScenePrediction, 0, total)
	for i := 0; i < total; i++ {
		label := fmt.Sprintf("class_%d", i)
		if i < len(c.labels) {
			label = c.labels[i]
		}
		predictions = append(predictions, models.ScenePrediction{
			Label: label,
			Score: float64(prob.GetFloatAt(0, i)),
		})
	}

	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].Score > predictions[j].Score
	})
	return predictions, nil
}

// Close releases the network.
func (c *PlacesClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.net.Close()
}
