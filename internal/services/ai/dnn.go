package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"robodash/internal/logger"
	"robodash/internal/models"
	"robodash/internal/services/vision"
)

// DNNDetector runs an SSD-style detection network through gocv. The forward
// pass emits rows of 7 floats: [batch, classID, confidence, left, top, right,
// bottom] with normalized coordinates.
type DNNDetector struct {
	net       gocv.Net
	labels    []string
	inputSize int
	mu        sync.Mutex // serializes net access against Close
	closed    bool
}

// NewDetector loads the model described by a catalog entry. The returned
// detector is fixed-vocabulary; use NewWorldDetector for entries declaring
// mode "dynamic".
func NewDetector(catalog *Catalog, id string) (*DNNDetector, error) {
	entry, err := catalog.Entry(id)
	if err != nil {
		return nil, err
	}

	weights := catalog.resolve(entry.Weights)
	if _, err := os.Stat(weights); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", weights)
	}

	configPath := ""
	if entry.Config != "" {
		configPath = catalog.resolve(entry.Config)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}

	labels, err := catalog.Classes(id)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(weights, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network for %q", id)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set network backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set network target: %w", err)
	}

	return &DNNDetector{
		net:       net,
		labels:    labels,
		inputSize: entry.InputSize,
	}, nil
}

// Detect decodes the frame and returns all objects at or above the
// confidence threshold.
func (d *DNNDetector) Detect(frame vision.Frame, confidence float64) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detector is closed")
	}

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded frame is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	var results []models.Detection

	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	imgWidth := float32(mat.Cols())
	imgHeight := float32(mat.Rows())

	for i := 0; i < reshaped.Rows(); i++ {
		score := float64(reshaped.GetFloatAt(i, 2))
		if score < confidence {
			continue
		}

		classID := int(reshaped.GetFloatAt(i, 1))
		label := d.label(classID)
		if label == "" {
			continue
		}

		results = append(results, models.Detection{
			Label:      label,
			Confidence: score,
			X1:         int(reshaped.GetFloatAt(i, 3) * imgWidth),
			Y1:         int(reshaped.GetFloatAt(i, 4) * imgHeight),
			X2:         int(reshaped.GetFloatAt(i, 5) * imgWidth),
			Y2:         int(reshaped.GetFloatAt(i, 6) * imgHeight),
			TrackID:    -1,
		})
	}

	return results, nil
}

// label maps a network class id to its name. SSD class ids are 1-based
// against the label file.
func (d *DNNDetector) label(classID int) string {
	idx := classID - 1
	if idx < 0 || idx >= len(d.labels) {
		return ""
	}
	return d.labels[idx]
}

// Labels returns the full class list the network can produce.
func (d *DNNDetector) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Close releases the network. Safe to call once all detect calls finished.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// WorldDetector wraps a DNNDetector whose recognizable class set can be
// restricted at runtime, implementing the vision.DynamicVocabulary
// capability. Classes outside the active vocabulary are dropped before the
// results leave the detector, mirroring open-vocabulary models that only
// score the prompted classes.
type WorldDetector struct {
	*DNNDetector

	vocabMu sync.RWMutex
	vocab   []string
	allowed map[string]bool
}

// NewWorldDetector loads a dynamic-vocabulary model from the catalog. The
// initial vocabulary is the model's full class list.
func NewWorldDetector(catalog *Catalog, id string) (*WorldDetector, error) {
	base, err := NewDetector(catalog, id)
	if err != nil {
		return nil, err
	}
	return &WorldDetector{DNNDetector: base}, nil
}

// SetVocabulary restricts the detector to the given classes. Unknown classes
// are rejected so a typo cannot silently disable detection.
func (d *WorldDetector) SetVocabulary(classes []string) error {
	if len(classes) == 0 {
		return fmt.Errorf("vocabulary must not be empty")
	}

	known := make(map[string]bool, len(d.labels))
	for _, l := range d.labels {
		known[l] = true
	}

	allowed := make(map[string]bool, len(classes))
	for _, c := range classes {
		if !known[c] {
			return fmt.Errorf("class %q is not supported by this model", c)
		}
		allowed[c] = true
	}

	d.vocabMu.Lock()
	d.vocab = append([]string(nil), classes...)
	d.allowed = allowed
	d.vocabMu.Unlock()
	return nil
}

// Vocabulary returns the active class vocabulary (the full class list when
// never restricted).
func (d *WorldDetector) Vocabulary() []string {
	d.vocabMu.RLock()
	defer d.vocabMu.RUnlock()

	if d.vocab == nil {
		return d.Labels()
	}
	return append([]string(nil), d.vocab...)
}

// Detect runs the base network and keeps only results inside the active
// vocabulary.
func (d *WorldDetector) Detect(frame vision.Frame, confidence float64) ([]models.Detection, error) {
	results, err := d.DNNDetector.Detect(frame, confidence)
	if err != nil {
		return nil, err
	}

	d.vocabMu.RLock()
	allowed := d.allowed
	d.vocabMu.RUnlock()

	if allowed == nil {
		return results, nil
	}

	filtered := results[:0]
	for _, r := range results {
		if allowed[r.Label] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// NewLoader builds the vision.Loader used by the model registry: it loads
// catalog entries on demand, picking the detector type from the declared
// vocabulary mode.
func NewLoader(catalog *Catalog, log *logger.Logger) vision.Loader {
	return func(id string) (vision.Detector, error) {
		entry, err := catalog.Entry(id)
		if err != nil {
			return nil, err
		}

		if entry.Mode == "dynamic" {
			detector, err := NewWorldDetector(catalog, id)
			if err != nil {
				return nil, err
			}
			log.Info("🤖 Loaded dynamic-vocabulary model %q", id)
			return detector, nil
		}

		detector, err := NewDetector(catalog, id)
		if err != nil {
			return nil, err
		}
		log.Info("🤖 Loaded model %q (%d classes)", id, len(detector.labels))
		return detector, nil
	}
}
