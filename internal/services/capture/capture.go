package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"robodash/internal/services/vision"
)

// ErrSourceClosed means the capture source is permanently gone (device
// unplugged or closed). Transient read failures are returned as ordinary
// errors and are retryable.
var ErrSourceClosed = errors.New("capture source closed")

// Source produces frames for the pipeline. Read blocks until a frame is
// available or fails.
type Source interface {
	Read() (vision.Frame, error)
	Close() error
}

// WebcamSource captures JPEG frames from a local camera device through gocv.
type WebcamSource struct {
	cam    *gocv.VideoCapture
	mat    gocv.Mat
	mu     sync.Mutex
	closed bool
}

// OpenWebcam opens the camera device and applies the requested resolution.
func OpenWebcam(device, width, height int) (*WebcamSource, error) {
	cam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", device, err)
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(height))

	return &WebcamSource{cam: cam, mat: gocv.NewMat()}, nil
}

// Read grabs one frame and returns it JPEG-encoded. A closed device returns
// ErrSourceClosed; anything else is transient.
func (s *WebcamSource) Read() (vision.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vision.Frame{}, ErrSourceClosed
	}
	if !s.cam.IsOpened() {
		return vision.Frame{}, ErrSourceClosed
	}

	if ok := s.cam.Read(&s.mat); !ok || s.mat.Empty() {
		return vision.Frame{}, fmt.Errorf("camera read failed")
	}

	buf, err := gocv.IMEncodeWithParams(".jpg", s.mat, []int{gocv.IMWriteJpegQuality, 70})
	if err != nil {
		return vision.Frame{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	return vision.Frame{
		Data:      data,
		Width:     s.mat.Cols(),
		Height:    s.mat.Rows(),
		Timestamp: time.Now(),
	}, nil
}

// Close releases the device.
func (s *WebcamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.cam.Close()
}
