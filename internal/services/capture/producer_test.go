package capture

import (
	"errors"
	"testing"
	"time"

	"robodash/internal/logger"
	"robodash/internal/services/vision"
)

// scriptedSource replays a fixed sequence of read results.
type scriptedSource struct {
	frames []vision.Frame
	errs   []error
	step   int
	closed bool
}

func (s *scriptedSource) Read() (vision.Frame, error) {
	if s.step >= len(s.errs) {
		return vision.Frame{}, ErrSourceClosed
	}
	frame, err := s.frames[s.step], s.errs[s.step]
	s.step++
	return frame, err
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func newTestProducer(t *testing.T, source Source, buffer *vision.FrameBuffer) *Producer {
	t.Helper()
	return NewProducer(source, buffer, 33*time.Millisecond, vision.SystemClock{}, logger.New(t.TempDir()))
}

func TestProducer_FramesReachBuffer(t *testing.T) {
	source := &scriptedSource{
		frames: []vision.Frame{
			{Data: []byte("a"), Timestamp: time.Now()},
			{Data: []byte("b"), Timestamp: time.Now()},
		},
		errs: []error{nil, nil},
	}
	buffer := vision.NewFrameBuffer()
	producer := newTestProducer(t, source, buffer)

	producer.cycle()
	producer.cycle()

	frame, ok := buffer.Get()
	if !ok {
		t.Fatal("Expected a buffered frame")
	}
	if string(frame.Data) != "b" || frame.Seq != 2 {
		t.Errorf("Buffered frame = %q seq %d, expected the latest at seq 2", frame.Data, frame.Seq)
	}
}

func TestProducer_TransientErrorContinues(t *testing.T) {
	source := &scriptedSource{
		frames: []vision.Frame{{}, {Data: []byte("ok")}},
		errs:   []error{errors.New("decode glitch"), nil},
	}
	buffer := vision.NewFrameBuffer()
	producer := newTestProducer(t, source, buffer)

	if done := producer.cycle(); done {
		t.Fatal("Transient error stopped the producer")
	}
	if done := producer.cycle(); done {
		t.Fatal("Recovered cycle stopped the producer")
	}

	frame, ok := buffer.Get()
	if !ok || string(frame.Data) != "ok" {
		t.Errorf("Recovery frame missing from buffer: %q, %v", frame.Data, ok)
	}
}

func TestProducer_ClosedSourceStops(t *testing.T) {
	source := &scriptedSource{}
	buffer := vision.NewFrameBuffer()
	producer := newTestProducer(t, source, buffer)

	if done := producer.cycle(); !done {
		t.Error("Closed source did not stop the producer")
	}
	if _, ok := buffer.Get(); ok {
		t.Error("Closed source produced a frame")
	}
}
