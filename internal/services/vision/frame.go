package vision

import "time"

// Frame is a captured camera image, JPEG-encoded.
//
// Frames are immutable once published: the producer must not touch Data after
// handing the frame to a FrameBuffer, and readers receive their own copy.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time

	// Seq is assigned by the FrameBuffer on Put and increases monotonically.
	// Consumers use it to skip cycles when no new frame arrived.
	Seq uint64
}
