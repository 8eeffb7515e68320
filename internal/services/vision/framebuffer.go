package vision

import "sync"

// FrameBuffer is a single-slot latest-frame cache between the capture
// producer and the inference consumers.
//
// It is a latest-wins cache, not a queue: inference runs slower than capture,
// and queuing frames would only add unbounded latency. Put overwrites any
// unconsumed frame; Get always returns the most recent frame as of the call,
// so reads are monotonic in frame sequence.
type FrameBuffer struct {
	mu    sync.Mutex
	frame Frame
	seq   uint64
	full  bool
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Put stores the frame as the latest, overwriting any previous one.
// It assigns the frame's sequence number and never blocks.
func (b *FrameBuffer) Put(frame Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	frame.Seq = b.seq
	b.frame = frame
	b.full = true
}

// Get returns a copy of the latest frame, or false if nothing has been
// produced yet. The copy has its own Data slice so a later Put cannot
// mutate what the caller holds.
func (b *FrameBuffer) Get() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return Frame{}, false
	}

	frame := b.frame
	frame.Data = make([]byte, len(b.frame.Data))
	copy(frame.Data, b.frame.Data)
	return frame, true
}

// Seq returns the sequence number of the latest stored frame (0 if empty).
func (b *FrameBuffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
