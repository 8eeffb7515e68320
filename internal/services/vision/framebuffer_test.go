package vision

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func TestFrameBuffer_EmptyGet(t *testing.T) {
	buffer := NewFrameBuffer()

	if _, ok := buffer.Get(); ok {
		t.Error("Get on an empty buffer should report no frame")
	}
	if seq := buffer.Seq(); seq != 0 {
		t.Errorf("Empty buffer Seq = %d, expected 0", seq)
	}
}

func TestFrameBuffer_LatestWins(t *testing.T) {
	buffer := NewFrameBuffer()

	buffer.Put(Frame{Data: []byte("first")})
	buffer.Put(Frame{Data: []byte("second")})
	buffer.Put(Frame{Data: []byte("third")})

	frame, ok := buffer.Get()
	if !ok {
		t.Fatal("Expected a frame after Put")
	}
	if string(frame.Data) != "third" {
		t.Errorf("Got frame %q, expected the latest", frame.Data)
	}
	if frame.Seq != 3 {
		t.Errorf("Frame Seq = %d, expected 3", frame.Seq)
	}
}

func TestFrameBuffer_MonotonicSeq(t *testing.T) {
	buffer := NewFrameBuffer()

	var last uint64
	for i := 0; i < 100; i++ {
		buffer.Put(Frame{Data: []byte{byte(i)}, Timestamp: time.Now()})
		frame, ok := buffer.Get()
		if !ok {
			t.Fatal("Expected a frame")
		}
		if frame.Seq <= last {
			t.Fatalf("Seq went backwards: %d after %d", frame.Seq, last)
		}
		last = frame.Seq
	}
}

func TestFrameBuffer_GetReturnsCopy(t *testing.T) {
	buffer := NewFrameBuffer()
	buffer.Put(Frame{Data: []byte("original")})

	frame, _ := buffer.Get()
	frame.Data[0] = 'X'

	again, _ := buffer.Get()
	if !bytes.Equal(again.Data, []byte("original")) {
		t.Errorf("Stored frame was mutated through a Get copy: %q", again.Data)
	}
}

func TestFrameBuffer_ConcurrentPutGet(t *testing.T) {
	buffer := NewFrameBuffer()

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			buffer.Put(Frame{Data: []byte{byte(i)}})
		}
		close(done)
	}()

	var last uint64
	for {
		frame, ok := buffer.Get()
		if ok {
			if frame.Seq < last {
				t.Errorf("Reader saw Seq %d after %d", frame.Seq, last)
				break
			}
			last = frame.Seq
		}
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
	}
	wg.Wait()
}
