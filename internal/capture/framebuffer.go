package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the most recent webcam frame as a JPEG so it can be
// rendered by any number of viewers without touching the camera.
// It is updated once per detection tick.
type FrameBuffer struct {
	mu      sync.RWMutex
	jpeg    []byte
	updated time.Time
	seq     uint64
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Update encodes frame as JPEG and stores it.
func (b *FrameBuffer) Update(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("encode frame: empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	b.Store(buf.GetBytes(), time.Now())
	return nil
}

// Store replaces the buffered JPEG with a copy of data.
func (b *FrameBuffer) Store(data []byte, at time.Time) {
	jpeg := make([]byte, len(data))
	copy(jpeg, data)

	b.mu.Lock()
	b.jpeg = jpeg
	b.updated = at
	b.seq++
	b.mu.Unlock()
}

// Latest returns the buffered JPEG and its sequence number.
// ok is false until the first frame has been stored.
func (b *FrameBuffer) Latest() (jpeg []byte, seq uint64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.seq == 0 {
		return nil, 0, false
	}
	return b.jpeg, b.seq, true
}

// Updated returns when the buffer was last written.
func (b *FrameBuffer) Updated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}
