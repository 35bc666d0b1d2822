package camera

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one decoded image plus capture metadata. Frames handed out by
// a FrameSlot are clones owned by the caller, which must Close them.
type Frame struct {
	Image     gocv.Mat
	Camera    ID
	Seq       uint64
	Timestamp time.Time
}

// FrameSlot is a single-element latest-frame holder. Each publish
// overwrites (and closes) the previously stored Mat; readers always
// observe the newest available frame or none. Writers never block on
// readers and readers never block the writer.
type FrameSlot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	camera ID

	img     gocv.Mat
	present bool
	seq     uint64
	stamp   time.Time

	overwrites uint64
	closed     bool
}

// NewFrameSlot creates an empty slot for the given camera.
func NewFrameSlot(camera ID) *FrameSlot {
	s := &FrameSlot{camera: camera}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish stores img as the newest frame, taking ownership of it. The
// evicted frame, if any, is closed. Safe to call concurrently with reads.
func (s *FrameSlot) Publish(img gocv.Mat, stamp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		img.Close()
		return
	}
	if s.present {
		s.img.Close()
		s.overwrites++
	}
	s.img = img
	s.present = true
	s.seq++
	s.stamp = stamp
	s.cond.Broadcast()
}

// Latest returns a clone of the newest frame, or ok=false if none has
// been published yet. The caller owns the returned Mat.
func (s *FrameSlot) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.present || s.closed {
		return Frame{}, false
	}
	return s.snapshotLocked(), true
}

// Next blocks until a frame newer than afterSeq is available and returns
// a clone of it. Returns ok=false once the slot is closed. Used by
// consumers that pull at capture rate (recording) rather than poll.
func (s *FrameSlot) Next(afterSeq uint64) (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for (!s.present || s.seq <= afterSeq) && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return Frame{}, false
	}
	return s.snapshotLocked(), true
}

func (s *FrameSlot) snapshotLocked() Frame {
	return Frame{
		Image:     s.img.Clone(),
		Camera:    s.camera,
		Seq:       s.seq,
		Timestamp: s.stamp,
	}
}

// Seq returns the sequence number of the newest published frame.
func (s *FrameSlot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Overwrites returns how many frames were replaced before a newer
// publish, i.e. the intentional drop count.
func (s *FrameSlot) Overwrites() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwrites
}

// Close releases the stored frame and wakes all blocked readers. The slot
// accepts no further publishes.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.present {
		s.img.Close()
		s.present = false
	}
	s.cond.Broadcast()
}
