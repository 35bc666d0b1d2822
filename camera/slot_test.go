package camera

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func testFrame(t *testing.T, fill uint8) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(float64(fill), float64(fill), float64(fill), 0))
	return m
}

func TestSlotLatestReturnsClone(t *testing.T) {
	s := NewFrameSlot(CamA)
	defer s.Close()

	if _, ok := s.Latest(); ok {
		t.Fatal("empty slot should report no frame")
	}

	s.Publish(testFrame(t, 10), time.Now())
	f1, ok := s.Latest()
	if !ok {
		t.Fatal("expected a frame after publish")
	}
	f2, ok := s.Latest()
	if !ok {
		t.Fatal("expected a second read to succeed")
	}
	// Closing one reader's copy must not invalidate the other's.
	f1.Image.Close()
	if f2.Image.Empty() {
		t.Fatal("reader copies must be independent")
	}
	f2.Image.Close()

	if f1.Camera != CamA {
		t.Errorf("frame should carry the camera identity, got %s", f1.Camera)
	}
	if f1.Seq != 1 {
		t.Errorf("first publish should have seq 1, got %d", f1.Seq)
	}
}

func TestSlotPublishOverwrites(t *testing.T) {
	s := NewFrameSlot(CamB)
	defer s.Close()

	s.Publish(testFrame(t, 1), time.Now())
	s.Publish(testFrame(t, 2), time.Now())
	s.Publish(testFrame(t, 3), time.Now())

	f, ok := s.Latest()
	if !ok {
		t.Fatal("expected a frame")
	}
	defer f.Image.Close()
	if f.Seq != 3 {
		t.Errorf("latest should be the newest publish, seq %d", f.Seq)
	}
	if got := s.Overwrites(); got != 2 {
		t.Errorf("expected 2 overwrites, got %d", got)
	}
}

func TestSlotNextBlocksUntilNewer(t *testing.T) {
	s := NewFrameSlot(CamA)
	defer s.Close()

	s.Publish(testFrame(t, 1), time.Now())

	got := make(chan Frame, 1)
	go func() {
		f, ok := s.Next(1)
		if ok {
			got <- f
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("Next should not return before a newer frame arrives")
	case <-time.After(20 * time.Millisecond):
	}

	s.Publish(testFrame(t, 2), time.Now())
	select {
	case f, ok := <-got:
		if !ok {
			t.Fatal("Next should deliver the newer frame")
		}
		if f.Seq != 2 {
			t.Errorf("expected seq 2, got %d", f.Seq)
		}
		f.Image.Close()
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on publish")
	}
}

func TestSlotConcurrentReadersSeeWholeFrames(t *testing.T) {
	s := NewFrameSlot(CamA)
	defer s.Close()

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		fill := uint8(0)
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Every pixel of a frame carries the same value, so a torn
			// read would show up as a mixed-value image.
			m := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
			m.SetTo(gocv.NewScalar(float64(fill), float64(fill), float64(fill), 0))
			s.Publish(m, time.Now())
			fill++
		}
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		f, ok := s.Latest()
		if !ok {
			continue
		}
		first := f.Image.GetVecbAt(0, 0)
		last := f.Image.GetVecbAt(7, 7)
		f.Image.Close()
		if first[0] != last[0] {
			close(stop)
			<-writerDone
			t.Fatalf("torn frame observed: %d vs %d", first[0], last[0])
		}
	}
	close(stop)
	<-writerDone
}

func TestSlotCloseWakesReaders(t *testing.T) {
	s := NewFrameSlot(CamC)

	released := make(chan bool, 1)
	go func() {
		_, ok := s.Next(0)
		released <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-released:
		if ok {
			t.Fatal("Next should report not-ok after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the blocked reader")
	}

	// Publishing after Close must not leak or resurrect the slot.
	s.Publish(testFrame(t, 5), time.Now())
	if _, ok := s.Latest(); ok {
		t.Fatal("closed slot should not hand out frames")
	}
}
