package lanedet

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"roicam/camera"
)

// FrameTap is the slice of a camera source the worker reads from: the
// latest captured frame, cloned for the caller.
type FrameTap interface {
	Camera() camera.ID
	Latest() (camera.Frame, bool)
}

// Result is one finished inference pass over one frame.
type Result struct {
	Camera    camera.ID
	Seq       uint64
	Timestamp time.Time
	Lanes     []Lane
}

// DefaultInterval paces inference at roughly capture rate; frames
// arriving faster than the model runs are skipped, never queued.
const DefaultInterval = 33 * time.Millisecond

// Worker runs the detector on its own goroutine, always against the
// newest frame. When built without a detector it is disabled: Start and
// Stop are no-ops and Latest never reports a result, while capture and
// display continue untouched.
type Worker struct {
	detector *Detector
	tap      FrameTap
	interval time.Duration

	latest atomic.Pointer[Result]

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewWorker pairs a detector with a frame tap. A nil detector yields a
// disabled worker.
func NewWorker(detector *Detector, tap FrameTap, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{detector: detector, tap: tap, interval: interval}
}

// Disabled reports whether the worker runs without a model.
func (w *Worker) Disabled() bool {
	return w.detector == nil
}

// Start launches the inference loop. No-op when disabled or running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.detector == nil {
		debugMsg("LANEDET", "no model loaded, lane detection disabled")
		return
	}
	if w.started {
		return
	}
	w.started = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.stop, w.done)
}

// Stop terminates the loop, waiting out at most one in-flight inference.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done
}

// Latest returns the most recent inference result, or nil when none
// exists yet or the worker is disabled.
func (w *Worker) Latest() *Result {
	return w.latest.Load()
}

func (w *Worker) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		frame, ok := w.tap.Latest()
		if !ok {
			continue
		}
		if frame.Seq == lastSeq {
			frame.Image.Close()
			continue
		}
		lastSeq = frame.Seq

		lanes, err := w.detector.Detect(frame.Image)
		frame.Image.Close()
		if err != nil {
			debugMsg("LANEDET_ERROR", fmt.Sprintf("%s inference failed: %v", frame.Camera, err))
			continue
		}

		w.latest.Store(&Result{
			Camera:    frame.Camera,
			Seq:       frame.Seq,
			Timestamp: frame.Timestamp,
			Lanes:     lanes,
		})
	}
}
