package overlay

import (
	"sync"
	"time"
)

// FPSCounter measures the rendered frame rate over a one second window.
type FPSCounter struct {
	mu     sync.Mutex
	count  int
	fps    float64
	window time.Time
}

// NewFPSCounter starts an empty counter.
func NewFPSCounter() *FPSCounter {
	return &FPSCounter{window: time.Now()}
}

// Tick records one rendered frame.
func (f *FPSCounter) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if elapsed := time.Since(f.window); elapsed >= time.Second {
		f.fps = float64(f.count) / elapsed.Seconds()
		f.count = 0
		f.window = time.Now()
	}
}

// FPS returns the rate measured over the last completed window.
func (f *FPSCounter) FPS() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fps
}
