package overlay

import (
	"fmt"
	"sync"
	"time"

	"roicam/camera"
	"roicam/lanedet"
	"roicam/roi"

	"gocv.io/x/gocv"
)

// FrameProvider is the slice of a camera source the compositor reads:
// newest frame plus connection status.
type FrameProvider interface {
	Camera() camera.ID
	Latest() (camera.Frame, bool)
	Status() camera.Status
}

// RegionProvider reports the committed metering region for a camera.
type RegionProvider interface {
	Get(id camera.ID) (roi.ROI, bool)
}

// PreviewProvider reports an in-progress drag rectangle.
type PreviewProvider interface {
	Preview() (camera.NormRect, bool)
}

// ResultProvider reports the newest lane inference result.
type ResultProvider interface {
	Latest() *lanedet.Result
}

// Sink receives each composed frame and takes ownership of the Mat.
type Sink func(id camera.ID, img gocv.Mat)

// placeholderWidth/Height size the no-signal card when a camera has
// never produced a frame.
const (
	placeholderWidth  = 640
	placeholderHeight = 360
)

// Compositor periodically snapshots every camera's newest frame and
// state, draws the annotations and hands the result to the sink. It
// only ever reads: slow consumers cost dropped frames, never capture
// stalls.
type Compositor struct {
	renderer *Renderer
	sink     Sink
	interval time.Duration

	mu       sync.Mutex
	sources  []FrameProvider
	regions  RegionProvider
	previews map[camera.ID]PreviewProvider
	results  map[camera.ID]ResultProvider
	counters map[camera.ID]*FPSCounter

	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewCompositor creates a compositor ticking at the given display rate.
func NewCompositor(renderer *Renderer, sink Sink, fps int) *Compositor {
	if fps <= 0 {
		fps = 30
	}
	return &Compositor{
		renderer: renderer,
		sink:     sink,
		interval: time.Second / time.Duration(fps),
		previews: make(map[camera.ID]PreviewProvider),
		results:  make(map[camera.ID]ResultProvider),
		counters: make(map[camera.ID]*FPSCounter),
	}
}

// AddSource registers a camera view.
func (c *Compositor) AddSource(src FrameProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
	c.counters[src.Camera()] = NewFPSCounter()
}

// SetRegions wires the metering region state into the display.
func (c *Compositor) SetRegions(p RegionProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regions = p
}

// SetPreview wires a camera's drag preview into the display.
func (c *Compositor) SetPreview(id camera.ID, p PreviewProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previews[id] = p
}

// SetResults wires a camera's lane results into the display.
func (c *Compositor) SetResults(id camera.ID, p ResultProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[id] = p
}

// FPS returns the measured display rate for a camera.
func (c *Compositor) FPS(id camera.ID) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.counters[id]; ok {
		return f.FPS()
	}
	return 0
}

// Start launches the display loop.
func (c *Compositor) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// Stop terminates the display loop.
func (c *Compositor) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done
}

func (c *Compositor) run(stop, done chan struct{}) {
	defer close(done)
	debugMsg("COMPOSITOR", fmt.Sprintf("display loop started, interval %s", c.interval))
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.RenderOnce()
		}
	}
}

// RenderOnce composes one frame per camera from the current snapshots.
func (c *Compositor) RenderOnce() {
	c.mu.Lock()
	sources := make([]FrameProvider, len(c.sources))
	copy(sources, c.sources)
	regions := c.regions
	c.mu.Unlock()

	for _, src := range sources {
		c.renderCamera(src, regions)
	}
}

func (c *Compositor) renderCamera(src FrameProvider, regions RegionProvider) {
	id := src.Camera()
	status := src.Status()

	var img gocv.Mat
	frame, ok := src.Latest()
	if ok {
		img = frame.Image
	} else {
		img = c.renderer.Placeholder(placeholderWidth, placeholderHeight, id, status)
	}

	if regions != nil {
		if region, ok := regions.Get(id); ok {
			c.renderer.DrawROI(&img, region)
		}
	}

	c.mu.Lock()
	preview := c.previews[id]
	results := c.results[id]
	counter := c.counters[id]
	c.mu.Unlock()

	if preview != nil {
		if rect, ok := preview.Preview(); ok {
			c.renderer.DrawPreview(&img, rect)
		}
	}
	if results != nil {
		if res := results.Latest(); res != nil && res.Camera == id {
			c.renderer.DrawLanes(&img, res.Lanes)
		}
	}

	c.renderer.DrawStatus(&img, id, status)
	if counter != nil {
		counter.Tick()
		c.renderer.DrawFPS(&img, counter.FPS())
	}

	if c.sink != nil {
		c.sink(id, img)
	} else {
		img.Close()
	}
}
