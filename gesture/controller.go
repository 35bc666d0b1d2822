// Package gesture turns raw pointer events on a camera view into region
// commits. A drag is previewed live and committed exactly once, on
// release; anything shorter than the minimum drag is treated as a stray
// click and discarded.
package gesture

import (
	"fmt"
	"math"
	"sync"

	"roicam/camera"
)

// State is the drag lifecycle of a Controller.
type State int

const (
	Idle State = iota
	Dragging
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Dragging:
		return "DRAGGING"
	case Committing:
		return "COMMITTING"
	default:
		return "UNKNOWN"
	}
}

// CommitFunc receives the finished rectangle in normalized view
// coordinates. Called exactly once per completed gesture.
type CommitFunc func(r camera.NormRect) error

// DefaultMinDragPx is the drag distance below which a release is
// discarded as an accidental click.
const DefaultMinDragPx = 5

// Controller tracks one pointer drag over one camera view. All methods
// are safe for concurrent use; events arriving in an impossible order
// (a second press mid-drag, a release while idle) are ignored rather
// than corrupting the drag state.
type Controller struct {
	camera    camera.ID
	commit    CommitFunc
	minDragPx float64

	mu      sync.Mutex
	state   State
	width   int
	height  int
	startX  float64
	startY  float64
	curX    float64
	curY    float64
	commits uint64
}

// NewController creates an idle controller for the given camera view.
// The surface size must be set before events arrive.
func NewController(id camera.ID, commit CommitFunc) *Controller {
	return &Controller{
		camera:    id,
		commit:    commit,
		minDragPx: DefaultMinDragPx,
		state:     Idle,
	}
}

// SetMinDrag overrides the accidental-click threshold in view pixels.
func (c *Controller) SetMinDrag(px float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if px > 0 {
		c.minDragPx = px
	}
}

// SetSurfaceSize records the rendered view size used to normalize
// pointer coordinates. A live preview keeps its pixel anchor points.
func (c *Controller) SetSurfaceSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

// State returns the current drag state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PointerDown starts a drag at view pixel (x, y). Ignored unless idle.
func (c *Controller) PointerDown(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle || c.width <= 0 || c.height <= 0 {
		return
	}
	c.state = Dragging
	c.startX, c.startY = x, y
	c.curX, c.curY = x, y
}

// PointerMove updates the live preview corner. Ignored unless dragging.
func (c *Controller) PointerMove(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return
	}
	c.curX, c.curY = x, y
}

// PointerUp finishes the drag. A drag shorter than the minimum on
// either axis is discarded, so a purely horizontal or vertical drag
// never commits a zero-area rectangle; otherwise the rectangle is
// normalized (the drag may run in any direction) and handed to the
// commit callback exactly once.
func (c *Controller) PointerUp(x, y float64) {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return
	}
	c.curX, c.curY = x, y

	dx := math.Abs(x - c.startX)
	dy := math.Abs(y - c.startY)
	if dx < c.minDragPx || dy < c.minDragPx {
		c.state = Idle
		c.mu.Unlock()
		debugMsg("GESTURE", fmt.Sprintf("%s drag below threshold, discarded", c.camera))
		return
	}

	rect := normalizedRect(c.startX, c.startY, x, y, c.width, c.height)
	commit := c.commit
	c.commits++
	c.state = Committing
	c.mu.Unlock()

	debugMsg("GESTURE", fmt.Sprintf("%s committing (%.3f,%.3f %.3fx%.3f)", c.camera, rect.X, rect.Y, rect.W, rect.H))
	if commit != nil {
		if err := commit(rect); err != nil {
			debugMsg("GESTURE_ERROR", fmt.Sprintf("%s commit rejected: %v", c.camera, err))
		}
	}

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
}

// Cancel abandons an in-progress drag without committing. Used when the
// pointer leaves the view or the app loses focus mid-drag.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Dragging {
		c.state = Idle
		debugMsg("GESTURE", fmt.Sprintf("%s drag cancelled", c.camera))
	}
}

// Preview returns the in-progress rectangle in normalized coordinates,
// or ok=false when no drag is active. The overlay renders this live.
func (c *Controller) Preview() (camera.NormRect, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging || c.width <= 0 || c.height <= 0 {
		return camera.NormRect{}, false
	}
	return normalizedRect(c.startX, c.startY, c.curX, c.curY, c.width, c.height), true
}

// normalizedRect converts two pixel corners, in either order, to a
// normalized rectangle clamped to the view.
func normalizedRect(x0, y0, x1, y1 float64, width, height int) camera.NormRect {
	left := math.Min(x0, x1)
	top := math.Min(y0, y1)
	right := math.Max(x0, x1)
	bottom := math.Max(y0, y1)

	w := float64(width)
	h := float64(height)
	left = math.Max(0, math.Min(left, w))
	top = math.Max(0, math.Min(top, h))
	right = math.Max(0, math.Min(right, w))
	bottom = math.Max(0, math.Min(bottom, h))

	return camera.NormRect{
		X: left / w,
		Y: top / h,
		W: (right - left) / w,
		H: (bottom - top) / h,
	}
}
