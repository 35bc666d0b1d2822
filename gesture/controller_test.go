package gesture

import (
	"math"
	"sync"
	"testing"

	"roicam/camera"
)

type commitRecorder struct {
	mu    sync.Mutex
	rects []camera.NormRect
}

func (r *commitRecorder) commit(rect camera.NormRect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rects = append(r.rects, rect)
	return nil
}

func (r *commitRecorder) committed() []camera.NormRect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]camera.NormRect, len(r.rects))
	copy(out, r.rects)
	return out
}

func newTestController() (*Controller, *commitRecorder) {
	rec := &commitRecorder{}
	c := NewController(camera.CamA, rec.commit)
	c.SetSurfaceSize(1000, 1000)
	return c, rec
}

func approxEqual(a, b camera.NormRect) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

func TestDragCommitsOnce(t *testing.T) {
	c, rec := newTestController()

	c.PointerDown(100, 100)
	c.PointerMove(250, 250)
	c.PointerMove(380, 390)
	c.PointerUp(400, 400)

	got := rec.committed()
	if len(got) != 1 {
		t.Fatalf("expected exactly one commit, got %d", len(got))
	}
	want := camera.NormRect{X: 0.1, Y: 0.1, W: 0.3, H: 0.3}
	if !approxEqual(got[0], want) {
		t.Fatalf("committed %+v, want %+v", got[0], want)
	}
	if c.State() != Idle {
		t.Fatalf("controller should return to idle, got %s", c.State())
	}
}

func TestDragAnyDirectionNormalizes(t *testing.T) {
	c, rec := newTestController()

	// Drag up-left: corners swap.
	c.PointerDown(400, 400)
	c.PointerUp(100, 100)

	got := rec.committed()
	if len(got) != 1 {
		t.Fatalf("expected one commit, got %d", len(got))
	}
	want := camera.NormRect{X: 0.1, Y: 0.1, W: 0.3, H: 0.3}
	if !approxEqual(got[0], want) {
		t.Fatalf("committed %+v, want %+v", got[0], want)
	}
}

func TestShortDragDiscarded(t *testing.T) {
	c, rec := newTestController()

	c.PointerDown(100, 100)
	c.PointerUp(103, 102)

	if got := rec.committed(); len(got) != 0 {
		t.Fatalf("short drag should not commit, got %v", got)
	}
	if c.State() != Idle {
		t.Fatalf("controller should return to idle, got %s", c.State())
	}
}

func TestDegenerateAxisDragDiscarded(t *testing.T) {
	c, rec := newTestController()

	// A long but perfectly vertical drag would produce a zero-width
	// rectangle; treat it like an accidental click.
	c.PointerDown(100, 100)
	c.PointerUp(100, 400)

	if got := rec.committed(); len(got) != 0 {
		t.Fatalf("zero-width drag should not commit, got %v", got)
	}

	c.PointerDown(100, 100)
	c.PointerUp(400, 100)

	if got := rec.committed(); len(got) != 0 {
		t.Fatalf("zero-height drag should not commit, got %v", got)
	}
	if c.State() != Idle {
		t.Fatalf("controller should return to idle, got %s", c.State())
	}
}

func TestCancelDropsDrag(t *testing.T) {
	c, rec := newTestController()

	c.PointerDown(100, 100)
	c.PointerMove(300, 300)
	c.Cancel()
	c.PointerUp(400, 400)

	if got := rec.committed(); len(got) != 0 {
		t.Fatalf("cancelled drag should not commit, got %v", got)
	}
}

func TestDownWhileDraggingIgnored(t *testing.T) {
	c, rec := newTestController()

	c.PointerDown(100, 100)
	// Second press must not restart the drag.
	c.PointerDown(500, 500)
	c.PointerUp(400, 400)

	got := rec.committed()
	if len(got) != 1 {
		t.Fatalf("expected one commit, got %d", len(got))
	}
	want := camera.NormRect{X: 0.1, Y: 0.1, W: 0.3, H: 0.3}
	if !approxEqual(got[0], want) {
		t.Fatalf("commit should anchor at the first press, got %+v", got[0])
	}
}

func TestUpWhileIdleIgnored(t *testing.T) {
	c, rec := newTestController()

	c.PointerUp(400, 400)
	c.PointerMove(100, 100)

	if got := rec.committed(); len(got) != 0 {
		t.Fatalf("events outside a drag should do nothing, got %v", got)
	}
}

func TestPreviewTracksDrag(t *testing.T) {
	c, _ := newTestController()

	if _, ok := c.Preview(); ok {
		t.Fatal("idle controller should have no preview")
	}

	c.PointerDown(100, 100)
	c.PointerMove(300, 500)

	got, ok := c.Preview()
	if !ok {
		t.Fatal("dragging controller should expose a preview")
	}
	want := camera.NormRect{X: 0.1, Y: 0.1, W: 0.2, H: 0.4}
	if !approxEqual(got, want) {
		t.Fatalf("preview %+v, want %+v", got, want)
	}

	c.PointerUp(300, 500)
	if _, ok := c.Preview(); ok {
		t.Fatal("preview should clear after release")
	}
}

func TestDragClampedToSurface(t *testing.T) {
	c, rec := newTestController()

	c.PointerDown(800, 800)
	// Pointer leaves the view; coordinates overshoot.
	c.PointerUp(1200, 1300)

	got := rec.committed()
	if len(got) != 1 {
		t.Fatalf("expected one commit, got %d", len(got))
	}
	want := camera.NormRect{X: 0.8, Y: 0.8, W: 0.2, H: 0.2}
	if !approxEqual(got[0], want) {
		t.Fatalf("committed %+v, want %+v", got[0], want)
	}
}

func TestEventsBeforeSurfaceSizeIgnored(t *testing.T) {
	rec := &commitRecorder{}
	c := NewController(camera.CamA, rec.commit)

	c.PointerDown(100, 100)
	c.PointerUp(400, 400)

	if got := rec.committed(); len(got) != 0 {
		t.Fatalf("events before the surface size is known should be dropped, got %v", got)
	}
}
