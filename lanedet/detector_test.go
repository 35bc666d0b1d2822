package lanedet

import (
	"testing"
	"time"

	"roicam/camera"
)

// syntheticGrid builds a full probability grid with every cell at zero.
func syntheticGrid() []float32 {
	return make([]float32, laneCount*gridHeight*gridWidth)
}

// mark sets one grid cell's probability.
func mark(grid []float32, lane, row, col int, prob float32) {
	grid[lane*gridHeight*gridWidth+row*gridWidth+col] = prob
}

func TestExtractLanesFindsPolyline(t *testing.T) {
	grid := syntheticGrid()
	// A vertical-ish lane in slot 0, well above threshold.
	for row := 0; row < 10; row++ {
		mark(grid, 0, row, 400+row, 0.9)
	}

	lanes := extractLanes(grid, 1600, 576, 0.5)
	if len(lanes) != 1 {
		t.Fatalf("expected one lane, got %d", len(lanes))
	}
	lane := lanes[0]
	if lane.Type != LaneLeft {
		t.Errorf("slot 0 should be the left lane, got %s", lane.Type)
	}
	if len(lane.Points) != 10 {
		t.Fatalf("expected 10 points, got %d", len(lane.Points))
	}
	// Grid (400, 0) scales to frame pixels (800, 0) at 1600x576.
	if lane.Points[0].X != 800 || lane.Points[0].Y != 0 {
		t.Errorf("first point should scale to frame pixels, got %v", lane.Points[0])
	}
	if lane.Confidence < 0.89 || lane.Confidence > 0.91 {
		t.Errorf("confidence should average the winning cells, got %f", lane.Confidence)
	}
}

func TestExtractLanesDropsShortPolylines(t *testing.T) {
	grid := syntheticGrid()
	// Exactly the minimum count is still too short.
	for row := 0; row < minLanePoints; row++ {
		mark(grid, 1, row, 100, 0.9)
	}

	if lanes := extractLanes(grid, 800, 288, 0.5); len(lanes) != 0 {
		t.Fatalf("polyline at the minimum length should be dropped, got %d lanes", len(lanes))
	}

	// One more row crosses the bar.
	mark(grid, 1, minLanePoints, 100, 0.9)
	lanes := extractLanes(grid, 800, 288, 0.5)
	if len(lanes) != 1 || lanes[0].Type != LaneRight {
		t.Fatalf("expected one right lane, got %v", lanes)
	}
}

func TestExtractLanesRespectsThreshold(t *testing.T) {
	grid := syntheticGrid()
	for row := 0; row < 20; row++ {
		mark(grid, 2, row, 50, 0.4)
	}

	if lanes := extractLanes(grid, 800, 288, 0.5); len(lanes) != 0 {
		t.Fatalf("sub-threshold cells should contribute nothing, got %d lanes", len(lanes))
	}
}

func TestExtractLanesSeparatesSlots(t *testing.T) {
	grid := syntheticGrid()
	for row := 0; row < 10; row++ {
		mark(grid, 0, row, 100, 0.8)
		mark(grid, 2, row, 500, 0.8)
	}

	lanes := extractLanes(grid, 800, 288, 0.5)
	if len(lanes) != 2 {
		t.Fatalf("expected two lanes, got %d", len(lanes))
	}
	if lanes[0].Type != LaneLeft || lanes[1].Type != LaneCenter {
		t.Fatalf("slots should map to lane types in order, got %s and %s", lanes[0].Type, lanes[1].Type)
	}
}

func TestNewDetectorMissingModel(t *testing.T) {
	if _, err := NewDetector("/nonexistent/model.onnx", 0.5); err == nil {
		t.Fatal("expected error for missing model file")
	}
}

type nopTap struct{}

func (nopTap) Camera() camera.ID            { return camera.CamC }
func (nopTap) Latest() (camera.Frame, bool) { return camera.Frame{}, false }

func TestWorkerDisabledWithoutModel(t *testing.T) {
	w := NewWorker(nil, nopTap{}, 10*time.Millisecond)
	if !w.Disabled() {
		t.Fatal("worker without a detector should be disabled")
	}

	// Start and Stop must be safe no-ops.
	w.Start()
	time.Sleep(30 * time.Millisecond)
	if w.Latest() != nil {
		t.Fatal("disabled worker should never produce results")
	}
	w.Stop()
}
