// Package lanedet runs lane-marking inference on captured frames. The
// model is a row-anchor lane network exported to ONNX: its output is a
// per-lane probability grid from which lane polylines are recovered.
package lanedet

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// Model input size and output grid, fixed by the exported network.
const (
	inputWidth  = 800
	inputHeight = 288
	gridWidth   = 800
	gridHeight  = 288
	laneCount   = 4
)

// minLanePoints is the shortest polyline kept; anything with fewer
// points is grid noise, not a lane.
const minLanePoints = 5

// LaneType labels which lane a polyline belongs to, by output slot.
type LaneType int

const (
	LaneLeft LaneType = iota
	LaneRight
	LaneCenter
	LaneOther
)

func (t LaneType) String() string {
	switch t {
	case LaneLeft:
		return "left"
	case LaneRight:
		return "right"
	case LaneCenter:
		return "center"
	default:
		return "other"
	}
}

// Lane is one detected lane marking as a polyline in frame pixels.
type Lane struct {
	Type       LaneType
	Points     []image.Point
	Confidence float64
}

// Detector wraps the loaded network. Detect is not safe for concurrent
// use; the Worker is its only caller.
type Detector struct {
	net        gocv.Net
	confidence float32
}

// NewDetector loads the ONNX model from disk. A missing or unreadable
// model is an error; the caller decides whether that degrades the app
// or aborts it.
func NewDetector(modelPath string, confidence float64) (*Detector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("lane model not found: %w", err)
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load lane model from %s", modelPath)
	}
	debugMsg("LANEDET", fmt.Sprintf("loaded lane model %s", modelPath))
	return &Detector{net: net, confidence: float32(confidence)}, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}

// Detect runs one inference pass and returns the lanes found in img,
// with points scaled back to the frame's own pixel coordinates.
func (d *Detector) Detect(img gocv.Mat) ([]Lane, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	frameW := img.Cols()
	frameH := img.Rows()

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(inputWidth, inputHeight),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	probs, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}
	if len(probs) < laneCount*gridHeight*gridWidth {
		return nil, fmt.Errorf("unexpected output size %d", len(probs))
	}
	return extractLanes(probs, frameW, frameH, d.confidence), nil
}

// extractLanes walks the probability grid lane by lane. For each grid
// row the strongest column wins; rows whose best probability stays under
// the threshold contribute no point. Polylines too short to be a lane
// are dropped.
func extractLanes(probs []float32, frameW, frameH int, confidence float32) []Lane {
	var lanes []Lane
	for lane := 0; lane < laneCount; lane++ {
		base := lane * gridHeight * gridWidth
		var points []image.Point
		var confSum float64

		for row := 0; row < gridHeight; row++ {
			rowBase := base + row*gridWidth
			bestCol := -1
			var bestProb float32
			for col := 0; col < gridWidth; col++ {
				if p := probs[rowBase+col]; p > bestProb {
					bestProb = p
					bestCol = col
				}
			}
			if bestCol < 0 || bestProb <= confidence {
				continue
			}
			points = append(points, image.Point{
				X: bestCol * frameW / gridWidth,
				Y: row * frameH / gridHeight,
			})
			confSum += float64(bestProb)
		}

		if len(points) <= minLanePoints {
			continue
		}
		lanes = append(lanes, Lane{
			Type:       LaneType(lane),
			Points:     points,
			Confidence: confSum / float64(len(points)),
		})
	}
	return lanes
}
