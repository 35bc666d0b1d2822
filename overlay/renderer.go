// Package overlay draws the operator display: captured frames annotated
// with the metering region, the live drag preview, detected lanes and
// per-camera status.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"roicam/camera"
	"roicam/lanedet"
	"roicam/roi"

	"gocv.io/x/gocv"
)

var debugMsgFunc func(component, message string)

// SetDebugFunction wires the package's debug output into the caller's
// logger.
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Renderer draws annotations onto frames. Stateless apart from its
// palette; one instance serves all cameras.
type Renderer struct {
	regionColor  color.RGBA
	previewColor color.RGBA
	statusColor  color.RGBA
	errorColor   color.RGBA
	laneColors   map[lanedet.LaneType]color.RGBA
}

// NewRenderer creates a renderer with the standard palette.
func NewRenderer() *Renderer {
	return &Renderer{
		regionColor:  color.RGBA{0, 255, 0, 255},
		previewColor: color.RGBA{255, 255, 0, 255},
		statusColor:  color.RGBA{0, 255, 0, 255},
		errorColor:   color.RGBA{255, 0, 0, 255},
		laneColors: map[lanedet.LaneType]color.RGBA{
			lanedet.LaneLeft:   {0, 255, 0, 255},
			lanedet.LaneRight:  {255, 0, 0, 255},
			lanedet.LaneCenter: {0, 0, 255, 255},
			lanedet.LaneOther:  {255, 255, 0, 255},
		},
	}
}

// DrawROI renders a committed metering region: the rectangle, a center
// dot and the compensation label. Disabled regions draw nothing.
func (r *Renderer) DrawROI(img *gocv.Mat, region roi.ROI) {
	if !region.Enabled || img.Empty() {
		return
	}
	rect := region.Rect.Pixels(img.Cols(), img.Rows())
	if rect.Empty() {
		return
	}
	gocv.Rectangle(img, rect, r.regionColor, 2)

	center := image.Point{X: (rect.Min.X + rect.Max.X) / 2, Y: (rect.Min.Y + rect.Max.Y) / 2}
	gocv.Circle(img, center, 3, r.regionColor, -1)

	label := fmt.Sprintf("ROI %+d", region.ExposureComp)
	if region.UseForFocus {
		label += " (Focus)"
	}
	labelPos := image.Point{X: rect.Min.X, Y: rect.Min.Y - 6}
	if labelPos.Y < 14 {
		labelPos.Y = rect.Max.Y + 16
	}
	gocv.PutText(img, label, labelPos, gocv.FontHersheySimplex, 0.5, r.regionColor, 1)
}

// DrawPreview renders an in-progress drag rectangle.
func (r *Renderer) DrawPreview(img *gocv.Mat, rect camera.NormRect) {
	if img.Empty() {
		return
	}
	px := rect.Pixels(img.Cols(), img.Rows())
	if px.Empty() {
		return
	}
	gocv.Rectangle(img, px, r.previewColor, 1)
}

// DrawLanes renders detected lane polylines, one color per lane slot.
func (r *Renderer) DrawLanes(img *gocv.Mat, lanes []lanedet.Lane) {
	if img.Empty() {
		return
	}
	for _, lane := range lanes {
		c, ok := r.laneColors[lane.Type]
		if !ok {
			c = r.laneColors[lanedet.LaneOther]
		}
		for i, pt := range lane.Points {
			gocv.Circle(img, pt, 2, c, -1)
			if i > 0 {
				gocv.Line(img, lane.Points[i-1], pt, c, 1)
			}
		}
	}
}

// DrawStatus renders the camera identity and connection state in the
// lower-left corner.
func (r *Renderer) DrawStatus(img *gocv.Mat, id camera.ID, status camera.Status) {
	if img.Empty() {
		return
	}
	c := r.statusColor
	text := fmt.Sprintf("%s %s %dx%d", id, status.State, img.Cols(), img.Rows())
	if status.State == camera.ConnError {
		c = r.errorColor
		if status.Reason != "" {
			text = fmt.Sprintf("%s: %s", text, status.Reason)
		}
	}
	pos := image.Point{X: 10, Y: img.Rows() - 12}
	gocv.PutText(img, text, pos, gocv.FontHersheySimplex, 0.5, c, 1)
}

// DrawFPS renders the measured display rate in the lower-right corner.
func (r *Renderer) DrawFPS(img *gocv.Mat, fps float64) {
	if img.Empty() {
		return
	}
	text := fmt.Sprintf("%.1f fps", fps)
	pos := image.Point{X: img.Cols() - 110, Y: img.Rows() - 12}
	gocv.PutText(img, text, pos, gocv.FontHersheySimplex, 0.5, r.statusColor, 1)
}

// Placeholder builds a frame shown while a camera has no signal. The
// caller owns the returned Mat.
func (r *Renderer) Placeholder(width, height int, id camera.ID, status camera.Status) gocv.Mat {
	img := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	center := image.Point{X: width/2 - 80, Y: height / 2}
	gocv.PutText(&img, "NO SIGNAL", center, gocv.FontHersheySimplex, 0.8, r.errorColor, 2)
	r.DrawStatus(&img, id, status)
	return img
}
