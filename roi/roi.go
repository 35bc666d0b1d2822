// Package roi owns the per-camera metering region state. All region
// writes funnel through the Manager so the overlay, the gesture handler
// and the UI shell always observe one consistent region per camera.
package roi

import (
	"errors"
	"fmt"
	"math"

	"roicam/camera"
)

// ErrInvalidBounds reports a region that is degenerate or falls outside
// the normalized frame.
var ErrInvalidBounds = errors.New("region outside frame bounds")

// ErrNotAttached reports an operation on a camera the manager does not
// manage.
var ErrNotAttached = errors.New("camera not attached")

// Exposure compensation limits, in device steps.
const (
	ExposureCompMin = -9
	ExposureCompMax = 9
)

// ROI is one camera's metering region: a normalized rectangle plus the
// flags saying which device functions it drives.
type ROI struct {
	Rect    camera.NormRect
	Enabled bool
	// ExposureComp biases metering inside the region (-9..9).
	ExposureComp   int
	UseForExposure bool
	UseForFocus    bool
}

// DefaultROI is the region a camera starts with: centered, disabled,
// driving exposure only.
func DefaultROI() ROI {
	return ROI{
		Rect:           camera.NormRect{X: 0.35, Y: 0.35, W: 0.3, H: 0.3},
		Enabled:        false,
		ExposureComp:   0,
		UseForExposure: true,
		UseForFocus:    false,
	}
}

// Validate rejects rectangles that are degenerate, not finite, or not
// fully inside the normalized frame.
func Validate(r camera.NormRect) error {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidBounds)
		}
	}
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("%w: empty rectangle %.3fx%.3f", ErrInvalidBounds, r.W, r.H)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > 1 || r.Y+r.H > 1 {
		return fmt.Errorf("%w: (%.3f,%.3f %.3fx%.3f)", ErrInvalidBounds, r.X, r.Y, r.W, r.H)
	}
	return nil
}
