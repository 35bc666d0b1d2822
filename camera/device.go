package camera

import (
	"image"

	"gocv.io/x/gocv"
)

// ID identifies one of the camera sockets on the rig.
type ID string

const (
	CamA ID = "CAM_A"
	CamB ID = "CAM_B"
	CamC ID = "CAM_C"
)

// ConnState represents the device connection lifecycle of a Source.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	ConnError
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case ConnError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Status is the connection state of a Source plus the failure reason
// when the state is ConnError.
type Status struct {
	State  ConnState
	Reason string
}

// NormRect is a rectangle in normalized frame coordinates (0..1 relative
// to the rendered frame). Conversion to sensor pixels happens at apply
// time, with the frame size active at that moment.
type NormRect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Pixels converts the rectangle to pixel coordinates for a frame of the
// given size, clamping to the frame bounds.
func (r NormRect) Pixels(width, height int) image.Rectangle {
	x0 := int(r.X * float64(width))
	y0 := int(r.Y * float64(height))
	x1 := int((r.X + r.W) * float64(width))
	y1 := int((r.Y + r.H) * float64(height))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}

// ManualExposure pairs exposure time and ISO; the device applies them
// together when leaving auto-exposure.
type ManualExposure struct {
	TimeUs int
	ISO    int
}

// Control is a single parameter-change request for the device. Only the
// non-nil fields are applied; a Command normally carries exactly one.
type Control struct {
	AutoExposure     *bool
	ManualExposure   *ManualExposure
	AutoFocus        *bool
	FocusValue       *int
	AutofocusTrigger bool
	AutoWhiteBalance *bool
	WhiteBalanceK    *int
	Brightness       *int
	Contrast         *int
	Saturation       *int
	Sharpness        *int
	LumaDenoise      *int
	ChromaDenoise    *int
	ExposureComp     *int
	ExposureRegion   *NormRect
	FocusRegion      *NormRect
	// ResetRegions restores full-frame metering, dropping any previously
	// applied exposure/focus region.
	ResetRegions bool
}

// Device is an opaque blocking handle to one camera: a frame stream plus
// a control path. Both calls may block for device round-trip time, so
// they are only ever invoked from the capture and control workers.
type Device interface {
	// ReadFrame blocks until the next decoded frame is available and
	// stores it in dst.
	ReadFrame(dst *gocv.Mat) error
	// Apply pushes a control change to the device synchronously.
	Apply(ctrl Control) error
	// FrameSize reports the current sensor frame dimensions.
	FrameSize() (width, height int)
	Close() error
}
