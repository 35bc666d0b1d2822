package camera

// Setting domains. Values outside a domain are clamped by the setter,
// unlike ROI rectangles which are rejected outright.
const (
	ExposureMinUs = 1
	ExposureMaxUs = 33000
	ISOMin        = 100
	ISOMax        = 1600
	FocusMin      = 0
	FocusMax      = 255
	WhiteBalMinK  = 1000
	WhiteBalMaxK  = 12000
	ImageAdjMin   = -10 // brightness, contrast, saturation
	ImageAdjMax   = 10
	SharpnessMin  = 0
	SharpnessMax  = 4
	DenoiseMin    = 0
	DenoiseMax    = 4
)

// Settings holds the retained per-camera parameter state. Manual-only
// fields keep their last value while the matching auto mode is active, so
// re-enabling manual mode restores them. Owned by the camera's Channel;
// mutated only through its setter methods.
type Settings struct {
	AutoExposure     bool
	ExposureTimeUs   int
	ISO              int
	AutoFocus        bool
	Focus            int
	AutoWhiteBalance bool
	WhiteBalanceK    int
	Brightness       int
	Contrast         int
	Saturation       int
	Sharpness        int
	LumaDenoise      int
	ChromaDenoise    int
}

// DefaultSettings returns the documented camera-attach defaults.
func DefaultSettings() Settings {
	return Settings{
		AutoExposure:     true,
		ExposureTimeUs:   20000,
		ISO:              800,
		AutoFocus:        true,
		Focus:            130,
		AutoWhiteBalance: true,
		WhiteBalanceK:    4000,
		Brightness:       0,
		Contrast:         0,
		Saturation:       0,
		Sharpness:        1,
		LumaDenoise:      1,
		ChromaDenoise:    1,
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
