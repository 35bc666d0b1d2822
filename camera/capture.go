package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// NetConfig describes one network camera: where its video stream comes
// from and where its control endpoint lives.
type NetConfig struct {
	Camera     ID
	StreamURL  string
	ControlURL string
}

// netDevice is a Device backed by an RTSP video stream and an ISAPI
// control endpoint on the same unit.
type netDevice struct {
	camera  ID
	capture *gocv.VideoCapture
	control *isapiClient

	mu     sync.Mutex
	width  int
	height int
	closed bool
}

// OpenNetDevice connects to the camera's stream and control endpoint.
// It blocks until the first frame has been read so that FrameSize is
// known before any control command can be applied.
func OpenNetDevice(ctx context.Context, cfg NetConfig) (Device, error) {
	host, port, user, pass, err := ParseControlURL(cfg.ControlURL)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", cfg.Camera, err)
	}

	debugMsg("CAPTURE", fmt.Sprintf("opening stream for %s: %s", cfg.Camera, cfg.StreamURL))
	capture, err := gocv.OpenVideoCapture(cfg.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("camera %s: failed to open stream: %w", cfg.Camera, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %s: stream not opened", cfg.Camera)
	}

	dev := &netDevice{
		camera:  cfg.Camera,
		capture: capture,
		control: newISAPIClient(host, port, user, pass, 5*time.Second),
	}

	if err := dev.probeFrameSize(ctx); err != nil {
		capture.Close()
		return nil, fmt.Errorf("camera %s: %w", cfg.Camera, err)
	}
	debugMsg("CAPTURE", fmt.Sprintf("camera %s connected, frame size %dx%d", cfg.Camera, dev.width, dev.height))
	return dev, nil
}

// probeFrameSize reads frames until a valid one arrives or the context
// expires. Some encoders emit a few empty frames right after connect.
func (d *netDevice) probeFrameSize(ctx context.Context) error {
	probe := gocv.NewMat()
	defer probe.Close()

	for attempt := 0; attempt < 30; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.capture.Read(&probe) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if probe.Empty() {
			continue
		}
		d.width = probe.Cols()
		d.height = probe.Rows()
		return nil
	}
	return fmt.Errorf("no valid frame from stream")
}

func (d *netDevice) ReadFrame(dst *gocv.Mat) error {
	if !d.capture.Read(dst) {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return fmt.Errorf("camera %s: capture closed", d.camera)
		}
		return fmt.Errorf("camera %s: stream read failed", d.camera)
	}
	return nil
}

func (d *netDevice) Apply(ctrl Control) error {
	w, h := d.FrameSize()
	return d.control.apply(ctrl, w, h)
}

func (d *netDevice) FrameSize() (width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *netDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.capture.Close()
}
