package camera

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Command is one queued parameter change. Commands are applied strictly
// in submission order and are never coalesced; the ID lets the UI shell
// correlate a later CommandError with the request that caused it.
type Command struct {
	ID      uuid.UUID
	Op      string
	Control Control
}

// NewCommand builds a command for the given operation.
func NewCommand(op string, ctrl Control) Command {
	return Command{ID: uuid.New(), Op: op, Control: ctrl}
}

// Channel serializes control commands for one camera and owns its
// retained Settings. A dedicated worker applies each command through the
// blocking device call, so device round-trip time never reaches the UI or
// capture threads. Failure of one command is reported and does not halt
// the ones queued behind it.
type Channel struct {
	camera   ID
	device   Device
	commands chan Command
	quit     chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	closed   bool
	started  bool
	settings Settings
	onError  func(*CommandError)
}

const commandQueueDepth = 64

// NewChannel creates a control channel for a connected device. Call Start
// to begin processing.
func NewChannel(camera ID, device Device) *Channel {
	return &Channel{
		camera:   camera,
		device:   device,
		commands: make(chan Command, commandQueueDepth),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		settings: DefaultSettings(),
	}
}

// Camera returns the camera this channel controls.
func (c *Channel) Camera() ID { return c.camera }

// SetOnError registers the callback receiving CommandErrors. The callback
// runs on the worker goroutine and must not block.
func (c *Channel) SetOnError(fn func(*CommandError)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Start launches the command worker.
func (c *Channel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go c.run()
}

// Close stops the worker and drains still-pending commands, reporting
// each as ErrChannelClosed. Idempotent. Returns once the worker has
// exited, bounded by one in-flight device round trip.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	close(c.quit)
	if started {
		<-c.done
	}
	// A Submit racing Close may enqueue after the worker's own drain ran,
	// so drain once more now that closed is set and no new sends can
	// follow.
	c.drain()
}

// Submit enqueues a command without blocking the caller. Overflow and
// submission after Close are surfaced as CommandErrors, not silently
// dropped. The enqueue happens under the same lock as the closed check,
// so a command accepted here is always seen by a drain.
func (c *Channel) Submit(cmd Command) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.report(cmd, ErrChannelClosed)
		return
	}
	select {
	case c.commands <- cmd:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.report(cmd, ErrQueueFull)
	}
}

func (c *Channel) run() {
	defer close(c.done)
	for {
		// Check quit first so a close observed mid-queue drains the
		// remainder instead of racing it against further applies.
		select {
		case <-c.quit:
			c.drain()
			return
		default:
		}
		select {
		case <-c.quit:
			c.drain()
			return
		case cmd := <-c.commands:
			c.apply(cmd)
		}
	}
}

func (c *Channel) apply(cmd Command) {
	if err := c.device.Apply(cmd.Control); err != nil {
		c.report(cmd, err)
		return
	}
	debugMsg("CONTROL", fmt.Sprintf("%s applied %s", c.camera, cmd.Op))
}

func (c *Channel) drain() {
	for {
		select {
		case cmd := <-c.commands:
			c.report(cmd, ErrChannelClosed)
		default:
			return
		}
	}
}

func (c *Channel) report(cmd Command, err error) {
	cerr := &CommandError{Camera: c.camera, Cmd: cmd, Err: err}
	debugMsg("CONTROL_ERROR", cerr.Error())
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(cerr)
	}
}

// Settings returns a copy of the retained settings.
func (c *Channel) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetAutoExposure toggles auto exposure. Leaving auto mode restores the
// retained manual exposure time and ISO.
func (c *Channel) SetAutoExposure(enabled bool) {
	c.mu.Lock()
	c.settings.AutoExposure = enabled
	ctrl := Control{}
	if enabled {
		ctrl.AutoExposure = boolPtr(true)
	} else {
		ctrl.ManualExposure = &ManualExposure{TimeUs: c.settings.ExposureTimeUs, ISO: c.settings.ISO}
	}
	c.mu.Unlock()
	c.Submit(NewCommand("autoExposure", ctrl))
}

// SetExposureTime sets the manual exposure time in microseconds. While
// auto exposure is active the value is retained but not sent.
func (c *Channel) SetExposureTime(us int) {
	c.mu.Lock()
	c.settings.ExposureTimeUs = clamp(us, ExposureMinUs, ExposureMaxUs)
	manual := !c.settings.AutoExposure
	ctrl := Control{ManualExposure: &ManualExposure{TimeUs: c.settings.ExposureTimeUs, ISO: c.settings.ISO}}
	c.mu.Unlock()
	if manual {
		c.Submit(NewCommand("exposureTime", ctrl))
	}
}

// SetISO sets the sensor gain. Retained-only while auto exposure is active.
func (c *Channel) SetISO(iso int) {
	c.mu.Lock()
	c.settings.ISO = clamp(iso, ISOMin, ISOMax)
	manual := !c.settings.AutoExposure
	ctrl := Control{ManualExposure: &ManualExposure{TimeUs: c.settings.ExposureTimeUs, ISO: c.settings.ISO}}
	c.mu.Unlock()
	if manual {
		c.Submit(NewCommand("iso", ctrl))
	}
}

// SetAutoFocus toggles continuous autofocus. Leaving auto mode restores
// the retained manual focus position.
func (c *Channel) SetAutoFocus(enabled bool) {
	c.mu.Lock()
	c.settings.AutoFocus = enabled
	ctrl := Control{}
	if enabled {
		ctrl.AutoFocus = boolPtr(true)
	} else {
		ctrl.FocusValue = intPtr(c.settings.Focus)
	}
	c.mu.Unlock()
	c.Submit(NewCommand("autoFocus", ctrl))
}

// SetFocus sets the manual lens position. Retained-only while autofocus
// is active.
func (c *Channel) SetFocus(value int) {
	c.mu.Lock()
	c.settings.Focus = clamp(value, FocusMin, FocusMax)
	manual := !c.settings.AutoFocus
	ctrl := Control{FocusValue: intPtr(c.settings.Focus)}
	c.mu.Unlock()
	if manual {
		c.Submit(NewCommand("focus", ctrl))
	}
}

// TriggerAutofocus requests a one-shot autofocus sweep.
func (c *Channel) TriggerAutofocus() {
	c.Submit(NewCommand("autofocusTrigger", Control{AutofocusTrigger: true}))
}

// SetAutoWhiteBalance toggles auto white balance. Leaving auto mode
// restores the retained color temperature.
func (c *Channel) SetAutoWhiteBalance(enabled bool) {
	c.mu.Lock()
	c.settings.AutoWhiteBalance = enabled
	ctrl := Control{}
	if enabled {
		ctrl.AutoWhiteBalance = boolPtr(true)
	} else {
		ctrl.WhiteBalanceK = intPtr(c.settings.WhiteBalanceK)
	}
	c.mu.Unlock()
	c.Submit(NewCommand("autoWhiteBalance", ctrl))
}

// SetWhiteBalance sets the manual color temperature in kelvin.
// Retained-only while auto white balance is active.
func (c *Channel) SetWhiteBalance(kelvin int) {
	c.mu.Lock()
	c.settings.WhiteBalanceK = clamp(kelvin, WhiteBalMinK, WhiteBalMaxK)
	manual := !c.settings.AutoWhiteBalance
	ctrl := Control{WhiteBalanceK: intPtr(c.settings.WhiteBalanceK)}
	c.mu.Unlock()
	if manual {
		c.Submit(NewCommand("whiteBalance", ctrl))
	}
}

// SetBrightness adjusts image brightness (-10..10).
func (c *Channel) SetBrightness(value int) {
	c.mu.Lock()
	c.settings.Brightness = clamp(value, ImageAdjMin, ImageAdjMax)
	ctrl := Control{Brightness: intPtr(c.settings.Brightness)}
	c.mu.Unlock()
	c.Submit(NewCommand("brightness", ctrl))
}

// SetContrast adjusts image contrast (-10..10).
func (c *Channel) SetContrast(value int) {
	c.mu.Lock()
	c.settings.Contrast = clamp(value, ImageAdjMin, ImageAdjMax)
	ctrl := Control{Contrast: intPtr(c.settings.Contrast)}
	c.mu.Unlock()
	c.Submit(NewCommand("contrast", ctrl))
}

// SetSaturation adjusts color saturation (-10..10).
func (c *Channel) SetSaturation(value int) {
	c.mu.Lock()
	c.settings.Saturation = clamp(value, ImageAdjMin, ImageAdjMax)
	ctrl := Control{Saturation: intPtr(c.settings.Saturation)}
	c.mu.Unlock()
	c.Submit(NewCommand("saturation", ctrl))
}

// SetSharpness adjusts edge enhancement (0..4).
func (c *Channel) SetSharpness(value int) {
	c.mu.Lock()
	c.settings.Sharpness = clamp(value, SharpnessMin, SharpnessMax)
	ctrl := Control{Sharpness: intPtr(c.settings.Sharpness)}
	c.mu.Unlock()
	c.Submit(NewCommand("sharpness", ctrl))
}

// SetLumaDenoise adjusts luminance denoising (0..4).
func (c *Channel) SetLumaDenoise(value int) {
	c.mu.Lock()
	c.settings.LumaDenoise = clamp(value, DenoiseMin, DenoiseMax)
	ctrl := Control{LumaDenoise: intPtr(c.settings.LumaDenoise)}
	c.mu.Unlock()
	c.Submit(NewCommand("lumaDenoise", ctrl))
}

// SetChromaDenoise adjusts chrominance denoising (0..4).
func (c *Channel) SetChromaDenoise(value int) {
	c.mu.Lock()
	c.settings.ChromaDenoise = clamp(value, DenoiseMin, DenoiseMax)
	ctrl := Control{ChromaDenoise: intPtr(c.settings.ChromaDenoise)}
	c.mu.Unlock()
	c.Submit(NewCommand("chromaDenoise", ctrl))
}

// ResetSettings restores the documented defaults and pushes them all to
// the device.
func (c *Channel) ResetSettings() {
	c.mu.Lock()
	c.settings = DefaultSettings()
	c.mu.Unlock()
	c.ApplyAll()
}

// ApplyAll pushes the full retained state to the device, used right after
// connect so the hardware matches what the operator last configured.
func (c *Channel) ApplyAll() {
	c.mu.Lock()
	s := c.settings
	c.mu.Unlock()

	c.SetAutoExposure(s.AutoExposure)
	c.SetAutoFocus(s.AutoFocus)
	c.SetAutoWhiteBalance(s.AutoWhiteBalance)
	c.SetBrightness(s.Brightness)
	c.SetContrast(s.Contrast)
	c.SetSaturation(s.Saturation)
	c.SetSharpness(s.Sharpness)
	c.SetLumaDenoise(s.LumaDenoise)
	c.SetChromaDenoise(s.ChromaDenoise)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(v int) *int    { return &v }
