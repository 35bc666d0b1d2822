package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DeviceOpener dials the device for a camera. Injected so tests and
// alternative transports can substitute the network device.
type DeviceOpener func(ctx context.Context, camera ID) (Device, error)

// Source owns one camera's device connection and capture loop. Each
// decoded frame is published into a latest-frame slot; display and
// inference read from the slot and never touch the device directly.
type Source struct {
	camera ID
	open   DeviceOpener
	slot   *FrameSlot

	mu     sync.Mutex
	state  ConnState
	reason string
	device Device
	stop   chan struct{}
	done   chan struct{}

	onStateChanged func(ID, Status)
}

// NewSource creates a disconnected source for the given camera.
func NewSource(camera ID, open DeviceOpener) *Source {
	return &Source{
		camera: camera,
		open:   open,
		slot:   NewFrameSlot(camera),
		state:  Disconnected,
	}
}

// Camera returns the camera identity of this source.
func (s *Source) Camera() ID { return s.camera }

// Status returns the current connection state and, for ConnError, the
// failure reason.
func (s *Source) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Reason: s.reason}
}

// Device returns the live device handle, or nil unless connected. Used to
// wire the control channel after a successful connect.
func (s *Source) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// SetOnStateChanged registers a callback fired on every connection-state
// transition. The callback must not block.
func (s *Source) SetOnStateChanged(fn func(ID, Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChanged = fn
}

// Connect dials the device and starts the capture loop. On failure the
// source is left in the Error state with the reason retained; there is no
// silent retry.
func (s *Source) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Connected || s.state == Connecting {
		s.mu.Unlock()
		return fmt.Errorf("camera %s: already %s", s.camera, s.state)
	}
	s.setStateLocked(Connecting, "")
	s.mu.Unlock()

	dev, err := s.open(ctx, s.camera)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(ConnError, err.Error())
		s.mu.Unlock()
		return &ConnectionError{Camera: s.camera, Reason: "device dial failed", Err: err}
	}

	s.mu.Lock()
	s.device = dev
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.setStateLocked(Connected, "")
	stop, done := s.stop, s.done
	s.mu.Unlock()

	w, h := dev.FrameSize()
	debugMsg("SOURCE", fmt.Sprintf("%s connected (%dx%d)", s.camera, w, h))

	go s.captureLoop(dev, stop, done)
	return nil
}

// captureLoop blocks on device I/O and publishes every decoded frame,
// overwriting any frame not yet consumed. A mid-stream read failure
// transitions to Error and terminates the loop; it does not reconnect.
func (s *Source) captureLoop(dev Device, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		img := gocv.NewMat()
		if err := dev.ReadFrame(&img); err != nil {
			img.Close()
			select {
			case <-stop:
				// Read unblocked by an operator disconnect, not a fault.
				return
			default:
			}
			s.fail(fmt.Sprintf("capture failed: %v", err))
			return
		}
		if img.Empty() || img.Channels() != 3 {
			img.Close()
			continue
		}
		s.slot.Publish(img, time.Now())
	}
}

func (s *Source) fail(reason string) {
	s.mu.Lock()
	if s.device != nil {
		s.device.Close()
		s.device = nil
	}
	s.setStateLocked(ConnError, reason)
	s.mu.Unlock()
	debugMsg("SOURCE_ERROR", fmt.Sprintf("%s %s", s.camera, reason))
}

// Disconnect terminates the capture loop, bounded by one device I/O
// timeout. Idempotent and safe to call from any state.
func (s *Source) Disconnect() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	dev := s.device
	s.stop, s.done, s.device = nil, nil, nil
	if s.state != Disconnected {
		s.setStateLocked(Disconnected, "")
	}
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if dev != nil {
		// Closing the device unblocks a ReadFrame in flight.
		dev.Close()
	}
	if done != nil {
		<-done
	}
	debugMsg("SOURCE", fmt.Sprintf("%s disconnected", s.camera))
}

// Latest returns a clone of the newest captured frame (caller closes it).
func (s *Source) Latest() (Frame, bool) {
	return s.slot.Latest()
}

// Next blocks until a frame newer than afterSeq arrives; ok=false after
// the source is shut down. This is the continuous pull used by recording.
func (s *Source) Next(afterSeq uint64) (Frame, bool) {
	return s.slot.Next(afterSeq)
}

// Snapshot returns a clone of the newest frame for an explicit capture
// request.
func (s *Source) Snapshot() (Frame, error) {
	f, ok := s.slot.Latest()
	if !ok {
		return Frame{}, fmt.Errorf("camera %s: no frame captured yet", s.camera)
	}
	return f, nil
}

// Close releases the frame slot permanently. Only called at application
// shutdown; a disconnected source can otherwise reconnect and reuse it.
func (s *Source) Close() {
	s.Disconnect()
	s.slot.Close()
}

func (s *Source) setStateLocked(state ConnState, reason string) {
	if s.state == state && s.reason == reason {
		return
	}
	s.state = state
	s.reason = reason
	if s.onStateChanged != nil {
		go s.onStateChanged(s.camera, Status{State: state, Reason: reason})
	}
}
