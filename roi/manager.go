package roi

import (
	"fmt"
	"sync"

	"roicam/camera"
)

// Submitter is the slice of the control channel the manager needs:
// fire-and-forget command submission.
type Submitter interface {
	Submit(cmd camera.Command)
}

type entry struct {
	roi    ROI
	submit Submitter
}

// Manager holds the region for each attached camera and is the only
// component that writes region commands. State changes first, then the
// command is submitted; a later device failure is reported through the
// control channel's error path without rolling the state back.
type Manager struct {
	mu      sync.Mutex
	cameras map[camera.ID]*entry
}

// NewManager creates a manager with no cameras attached.
func NewManager() *Manager {
	return &Manager{cameras: make(map[camera.ID]*entry)}
}

// Attach starts managing a camera's region, beginning at the default.
// Attaching an already attached camera replaces its submitter but keeps
// its region state, which covers device reconnects.
func (m *Manager) Attach(id camera.ID, submit Submitter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.cameras[id]; ok {
		e.submit = submit
		return
	}
	m.cameras[id] = &entry{roi: DefaultROI(), submit: submit}
	debugMsg("ROI", fmt.Sprintf("attached %s", id))
}

// Detach stops managing a camera.
func (m *Manager) Detach(id camera.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cameras, id)
}

// Get returns the camera's current region state.
func (m *Manager) Get(id camera.ID) (ROI, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cameras[id]
	if !ok {
		return ROI{}, false
	}
	return e.roi, true
}

// SetROI validates and installs a new region rectangle, enables the
// region, and pushes it to the device. Setting a rectangle equal to the
// current one still pushes: the device needs an explicit metering
// refresh even for a repeated region.
func (m *Manager) SetROI(id camera.ID, r camera.NormRect) error {
	if err := Validate(r); err != nil {
		return err
	}
	m.mu.Lock()
	e, ok := m.cameras[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}
	e.roi.Rect = r
	e.roi.Enabled = true
	roi := e.roi
	submit := e.submit
	m.mu.Unlock()

	debugMsg("ROI", fmt.Sprintf("%s region set to (%.3f,%.3f %.3fx%.3f)", id, r.X, r.Y, r.W, r.H))
	m.push(id, roi, submit)
	return nil
}

// SetEnabled toggles the region. Disabling restores full-frame metering
// on the device; enabling re-applies the stored rectangle.
func (m *Manager) SetEnabled(id camera.ID, enabled bool) error {
	m.mu.Lock()
	e, ok := m.cameras[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}
	e.roi.Enabled = enabled
	roi := e.roi
	submit := e.submit
	m.mu.Unlock()

	m.push(id, roi, submit)
	return nil
}

// SetExposureCompensation sets the region's metering bias, clamped to
// the device range, and re-applies.
func (m *Manager) SetExposureCompensation(id camera.ID, comp int) error {
	if comp < ExposureCompMin {
		comp = ExposureCompMin
	} else if comp > ExposureCompMax {
		comp = ExposureCompMax
	}
	m.mu.Lock()
	e, ok := m.cameras[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}
	e.roi.ExposureComp = comp
	roi := e.roi
	submit := e.submit
	m.mu.Unlock()

	m.push(id, roi, submit)
	return nil
}

// SetUseForExposure chooses whether the region drives exposure metering.
func (m *Manager) SetUseForExposure(id camera.ID, use bool) error {
	return m.setUse(id, func(r *ROI) { r.UseForExposure = use })
}

// SetUseForFocus chooses whether the region drives the focus window.
func (m *Manager) SetUseForFocus(id camera.ID, use bool) error {
	return m.setUse(id, func(r *ROI) { r.UseForFocus = use })
}

func (m *Manager) setUse(id camera.ID, mutate func(*ROI)) error {
	m.mu.Lock()
	e, ok := m.cameras[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}
	mutate(&e.roi)
	roi := e.roi
	submit := e.submit
	m.mu.Unlock()

	m.push(id, roi, submit)
	return nil
}

// Reset restores the default region and full-frame metering.
func (m *Manager) Reset(id camera.ID) error {
	m.mu.Lock()
	e, ok := m.cameras[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}
	e.roi = DefaultROI()
	roi := e.roi
	submit := e.submit
	m.mu.Unlock()

	m.push(id, roi, submit)
	return nil
}

// push translates region state into one device command. A disabled
// region becomes a full-frame reset; an enabled one carries the
// rectangle for each function it drives plus the metering bias.
func (m *Manager) push(id camera.ID, r ROI, submit Submitter) {
	if submit == nil {
		return
	}
	if !r.Enabled {
		submit.Submit(camera.NewCommand("regionReset", camera.Control{ResetRegions: true}))
		return
	}
	ctrl := camera.Control{}
	if r.UseForExposure {
		rect := r.Rect
		ctrl.ExposureRegion = &rect
		comp := r.ExposureComp
		ctrl.ExposureComp = &comp
	}
	if r.UseForFocus {
		rect := r.Rect
		ctrl.FocusRegion = &rect
	}
	if ctrl.ExposureRegion == nil && ctrl.FocusRegion == nil {
		// Region enabled but driving nothing: device meters full frame.
		ctrl.ResetRegions = true
	}
	submit.Submit(camera.NewCommand("applyRegion", ctrl))
}
