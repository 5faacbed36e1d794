// Package session ties calibration and tracking together for one capture
// session and enforces the order in which they happen.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/joint"
	"github.com/ayusman/jointtrack/internal/tracker"
)

// ErrInvalidTransition is returned when an operation is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is the lifecycle stage of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateCalibrating   State = "calibrating"
	StateIdle          State = "idle"
	StateRecording     State = "recording"
	StateStopped       State = "stopped"
	StateExported      State = "exported"
	StateDiscarded     State = "discarded"
)

// Config holds the per-session choices made before recording.
type Config struct {
	Joint            joint.Joint
	SamplesPerSecond int
}

// Session owns the calibration and sample sequence of one capture session.
// It is not safe for concurrent use.
type Session struct {
	id        string
	config    Config
	state     State
	picker    *calibration.Picker
	cal       *calibration.Calibration
	tracker   *tracker.Tracker
	createdAt time.Time
}

// New creates a session in the Uninitialized state.
func New(config Config) (*Session, error) {
	if _, err := config.Joint.Triple(); err != nil {
		return nil, err
	}
	if config.SamplesPerSecond < 0 {
		return nil, fmt.Errorf("samples per second must not be negative: %d", config.SamplesPerSecond)
	}
	return &Session{
		id:        uuid.New().String(),
		config:    config,
		state:     StateUninitialized,
		createdAt: time.Now(),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.config }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Calibration returns the calibration, or nil for an uncalibrated session.
func (s *Session) Calibration() *calibration.Calibration { return s.cal }

// Picker returns the active two-point picker while calibrating, otherwise nil.
func (s *Session) Picker() *calibration.Picker {
	if s.state != StateCalibrating {
		return nil
	}
	return s.picker
}

func (s *Session) transition(from []State, to State) error {
	for _, f := range from {
		if s.state == f {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// BeginCalibration starts a two-point pick on a reference frame of the given size.
func (s *Session) BeginCalibration(width, height int) error {
	if s.state != StateUninitialized && s.state != StateCalibrating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateCalibrating)
	}
	picker, err := calibration.NewPicker(width, height)
	if err != nil {
		return err
	}
	s.picker = picker
	s.state = StateCalibrating
	return nil
}

// FinishCalibration completes the pick with the user's real-world distance.
// The session stays in Calibrating if fewer than two points are picked.
func (s *Session) FinishCalibration(distance calibration.Distance) error {
	if s.state != StateCalibrating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateIdle)
	}
	cal, err := s.picker.Finish(distance)
	if err != nil {
		return err
	}
	s.cal = cal
	s.picker = nil
	s.state = StateIdle
	return nil
}

// Calibrate applies a known reference percentage and distance without a
// pick, e.g. when reusing the previous session's scale. The origin is fixed
// again by the first recorded frame.
func (s *Session) Calibrate(referencePercent float64, distance calibration.Distance) error {
	if s.state != StateUninitialized && s.state != StateCalibrating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateIdle)
	}
	cal, err := calibration.New(referencePercent, distance)
	if err != nil {
		return err
	}
	s.cal = cal
	s.picker = nil
	s.state = StateIdle
	return nil
}

// SkipCalibration readies an uncalibrated session that records angles only.
func (s *Session) SkipCalibration() error {
	if err := s.transition([]State{StateUninitialized, StateCalibrating}, StateIdle); err != nil {
		return err
	}
	s.picker = nil
	s.cal = nil
	return nil
}

// Start begins recording.
func (s *Session) Start() error {
	if err := s.transition([]State{StateIdle}, StateRecording); err != nil {
		return err
	}
	s.tracker = tracker.New(tracker.Config{
		SamplesPerSecond: s.config.SamplesPerSecond,
		Calibration:      s.cal,
	})
	return nil
}

// Process records the pose detected in one frame.
func (s *Session) Process(width, height int, pose *detector.PoseLandmarks, at time.Time) (tracker.Result, error) {
	if s.state != StateRecording {
		return tracker.Result{}, fmt.Errorf("%w: process while %s", ErrInvalidTransition, s.state)
	}
	return s.tracker.Record(width, height, pose, s.config.Joint, at)
}

// Stop ends recording. Recorded samples are kept.
func (s *Session) Stop() error {
	return s.transition([]State{StateRecording}, StateStopped)
}

// MarkExported records that the samples were written out.
func (s *Session) MarkExported() error {
	return s.transition([]State{StateStopped, StateExported}, StateExported)
}

// Discard drops the session without exporting.
func (s *Session) Discard() error {
	return s.transition([]State{StateUninitialized, StateCalibrating, StateIdle, StateStopped}, StateDiscarded)
}

// Samples returns the rounded sample sequence. It is empty before recording starts.
func (s *Session) Samples() []tracker.Sample {
	if s.tracker == nil {
		return []tracker.Sample{}
	}
	return s.tracker.Samples()
}

// Calibrated reports whether the session computes displacement.
func (s *Session) Calibrated() bool {
	return s.cal != nil
}

// Len returns the number of recorded samples.
func (s *Session) Len() int {
	if s.tracker == nil {
		return 0
	}
	return s.tracker.Len()
}

// Finished reports whether the session can no longer record.
func (s *Session) Finished() bool {
	switch s.state {
	case StateStopped, StateExported, StateDiscarded:
		return true
	}
	return false
}

// Status is a read-only snapshot of a session for display.
type Status struct {
	ID               string              `json:"id"`
	State            State               `json:"state"`
	Joint            string              `json:"joint"`
	SamplesPerSecond int                 `json:"samples_per_second"`
	Samples          int                 `json:"samples"`
	Calibrated       bool                `json:"calibrated"`
	ReferencePercent float64             `json:"reference_percent,omitempty"`
	Distance         float64             `json:"distance,omitempty"`
	Unit             calibration.Unit    `json:"unit,omitempty"`
	FrameWidth       int                 `json:"frame_width,omitempty"`
	FrameHeight      int                 `json:"frame_height,omitempty"`
	Points           []calibration.Point `json:"points,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	st := Status{
		ID:               s.id,
		State:            s.state,
		Joint:            s.config.Joint.String(),
		SamplesPerSecond: s.config.SamplesPerSecond,
		Samples:          s.Len(),
		Calibrated:       s.cal != nil,
		CreatedAt:        s.createdAt,
	}
	if s.cal != nil {
		st.ReferencePercent = s.cal.ReferencePercent()
		st.Distance = s.cal.Distance().Value
		st.Unit = s.cal.Distance().Unit
	}
	if pk := s.Picker(); pk != nil {
		st.FrameWidth, st.FrameHeight = pk.Size()
		st.Points = pk.Points()
		if pct, err := pk.Percentage(); err == nil {
			st.ReferencePercent = pct
		}
	}
	return st
}
