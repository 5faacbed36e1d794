// Package tracker turns per-frame pose landmarks into joint angle and
// displacement samples.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/joint"
)

// ErrNoDetection is returned when a frame carries no pose.
var ErrNoDetection = errors.New("no pose detected")

// Sample is one row of the motion time series.
type Sample struct {
	// Timestamp is seconds since the first recorded sample.
	Timestamp float64 `json:"timestamp"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
	Angle     float64 `json:"angle"`
	// Position is the normalized vertex landmark, kept for the uncalibrated export.
	Position detector.Point `json:"position"`
}

// Annotation is the text to render at the vertex landmark for one frame.
type Annotation struct {
	Joint      string  `json:"joint"`
	Text       string  `json:"text"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Angle      float64 `json:"angle"`
	DX         float64 `json:"dx"`
	DY         float64 `json:"dy"`
	Calibrated bool    `json:"calibrated"`
	Recorded   bool    `json:"recorded"`
}

// Result is the outcome of processing one frame.
type Result struct {
	Sample     Sample
	Recorded   bool
	Annotation Annotation
}

// Config holds the tracker configuration.
type Config struct {
	// SamplesPerSecond caps how many frames become recorded samples. Zero records every frame.
	SamplesPerSecond int
	// Calibration enables displacement output. Nil selects the uncalibrated mode.
	Calibration *calibration.Calibration
}

// Tracker accumulates motion samples for one session. It is not safe for
// concurrent use; frames are processed one at a time.
type Tracker struct {
	cal     *calibration.Calibration
	limiter *RateLimiter
	samples []Sample
	started bool
	start   time.Time
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	return &Tracker{
		cal:     cfg.Calibration,
		limiter: NewRateLimiter(cfg.SamplesPerSecond),
	}
}

// Calibrated reports whether displacement is computed.
func (t *Tracker) Calibrated() bool {
	return t.cal != nil
}

// Record processes the pose detected in a width x height frame captured at
// time at. The first successful call fixes the displacement origin at the
// vertex landmark and timestamp zero. Frames arriving faster than the
// configured rate still produce an annotation but are not recorded.
func (t *Tracker) Record(width, height int, pose *detector.PoseLandmarks, j joint.Joint, at time.Time) (Result, error) {
	if width <= 0 || height <= 0 {
		return Result{}, fmt.Errorf("%w: %dx%d", calibration.ErrInvalidFrame, width, height)
	}
	if pose == nil {
		return Result{}, ErrNoDetection
	}

	triple, err := j.Triple()
	if err != nil {
		return Result{}, err
	}
	vertex := pose.At(triple.Vertex)

	angle, err := joint.Angle(pose.At(triple.A), pose.At(triple.B), vertex)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", j, err)
	}

	if !t.started && t.cal != nil {
		if err := t.cal.SetInitialPoint(vertex); err != nil {
			return Result{}, err
		}
	}

	var dx, dy float64
	if t.cal != nil {
		dx, dy, err = t.cal.AdjustedDisplacement(t.cal.Distance().Value, vertex)
		if err != nil {
			return Result{}, err
		}
	}

	recorded := t.limiter.Allow(at)
	if !t.started {
		t.started = true
		t.start = at
	}

	sample := Sample{
		Timestamp: at.Sub(t.start).Seconds(),
		DX:        dx,
		DY:        dy,
		Angle:     angle,
		Position:  vertex,
	}
	if recorded {
		t.samples = append(t.samples, sample)
	}

	x, y := vertex.Pixel(width, height)
	return Result{
		Sample:   sample,
		Recorded: recorded,
		Annotation: Annotation{
			Joint:      j.String(),
			Text:       t.label(angle, dx, dy),
			X:          x,
			Y:          y,
			Angle:      angle,
			DX:         dx,
			DY:         dy,
			Calibrated: t.cal != nil,
			Recorded:   recorded,
		},
	}, nil
}

func (t *Tracker) label(angle, dx, dy float64) string {
	if t.cal == nil {
		return fmt.Sprintf("%.2f", angle)
	}
	return fmt.Sprintf("%.2f (%.1f, %.1f %s)", angle, dx, dy, t.cal.Distance().Unit)
}

// Len returns the number of recorded samples.
func (t *Tracker) Len() int {
	return len(t.samples)
}

// Samples returns the recorded samples in order, rounded for display and
// export: timestamp to 2 decimal places, displacement and angle to 1.
// The tracker's own samples are not modified.
func (t *Tracker) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	for i, s := range t.samples {
		out[i] = Sample{
			Timestamp: Round(s.Timestamp, 2),
			DX:        Round(s.DX, 1),
			DY:        Round(s.DY, 1),
			Angle:     Round(s.Angle, 1),
			Position:  s.Position,
		}
	}
	return out
}

// Raw returns a copy of the recorded samples without rounding.
func (t *Tracker) Raw() []Sample {
	out := make([]Sample, len(t.samples))
	copy(out, t.samples)
	return out
}

// Round rounds v to the given number of decimal places, halves away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
