// Package calibration converts a user-picked reference segment into a
// real-world distance scale and tracks the displacement origin.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ayusman/jointtrack/internal/detector"
)

var (
	// ErrInvalidFrame is returned for non-positive frame dimensions or points outside the frame.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrAlreadyCalibrated is returned when the displacement origin is set twice without Reset.
	ErrAlreadyCalibrated = errors.New("initial point already set")
	// ErrNotCalibrated is returned when a displacement is requested before the origin is set.
	ErrNotCalibrated = errors.New("initial point not set")
	// ErrInvalidUnit is returned for a unit other than cm or inch.
	ErrInvalidUnit = errors.New("invalid unit")
	// ErrInvalidDistance is returned for a non-positive or non-finite user distance.
	ErrInvalidDistance = errors.New("invalid distance")
)

// Unit is the real-world unit the user's reference distance is expressed in.
type Unit string

// Supported units.
const (
	UnitCentimeter Unit = "cm"
	UnitInch       Unit = "inch"
)

// ParseUnit validates a unit name from the UI or config.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitCentimeter:
		return UnitCentimeter, nil
	case UnitInch:
		return UnitInch, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
}

// Point is a pixel coordinate on a reference frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance is a user-asserted real-world length.
type Distance struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Validate checks that the distance is positive and the unit is known.
func (d Distance) Validate() error {
	if d.Value <= 0 || math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDistance, d.Value)
	}
	if _, err := ParseUnit(string(d.Unit)); err != nil {
		return err
	}
	return nil
}

// ReferencePercentage returns the pixel distance between a and b as a
// percentage of the frame diagonal.
func ReferencePercentage(a, b Point, width, height int) (float64, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, width, height)
	}
	for _, p := range []Point{a, b} {
		if !inFrame(p, width, height) {
			return 0, fmt.Errorf("%w: point (%g, %g) outside %dx%d", ErrInvalidFrame, p.X, p.Y, width, height)
		}
	}

	distance := math.Hypot(b.X-a.X, b.Y-a.Y)
	diagonal := math.Hypot(float64(width), float64(height))
	return distance / diagonal * 100, nil
}

func inFrame(p Point, width, height int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= float64(width) && p.Y <= float64(height)
}

// Calibration holds the scale established by a two-point pick and the
// displacement origin. The reference percentage and distance are fixed at
// construction; the origin is set once per session.
type Calibration struct {
	referencePercent float64
	distance         Distance
	initial          detector.Point
	hasInitial       bool
}

// New creates a Calibration from a completed reference measurement.
func New(referencePercent float64, distance Distance) (*Calibration, error) {
	if referencePercent < 0 || math.IsNaN(referencePercent) {
		return nil, fmt.Errorf("%w: reference percentage %v", ErrInvalidFrame, referencePercent)
	}
	if err := distance.Validate(); err != nil {
		return nil, err
	}
	return &Calibration{
		referencePercent: referencePercent,
		distance:         distance,
	}, nil
}

// ReferencePercent returns the reference segment length in percent of the frame diagonal.
func (c *Calibration) ReferencePercent() float64 {
	return c.referencePercent
}

// Distance returns the real-world length the reference segment represents.
func (c *Calibration) Distance() Distance {
	return c.distance
}

// SetInitialPoint stores p as the zero-displacement origin.
func (c *Calibration) SetInitialPoint(p detector.Point) error {
	if c.hasInitial {
		return ErrAlreadyCalibrated
	}
	c.initial = p
	c.hasInitial = true
	return nil
}

// InitialPoint returns the origin and whether it has been set.
func (c *Calibration) InitialPoint() (detector.Point, bool) {
	return c.initial, c.hasInitial
}

// Reset clears the origin so that a new session can set it again.
func (c *Calibration) Reset() {
	c.initial = detector.Point{}
	c.hasInitial = false
}

// AdjustedDisplacement rescales the normalized offset of current from the
// origin into the user's units: userDistance * delta * 100 * 100 per axis.
// This assumes in-plane motion at constant depth; there is no lens or
// perspective correction.
func (c *Calibration) AdjustedDisplacement(userDistance float64, current detector.Point) (float64, float64, error) {
	if !c.hasInitial {
		return 0, 0, ErrNotCalibrated
	}
	dx := userDistance * (current.X - c.initial.X) * 100 * 100
	dy := userDistance * (current.Y - c.initial.Y) * 100 * 100
	return dx, dy, nil
}

// ParsePoints reads two reference points written as "x1,y1,x2,y2".
func ParsePoints(s string) (Point, Point, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return Point{}, Point{}, fmt.Errorf("points %q: want x1,y1,x2,y2", s)
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Point{}, Point{}, fmt.Errorf("points %q: %w", s, err)
		}
		v[i] = n
	}
	return Point{X: v[0], Y: v[1]}, Point{X: v[2], Y: v[3]}, nil
}
