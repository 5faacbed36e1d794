package calibration

import (
	"errors"
	"fmt"
	"math"
)

// GrabRadius is how close, in pixels, a press must land to an existing point to drag it.
const GrabRadius = 10.0

// MaxPoints is the number of points a reference segment needs.
const MaxPoints = 2

// ErrIncompletePick is returned by Finish when fewer than two points are picked.
var ErrIncompletePick = errors.New("two points are required")

// Picker collects the two reference points on a frame of known size.
// A press near an existing point grabs it; otherwise a press adds a point
// while fewer than two exist. Further presses are ignored.
type Picker struct {
	width    int
	height   int
	points   []Point
	dragging int
}

// NewPicker creates a Picker for a reference frame of the given size.
func NewPicker(width, height int) (*Picker, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, width, height)
	}
	return &Picker{
		width:    width,
		height:   height,
		points:   make([]Point, 0, MaxPoints),
		dragging: -1,
	}, nil
}

// Press handles a pointer press at p. It returns true if the press grabbed
// an existing point or added a new one.
func (pk *Picker) Press(p Point) bool {
	pk.dragging = -1
	for i, existing := range pk.points {
		if math.Hypot(existing.X-p.X, existing.Y-p.Y) < GrabRadius {
			pk.dragging = i
			return true
		}
	}

	if len(pk.points) >= MaxPoints || !inFrame(p, pk.width, pk.height) {
		return false
	}
	pk.points = append(pk.points, p)
	return true
}

// Move drags the grabbed point to p. It is a no-op when nothing is grabbed.
func (pk *Picker) Move(p Point) {
	if pk.dragging < 0 || !inFrame(p, pk.width, pk.height) {
		return
	}
	pk.points[pk.dragging] = p
}

// Release drops the grabbed point.
func (pk *Picker) Release() {
	pk.dragging = -1
}

// Points returns a copy of the picked points.
func (pk *Picker) Points() []Point {
	out := make([]Point, len(pk.points))
	copy(out, pk.points)
	return out
}

// Ready reports whether both points are picked.
func (pk *Picker) Ready() bool {
	return len(pk.points) == MaxPoints
}

// Size returns the reference frame dimensions.
func (pk *Picker) Size() (int, int) {
	return pk.width, pk.height
}

// Reset clears all picked points.
func (pk *Picker) Reset() {
	pk.points = pk.points[:0]
	pk.dragging = -1
}

// Percentage returns the current segment length in percent of the frame diagonal.
func (pk *Picker) Percentage() (float64, error) {
	if !pk.Ready() {
		return 0, ErrIncompletePick
	}
	return ReferencePercentage(pk.points[0], pk.points[1], pk.width, pk.height)
}

// Finish turns the picked segment and the user's distance into a Calibration.
func (pk *Picker) Finish(distance Distance) (*Calibration, error) {
	percent, err := pk.Percentage()
	if err != nil {
		return nil, err
	}
	return New(percent, distance)
}
