// Package joint defines the trackable joints and the angle measured at each.
package joint

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ayusman/jointtrack/internal/detector"
)

var (
	// ErrUnknownJoint is returned for a joint name outside the supported set.
	ErrUnknownJoint = errors.New("unknown joint")
	// ErrDegenerateGeometry is returned when an arm of the angle has zero length.
	ErrDegenerateGeometry = errors.New("degenerate joint geometry")
)

// Joint is one of the twelve trackable joints.
type Joint int

// Supported joints. The zero value is not a valid joint.
const (
	LeftShoulder Joint = iota + 1
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// Triple names the two arm endpoints and the vertex at which the angle is measured.
type Triple struct {
	A      detector.Landmark
	B      detector.Landmark
	Vertex detector.Landmark
}

var triples = map[Joint]Triple{
	LeftShoulder:  {detector.RightShoulder, detector.LeftElbow, detector.LeftShoulder},
	RightShoulder: {detector.LeftShoulder, detector.RightElbow, detector.RightShoulder},
	LeftElbow:     {detector.LeftShoulder, detector.LeftWrist, detector.LeftElbow},
	RightElbow:    {detector.RightShoulder, detector.RightWrist, detector.RightElbow},
	LeftWrist:     {detector.LeftElbow, detector.LeftIndex, detector.LeftWrist},
	RightWrist:    {detector.RightElbow, detector.RightIndex, detector.RightWrist},
	LeftHip:       {detector.LeftShoulder, detector.LeftKnee, detector.LeftHip},
	RightHip:      {detector.RightShoulder, detector.RightKnee, detector.RightHip},
	LeftKnee:      {detector.LeftHip, detector.LeftAnkle, detector.LeftKnee},
	RightKnee:     {detector.RightHip, detector.RightAnkle, detector.RightKnee},
	LeftAnkle:     {detector.LeftKnee, detector.LeftFootIndex, detector.LeftAnkle},
	RightAnkle:    {detector.RightKnee, detector.RightFootIndex, detector.RightAnkle},
}

// All returns every supported joint in declaration order.
func All() []Joint {
	out := make([]Joint, 0, len(triples))
	for j := LeftShoulder; j <= RightAnkle; j++ {
		out = append(out, j)
	}
	return out
}

// String returns the landmark-style name of the joint, e.g. "LEFT_ELBOW".
func (j Joint) String() string {
	t, ok := triples[j]
	if !ok {
		return fmt.Sprintf("Joint(%d)", int(j))
	}
	return t.Vertex.String()
}

// Triple returns the landmarks that form the angle at j.
func (j Joint) Triple() (Triple, error) {
	t, ok := triples[j]
	if !ok {
		return Triple{}, fmt.Errorf("%w: %d", ErrUnknownJoint, int(j))
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler.
func (j Joint) MarshalText() ([]byte, error) {
	if _, ok := triples[j]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownJoint, int(j))
	}
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *Joint) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// Parse resolves a joint name such as "LEFT_ELBOW" (case-insensitive).
func Parse(name string) (Joint, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for j, t := range triples {
		if t.Vertex.String() == want {
			return j, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
}

// Lookup returns the triple for a joint name.
func Lookup(name string) (Triple, error) {
	j, err := Parse(name)
	if err != nil {
		return Triple{}, err
	}
	return j.Triple()
}

// Angle returns the angle in degrees at vertex between the vectors to a and b.
// The result is in [0, 180].
func Angle(a, b, vertex detector.Point) (float64, error) {
	v1x, v1y := a.X-vertex.X, a.Y-vertex.Y
	v2x, v2y := b.X-vertex.X, b.Y-vertex.Y

	m1 := math.Hypot(v1x, v1y)
	m2 := math.Hypot(v2x, v2y)
	if m1 == 0 || m2 == 0 {
		return 0, ErrDegenerateGeometry
	}

	cos := (v1x*v2x + v1y*v2y) / (m1 * m2)
	// Rounding can push cos slightly outside [-1, 1].
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * 180 / math.Pi, nil
}

// AngleAt computes the angle for joint j from a detected pose.
func AngleAt(pose *detector.PoseLandmarks, j Joint) (float64, error) {
	t, err := j.Triple()
	if err != nil {
		return 0, err
	}
	return Angle(pose.At(t.A), pose.At(t.B), pose.At(t.Vertex))
}
