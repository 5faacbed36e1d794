package detector

import (
	"math"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	pose     *PoseLandmarks
	sequence []*PoseLandmarks
	calls    int
	err      error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose that will be returned by every call to Detect.
func (m *MockDetector) SetPose(pose *PoseLandmarks) {
	m.pose = pose
	m.sequence = nil
}

// SetSequence makes Detect return the given poses in order, one per call.
// Once the sequence is exhausted the last pose is repeated.
func (m *MockDetector) SetSequence(poses []*PoseLandmarks) {
	m.sequence = poses
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*PoseLandmarks, error) {
	defer func() { m.calls++ }()

	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		i := m.calls
		if i >= len(m.sequence) {
			i = len(m.sequence) - 1
		}
		return m.sequence[i], nil
	}
	return m.pose, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// StandingPose returns a preset front-facing pose with arms hanging at the sides.
func StandingPose() *PoseLandmarks {
	pose := &PoseLandmarks{Score: 0.95}

	set := func(l Landmark, x, y float64) {
		pose.Points[l] = Point{X: x, Y: y, Visibility: 0.99}
	}

	set(Nose, 0.50, 0.15)
	set(LeftEyeInner, 0.51, 0.13)
	set(LeftEye, 0.52, 0.13)
	set(LeftEyeOuter, 0.53, 0.13)
	set(RightEyeInner, 0.49, 0.13)
	set(RightEye, 0.48, 0.13)
	set(RightEyeOuter, 0.47, 0.13)
	set(LeftEar, 0.55, 0.14)
	set(RightEar, 0.45, 0.14)
	set(MouthLeft, 0.52, 0.18)
	set(MouthRight, 0.48, 0.18)

	// Image left is the subject's right side.
	set(LeftShoulder, 0.60, 0.28)
	set(RightShoulder, 0.40, 0.28)
	set(LeftElbow, 0.62, 0.42)
	set(RightElbow, 0.38, 0.42)
	set(LeftWrist, 0.63, 0.55)
	set(RightWrist, 0.37, 0.55)
	set(LeftPinky, 0.64, 0.58)
	set(RightPinky, 0.36, 0.58)
	set(LeftIndex, 0.635, 0.59)
	set(RightIndex, 0.365, 0.59)
	set(LeftThumb, 0.625, 0.57)
	set(RightThumb, 0.375, 0.57)

	set(LeftHip, 0.56, 0.55)
	set(RightHip, 0.44, 0.55)
	set(LeftKnee, 0.57, 0.72)
	set(RightKnee, 0.43, 0.72)
	set(LeftAnkle, 0.57, 0.88)
	set(RightAnkle, 0.43, 0.88)
	set(LeftHeel, 0.565, 0.90)
	set(RightHeel, 0.435, 0.90)
	set(LeftFootIndex, 0.59, 0.92)
	set(RightFootIndex, 0.41, 0.92)

	return pose
}

// ElbowFlexPose returns StandingPose with the left forearm rotated so that the
// angle at the left elbow equals degrees (0-180).
func ElbowFlexPose(degrees float64) *PoseLandmarks {
	pose := StandingPose()

	shoulder := pose.Points[LeftShoulder]
	elbow := pose.Points[LeftElbow]

	// Direction from elbow to shoulder, rotated by the requested angle.
	ux, uy := shoulder.X-elbow.X, shoulder.Y-elbow.Y
	norm := math.Hypot(ux, uy)
	ux, uy = ux/norm, uy/norm

	rad := degrees * math.Pi / 180
	const forearm = 0.13
	wx := ux*math.Cos(rad) - uy*math.Sin(rad)
	wy := ux*math.Sin(rad) + uy*math.Cos(rad)

	pose.Points[LeftWrist] = Point{
		X:          elbow.X + wx*forearm,
		Y:          elbow.Y + wy*forearm,
		Visibility: 0.99,
	}
	return pose
}

// Shifted returns a copy of pose with every landmark translated by (dx, dy).
func Shifted(pose *PoseLandmarks, dx, dy float64) *PoseLandmarks {
	out := *pose
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return &out
}
