package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/joint"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(Config{Joint: joint.LeftElbow, SamplesPerSecond: 10})
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, StateUninitialized, s.State())
	assert.NotEmpty(t, s.ID())
	assert.Nil(t, s.Picker())
	assert.Empty(t, s.Samples())

	other := newSession(t)
	assert.NotEqual(t, s.ID(), other.ID())

	_, err := New(Config{Joint: joint.Joint(0)})
	assert.ErrorIs(t, err, joint.ErrUnknownJoint)

	_, err = New(Config{Joint: joint.LeftKnee, SamplesPerSecond: -1})
	assert.Error(t, err)
}

func TestSession_CalibratedLifecycle(t *testing.T) {
	s := newSession(t)

	require.NoError(t, s.BeginCalibration(640, 480))
	assert.Equal(t, StateCalibrating, s.State())

	pk := s.Picker()
	require.NotNil(t, pk)
	pk.Press(calibration.Point{X: 100, Y: 100})
	pk.Release()

	err := s.FinishCalibration(calibration.Distance{Value: 100, Unit: calibration.UnitCentimeter})
	assert.ErrorIs(t, err, calibration.ErrIncompletePick)
	assert.Equal(t, StateCalibrating, s.State(), "incomplete pick keeps calibrating")

	pk.Press(calibration.Point{X: 140, Y: 100})
	pk.Release()
	assert.False(t, pk.Press(calibration.Point{X: 400, Y: 400}), "third pick rejected")

	require.NoError(t, s.FinishCalibration(calibration.Distance{Value: 100, Unit: calibration.UnitCentimeter}))
	assert.Equal(t, StateIdle, s.State())
	assert.True(t, s.Calibrated())
	assert.InDelta(t, 5.0, s.Calibration().ReferencePercent(), 1e-12)

	_, err = s.Process(640, 480, detector.StandingPose(), epoch)
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot process before Start")

	require.NoError(t, s.Start())
	assert.Equal(t, StateRecording, s.State())

	res, err := s.Process(640, 480, detector.StandingPose(), epoch)
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	moved := detector.Shifted(detector.StandingPose(), 0.01, 0)
	res, err = s.Process(640, 480, moved, epoch.Add(200*time.Millisecond))
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, res.Sample.DX, 1e-6)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
	assert.Len(t, s.Samples(), 2, "stopping keeps samples")

	_, err = s.Process(640, 480, detector.StandingPose(), epoch.Add(time.Second))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.MarkExported())
	assert.Equal(t, StateExported, s.State())
	require.NoError(t, s.MarkExported(), "re-export is allowed")
	assert.Len(t, s.Samples(), 2)

	assert.ErrorIs(t, s.Discard(), ErrInvalidTransition)
}

func TestSession_Uncalibrated(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.SkipCalibration())
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Calibrated())

	require.NoError(t, s.Start())
	res, err := s.Process(640, 480, detector.ElbowFlexPose(60), epoch)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, res.Sample.Angle, 1e-6)
	assert.Equal(t, 0.0, res.Sample.DX)
}

func TestSession_InvalidTransitions(t *testing.T) {
	t.Run("start before calibration", func(t *testing.T) {
		s := newSession(t)
		assert.ErrorIs(t, s.Start(), ErrInvalidTransition)
	})

	t.Run("stop when not recording", func(t *testing.T) {
		s := newSession(t)
		assert.ErrorIs(t, s.Stop(), ErrInvalidTransition)
	})

	t.Run("export before stop", func(t *testing.T) {
		s := newSession(t)
		require.NoError(t, s.SkipCalibration())
		require.NoError(t, s.Start())
		assert.ErrorIs(t, s.MarkExported(), ErrInvalidTransition)
	})

	t.Run("finish without begin", func(t *testing.T) {
		s := newSession(t)
		err := s.FinishCalibration(calibration.Distance{Value: 1, Unit: calibration.UnitInch})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("recalibrate after idle", func(t *testing.T) {
		s := newSession(t)
		require.NoError(t, s.SkipCalibration())
		assert.ErrorIs(t, s.BeginCalibration(640, 480), ErrInvalidTransition)
	})

	t.Run("begin with a bad frame", func(t *testing.T) {
		s := newSession(t)
		assert.ErrorIs(t, s.BeginCalibration(0, 0), calibration.ErrInvalidFrame)
		assert.Equal(t, StateUninitialized, s.State())
	})
}

func TestSession_Discard(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.SkipCalibration())
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Discard())
	assert.Equal(t, StateDiscarded, s.State())
	assert.ErrorIs(t, s.MarkExported(), ErrInvalidTransition)
}

func TestSession_Calibrate(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Calibrate(5.0, calibration.Distance{Value: 12, Unit: calibration.UnitInch}))
	assert.Equal(t, StateIdle, s.State())
	assert.True(t, s.Calibrated())

	err := s.Calibrate(5.0, calibration.Distance{Value: 12, Unit: calibration.UnitInch})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	other := newSession(t)
	err = other.Calibrate(5.0, calibration.Distance{Value: 0, Unit: calibration.UnitInch})
	assert.ErrorIs(t, err, calibration.ErrInvalidDistance)
	assert.Equal(t, StateUninitialized, other.State())
}

func TestSession_Status(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.BeginCalibration(640, 480))
	s.Picker().Press(calibration.Point{X: 100, Y: 100})
	s.Picker().Release()

	st := s.Status()
	assert.Equal(t, s.ID(), st.ID)
	assert.Equal(t, StateCalibrating, st.State)
	assert.Equal(t, "LEFT_ELBOW", st.Joint)
	assert.Equal(t, 640, st.FrameWidth)
	assert.Len(t, st.Points, 1)
	assert.False(t, st.Calibrated)

	s.Picker().Press(calibration.Point{X: 140, Y: 100})
	s.Picker().Release()
	assert.InDelta(t, 5.0, s.Status().ReferencePercent, 1e-12)

	require.NoError(t, s.FinishCalibration(calibration.Distance{Value: 100, Unit: calibration.UnitCentimeter}))
	require.NoError(t, s.Start())
	_, err := s.Process(640, 480, detector.StandingPose(), epoch)
	require.NoError(t, err)

	st = s.Status()
	assert.True(t, st.Calibrated)
	assert.Equal(t, calibration.UnitCentimeter, st.Unit)
	assert.Equal(t, 100.0, st.Distance)
	assert.Equal(t, 1, st.Samples)
	assert.Empty(t, st.Points)
	assert.False(t, s.Finished())

	require.NoError(t, s.Stop())
	assert.True(t, s.Finished())
}
