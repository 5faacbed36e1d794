package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/capture"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/joint"
	"github.com/ayusman/jointtrack/internal/publish"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/store"
	"github.com/ayusman/jointtrack/internal/tracker"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publish.Message
	closed   bool
}

func (p *recordingPublisher) Publish(m publish.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
	return nil
}

func (p *recordingPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type testRig struct {
	app      *App
	store    *store.Store
	camera   *capture.MockCamera
	detector *detector.MockDetector
	pub      *recordingPublisher
	outDir   string
}

func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func newTestRig(t *testing.T, frames int) *testRig {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	rig := &testRig{
		store:    s,
		camera:   capture.NewMockCamera(blankFrames(t, frames), false),
		detector: detector.NewMockDetector(),
		pub:      &recordingPublisher{},
		outDir:   t.TempDir(),
	}
	rig.detector.SetPose(detector.ElbowFlexPose(90))

	a, err := New(Config{
		Store:            s,
		Camera:           rig.camera,
		Detector:         rig.detector,
		Publisher:        rig.pub,
		Clock:            tracker.NewStepClock(time.Unix(0, 0), 100*time.Millisecond),
		Joint:            joint.LeftElbow,
		SamplesPerSecond: 10,
		OutputDir:        rig.outDir,
		FileName:         "motion_data",
		Skeleton:         true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rig.app = a
	return rig
}

func waitDone(t *testing.T, a *App) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}
}

func TestApp_NewSessionIsPersisted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	st := rig.app.Status()
	if st.State != session.StateUninitialized {
		t.Errorf("expected uninitialized session, got %s", st.State)
	}
	if st.Joint != "LEFT_ELBOW" {
		t.Errorf("expected joint LEFT_ELBOW, got %s", st.Joint)
	}

	rec, err := rig.store.Sessions().GetByID(st.ID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if rec.State != string(session.StateUninitialized) {
		t.Errorf("expected stored state uninitialized, got %s", rec.State)
	}
}

func TestApp_PickPointBeforeFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	_, err := rig.app.PickPoint(calibration.Point{X: 10, Y: 10}, nil)
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestApp_CalibrateByPicking(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	if _, err := rig.app.ProcessFrame(&frame, time.Unix(0, 0)); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	if _, err := rig.app.PickPoint(calibration.Point{X: 0, Y: 0}, nil); err != nil {
		t.Fatalf("first pick error = %v", err)
	}
	st, err := rig.app.PickPoint(calibration.Point{X: 64, Y: 48}, nil)
	if err != nil {
		t.Fatalf("second pick error = %v", err)
	}
	if st.State != session.StateCalibrating || len(st.Points) != 2 {
		t.Fatalf("expected calibrating with 2 points, got %s with %d", st.State, len(st.Points))
	}

	st, err = rig.app.FinishCalibration(calibration.Distance{Value: 50, Unit: calibration.UnitCentimeter})
	if err != nil {
		t.Fatalf("FinishCalibration() error = %v", err)
	}
	if st.State != session.StateIdle || !st.Calibrated {
		t.Errorf("expected calibrated idle session, got %+v", st)
	}
	if st.ReferencePercent < 9.99 || st.ReferencePercent > 10.01 {
		t.Errorf("expected reference 10%%, got %v", st.ReferencePercent)
	}
}

func TestApp_ProcessFrameRecordsDisplacement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	if _, err := rig.app.Calibrate(5, calibration.Distance{Value: 100, Unit: calibration.UnitCentimeter}); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if _, err := rig.app.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}

	base := detector.ElbowFlexPose(90)
	rig.detector.SetSequence([]*detector.PoseLandmarks{base, detector.Shifted(base, 0.01, 0)})

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	start := time.Unix(100, 0)
	first, err := rig.app.ProcessFrame(&frame, start)
	if err != nil || first == nil {
		t.Fatalf("first frame: result %v, error %v", first, err)
	}
	if !first.Recorded || first.Sample.DX != 0 || first.Sample.DY != 0 {
		t.Errorf("first sample should be the origin, got %+v", first.Sample)
	}

	second, err := rig.app.ProcessFrame(&frame, start.Add(200*time.Millisecond))
	if err != nil || second == nil {
		t.Fatalf("second frame: result %v, error %v", second, err)
	}
	if !second.Recorded || second.Sample.DX <= 0 {
		t.Errorf("expected positive horizontal displacement, got %+v", second.Sample)
	}
	if second.Sample.Timestamp < 0.199 || second.Sample.Timestamp > 0.201 {
		t.Errorf("expected timestamp 0.2, got %v", second.Sample.Timestamp)
	}

	if got := rig.pub.count(); got != 2 {
		t.Errorf("expected 2 published samples, got %d", got)
	}
	if last, ok := rig.app.LastResult(); !ok || last.Sample != second.Sample {
		t.Errorf("LastResult() = %+v, %v", last, ok)
	}
	if data, seq := rig.app.LatestFrame(); len(data) == 0 || seq != 2 {
		t.Errorf("expected 2 encoded frames, got seq %d with %d bytes", seq, len(data))
	}
}

func TestApp_PreviewDoesNotRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	res, err := rig.app.ProcessFrame(&frame, time.Unix(0, 0))
	if err != nil || res == nil {
		t.Fatalf("ProcessFrame() = %v, %v", res, err)
	}
	if res.Recorded {
		t.Error("preview frame should not be recorded")
	}
	if res.Sample.Angle < 89.9 || res.Sample.Angle > 90.1 {
		t.Errorf("expected preview angle 90, got %v", res.Sample.Angle)
	}
	if rig.pub.count() != 0 {
		t.Error("preview frame should not be published")
	}
}

func TestApp_RecordUntilEndOfStreamAndExport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	const frames = 5
	rig := newTestRig(t, frames)

	var mu sync.Mutex
	results := 0
	rig.app.config.OnResult = func(tracker.Result) {
		mu.Lock()
		results++
		mu.Unlock()
	}

	if _, err := rig.app.SkipCalibration(); err != nil {
		t.Fatalf("SkipCalibration() error = %v", err)
	}
	if _, err := rig.app.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := rig.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, rig.app)

	st := rig.app.Status()
	if st.State != session.StateStopped {
		t.Fatalf("expected stopped at end of stream, got %s", st.State)
	}
	if st.Samples != frames {
		t.Errorf("expected %d samples, got %d", frames, st.Samples)
	}
	mu.Lock()
	if results != frames {
		t.Errorf("expected %d results, got %d", frames, results)
	}
	mu.Unlock()

	stored, err := rig.store.Samples().GetBySessionID(st.ID)
	if err != nil {
		t.Fatalf("failed to load samples: %v", err)
	}
	if len(stored) != frames {
		t.Errorf("expected %d stored samples, got %d", frames, len(stored))
	}

	path, err := rig.app.Export("")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if path != filepath.Join(rig.outDir, "motion_data.csv") {
		t.Errorf("unexpected export path %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}

	again, err := rig.app.Export("")
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}
	if again != filepath.Join(rig.outDir, "motion_data_1.csv") {
		t.Errorf("expected suffixed path, got %s", again)
	}

	rec, err := rig.store.Sessions().GetByID(st.ID)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if rec.State != string(session.StateExported) || rec.ExportPath != again {
		t.Errorf("unexpected stored session %+v", rec)
	}

	rig.app.Stop()
	if !rig.pub.closed {
		t.Error("publisher should be closed on Stop")
	}
}

func TestApp_ExportRequiresStoppedSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	if _, err := rig.app.Export("run"); !errors.Is(err, session.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApp_NewSessionStopsRecording(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	rig.app.SkipCalibration()
	rig.app.StartRecording()
	old := rig.app.Status().ID

	st, err := rig.app.NewSession()
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if st.ID == old {
		t.Error("expected a new session id")
	}

	rec, err := rig.store.Sessions().GetByID(old)
	if err != nil {
		t.Fatalf("failed to load old session: %v", err)
	}
	if rec.State != string(session.StateStopped) {
		t.Errorf("expected old session stopped, got %s", rec.State)
	}
}

func TestApp_CalibrateWithPoints(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rig := newTestRig(t, 1)

	st, err := rig.app.CalibrateWithPoints(
		calibration.Point{X: 100, Y: 100},
		calibration.Point{X: 140, Y: 100},
		calibration.Distance{Value: 100, Unit: calibration.UnitCentimeter},
	)
	if err != nil {
		t.Fatalf("CalibrateWithPoints() error = %v", err)
	}
	if st.ReferencePercent < 4.999 || st.ReferencePercent > 5.001 {
		t.Errorf("expected reference 5%%, got %v", st.ReferencePercent)
	}
	if st.State != session.StateIdle {
		t.Errorf("expected idle, got %s", st.State)
	}
}
