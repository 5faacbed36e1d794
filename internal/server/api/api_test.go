package api

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "jointtrack-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakeController records calls and returns canned results.
type fakeController struct {
	status   session.Status
	err      error
	calls    []string
	picked   []calibration.Point
	moveTo   *calibration.Point
	distance calibration.Distance
	percent  float64
	fileName string
}

func newFakeController() *fakeController {
	return &fakeController{status: session.Status{ID: "live", State: session.StateUninitialized, Joint: "LEFT_ELBOW"}}
}

func (f *fakeController) result(call string, state session.State) (session.Status, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return f.status, f.err
	}
	if state != "" {
		f.status.State = state
	}
	return f.status, nil
}

func (f *fakeController) Status() session.Status { return f.status }

func (f *fakeController) NewSession() (session.Status, error) {
	f.status.ID = fmt.Sprintf("live-%d", len(f.calls))
	return f.result("new", session.StateUninitialized)
}

func (f *fakeController) PickPoint(p calibration.Point, moveTo *calibration.Point) (session.Status, error) {
	f.picked = append(f.picked, p)
	f.moveTo = moveTo
	f.status.Points = append(f.status.Points, p)
	return f.result("pick", session.StateCalibrating)
}

func (f *fakeController) ResetPoints() (session.Status, error) {
	f.status.Points = nil
	return f.result("reset", "")
}

func (f *fakeController) FinishCalibration(d calibration.Distance) (session.Status, error) {
	f.distance = d
	return f.result("finish", session.StateIdle)
}

func (f *fakeController) Calibrate(pct float64, d calibration.Distance) (session.Status, error) {
	f.percent = pct
	f.distance = d
	return f.result("calibrate", session.StateIdle)
}

func (f *fakeController) SkipCalibration() (session.Status, error) {
	return f.result("skip", session.StateIdle)
}

func (f *fakeController) StartRecording() (session.Status, error) {
	return f.result("start", session.StateRecording)
}

func (f *fakeController) StopRecording() (session.Status, error) {
	return f.result("stop", session.StateStopped)
}

func (f *fakeController) Export(name string) (string, error) {
	f.fileName = name
	if _, err := f.result("export", session.StateExported); err != nil {
		return "", err
	}
	return "/out/" + name + ".csv", nil
}

func (f *fakeController) Discard() (session.Status, error) {
	return f.result("discard", session.StateDiscarded)
}
