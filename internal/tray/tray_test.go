package tray

import (
	"errors"
	"testing"

	"github.com/ayusman/jointtrack/internal/tracker"
)

func TestRecordLabel(t *testing.T) {
	if got := RecordLabel(false); got != "● Start Recording" {
		t.Errorf("RecordLabel(false) = %q", got)
	}
	if got := RecordLabel(true); got != "■ Stop Recording" {
		t.Errorf("RecordLabel(true) = %q", got)
	}
}

func TestLastLabel(t *testing.T) {
	tests := []struct {
		name string
		res  *tracker.Result
		want string
	}{
		{"none", nil, "Last: none"},
		{"angle only", &tracker.Result{Annotation: tracker.Annotation{Angle: 92.34}}, "Last: 92.3°"},
		{"calibrated", &tracker.Result{Annotation: tracker.Annotation{Angle: 45, DX: 1.25, DY: -3, Calibrated: true}}, "Last: 45.0° (1.2, -3.0)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastLabel(tt.res); got != tt.want {
				t.Errorf("LastLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Menu items are nil until systray is ready, so handlers only touch state.
func TestTray_HandleRecord(t *testing.T) {
	tr := New()

	appRecording := false
	calls := 0
	tr.OnRecord(func() (bool, error) {
		calls++
		appRecording = !appRecording
		return appRecording, nil
	})

	tr.handleRecord()
	if !tr.IsRecording() {
		t.Error("expected recording after first toggle")
	}
	tr.handleRecord()
	if tr.IsRecording() {
		t.Error("expected stopped after second toggle")
	}
	if calls != 2 {
		t.Errorf("expected 2 callback calls, got %d", calls)
	}
}

func TestTray_HandleRecordError(t *testing.T) {
	tr := New()
	tr.OnRecord(func() (bool, error) { return false, errors.New("not calibrated") })

	tr.handleRecord()
	if tr.IsRecording() {
		t.Error("failed start should leave the tray stopped")
	}
}

// Recording started elsewhere, e.g. with -record or over HTTP, must be
// stoppable from the first click.
func TestTray_HandleRecordAlreadyRecording(t *testing.T) {
	tr := New()

	appRecording := true
	tr.OnRecord(func() (bool, error) {
		if appRecording {
			appRecording = false
			return false, nil
		}
		appRecording = true
		return true, nil
	})

	tr.handleRecord()
	if appRecording {
		t.Fatal("first click should stop the running recording")
	}
	if tr.IsRecording() {
		t.Error("menu should show stopped")
	}

	tr.handleRecord()
	if !appRecording || !tr.IsRecording() {
		t.Error("second click should start recording again")
	}
}

func TestTray_HandleRecordErrorFollowsSession(t *testing.T) {
	tr := New()
	tr.OnRecord(func() (bool, error) { return true, errors.New("save failed") })

	tr.handleRecord()
	if !tr.IsRecording() {
		t.Error("menu should show the session state reported with the error")
	}
}

func TestTray_SetRecording(t *testing.T) {
	tr := New()
	tr.SetRecording(true)
	tr.SetRecording(true)
	if !tr.IsRecording() {
		t.Error("expected recording")
	}
	tr.SetRecording(false)
	if tr.IsRecording() {
		t.Error("expected stopped")
	}
}

func TestTray_HandleNew(t *testing.T) {
	tr := New()
	tr.SetRecording(true)

	called := false
	tr.OnNewSession(func() error {
		called = true
		return nil
	})

	tr.handleNew()
	if !called {
		t.Error("expected new session callback")
	}
	if tr.IsRecording() {
		t.Error("new session should reset the recording state")
	}
}

func TestTray_HandleExport(t *testing.T) {
	tr := New()

	called := false
	tr.OnExport(func() (string, error) {
		called = true
		return "/tmp/motion_data.csv", nil
	})

	tr.handleExport()
	if !called {
		t.Error("expected export callback")
	}
}
