// Package tray provides a system tray menu for controlling a recording.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/jointtrack/internal/tracker"
)

// Tray represents the system tray application.
type Tray struct {
	onRecord  func() (bool, error)
	onExport  func() (string, error)
	onNew     func() error
	onPreview func()
	onQuit    func()
	recording bool
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuRecord *systray.MenuItem
	menuLast   *systray.MenuItem
	menuExport *systray.MenuItem
	menuInfo   *systray.MenuItem
}

// New creates a new Tray instance, initially not recording.
func New() *Tray {
	return &Tray{}
}

// OnRecord sets the callback that toggles recording. It returns whether the
// session is recording afterwards, also when it fails, so the menu follows
// the session rather than its own last click.
func (t *Tray) OnRecord(fn func() (bool, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecord = fn
}

// OnExport sets the callback called when Export is clicked.
func (t *Tray) OnExport(fn func() (string, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExport = fn
}

// OnNewSession sets the callback called when New Session is clicked.
func (t *Tray) OnNewSession(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNew = fn
}

// OnPreview sets the callback called when the preview menu item is clicked.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("JointTrack")
	systray.SetTooltip("JointTrack Motion Recorder")

	t.mu.Lock()
	t.menuRecord = systray.AddMenuItem(RecordLabel(t.recording), "Start or stop recording")
	t.menuExport = systray.AddMenuItem("Export CSV", "Write the stopped session to a CSV file")
	menuNew := systray.AddMenuItem("New Session", "Start over with a fresh session")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(LastLabel(nil), "Last measured angle")
	t.menuLast.Disable()
	t.menuInfo = systray.AddMenuItem("", "Last action")
	t.menuInfo.Hide()
	systray.AddSeparator()

	menuPreview := systray.AddMenuItem("Open Preview...", "Open the live preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit JointTrack")
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuRecord.ClickedCh:
				t.handleRecord()
			case <-t.menuExport.ClickedCh:
				t.handleExport()
			case <-menuNew.ClickedCh:
				t.handleNew()
			case <-menuPreview.ClickedCh:
				t.handlePreview()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// RecordLabel returns the record menu title for the given state.
func RecordLabel(recording bool) string {
	if recording {
		return "■ Stop Recording"
	}
	return "● Start Recording"
}

// LastLabel returns the title of the last-angle menu item.
func LastLabel(res *tracker.Result) string {
	if res == nil {
		return "Last: none"
	}
	a := res.Annotation
	if a.Calibrated {
		return fmt.Sprintf("Last: %.1f° (%.1f, %.1f)", a.Angle, a.DX, a.DY)
	}
	return fmt.Sprintf("Last: %.1f°", a.Angle)
}

// handleRecord toggles recording through the callback.
func (t *Tray) handleRecord() {
	t.mu.RLock()
	callback := t.onRecord
	t.mu.RUnlock()

	if callback == nil {
		return
	}

	// Call the callback outside the lock to prevent deadlocks
	recording, err := callback()
	t.SetRecording(recording)
	if err != nil {
		t.SetInfo(err.Error())
	}
}

func (t *Tray) handleExport() {
	t.mu.RLock()
	callback := t.onExport
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	path, err := callback()
	if err != nil {
		t.SetInfo(err.Error())
		return
	}
	t.SetInfo("Saved " + path)
}

func (t *Tray) handleNew() {
	t.mu.RLock()
	callback := t.onNew
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	if err := callback(); err != nil {
		t.SetInfo(err.Error())
		return
	}
	t.SetRecording(false)
	t.SetLast(nil)
	t.SetInfo("New session")
}

func (t *Tray) handlePreview() {
	t.mu.RLock()
	callback := t.onPreview
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetRecording updates the record menu item, for example when recording is
// started over HTTP or stops at the end of a video file.
func (t *Tray) SetRecording(recording bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.recording == recording {
		return
	}
	t.recording = recording
	if t.menuRecord != nil {
		t.menuRecord.SetTitle(RecordLabel(recording))
	}
}

// SetLast updates the last-angle display in the menu.
func (t *Tray) SetLast(res *tracker.Result) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLast != nil {
		t.menuLast.SetTitle(LastLabel(res))
	}
}

// SetInfo shows a one-line message under the last angle.
func (t *Tray) SetInfo(msg string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuInfo == nil {
		return
	}
	if msg == "" {
		t.menuInfo.Hide()
		return
	}
	t.menuInfo.SetTitle(msg)
	t.menuInfo.Show()
}

// IsRecording returns the recording state shown in the menu.
func (t *Tray) IsRecording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}
