// Package app wires capture, detection, tracking and output into the
// jointtrack capture pipeline.
package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ayusman/jointtrack/internal/capture"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/joint"
	"github.com/ayusman/jointtrack/internal/publish"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/store"
	"github.com/ayusman/jointtrack/internal/tracker"
)

// ErrNoFrame is returned when calibration needs the frame size before any
// frame has been read.
var ErrNoFrame = errors.New("no frame captured yet")

// DefaultPreviewChange is the scene change, in percent of pixels, below which
// detection is skipped while not recording.
const DefaultPreviewChange = 1.0

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	Camera    capture.Camera
	Detector  detector.Detector
	Publisher publish.Publisher
	Clock     tracker.Clock

	Joint            joint.Joint
	SamplesPerSecond int

	OutputDir string
	FileName  string

	// FrameInterval paces the pipeline. Zero reads frames back to back.
	FrameInterval time.Duration
	Skeleton      bool
	// PreviewChange gates detection while not recording; zero disables the gate.
	PreviewChange float64

	// OnResult receives every processed frame's result on the pipeline goroutine.
	OnResult func(tracker.Result)
}

// App runs the capture pipeline and owns the current session.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	pub      publish.Publisher
	clock    tracker.Clock
	scene    *capture.SceneChange

	mu      sync.RWMutex
	session *session.Session
	stopCh  chan struct{}
	doneCh  chan struct{}

	frameMu    sync.RWMutex
	frameJPEG  []byte
	frameSeq   uint64
	frameW     int
	frameH     int
	lastResult *tracker.Result
	lastPose   *detector.PoseLandmarks
}

// New creates an App and its first session.
func New(config Config) (*App, error) {
	a := &App{
		config:   config,
		camera:   config.Camera,
		detector: config.Detector,
		pub:      config.Publisher,
		clock:    config.Clock,
	}
	if a.pub == nil {
		a.pub = publish.Discard{}
	}
	if a.clock == nil {
		a.clock = tracker.SystemClock{}
	}
	if config.PreviewChange > 0 {
		a.scene = capture.NewSceneChange(config.PreviewChange)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe pose detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	if _, err := a.NewSession(); err != nil {
		return nil, err
	}
	return a, nil
}

// SetDetector sets the pose detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Start opens the camera and begins the pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Println("Capture pipeline started")
	return nil
}

// Done is closed when the pipeline exits, either after Stop or at the end
// of a video file. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}

// Stop halts the pipeline, stops any recording in progress and releases
// resources.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	if _, err := a.StopRecording(); err != nil && !errors.Is(err, session.ErrInvalidTransition) {
		log.Printf("Error stopping recording: %v", err)
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	if a.scene != nil {
		a.scene.Close()
	}

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	a.pub.Close()

	log.Println("Capture pipeline stopped")
}

// LatestFrame returns the most recent annotated frame as JPEG and its
// sequence number. The sequence is zero before the first frame.
func (a *App) LatestFrame() ([]byte, uint64) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.frameJPEG, a.frameSeq
}

// LastResult returns the result of the most recent frame with a detection.
func (a *App) LastResult() (tracker.Result, bool) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	if a.lastResult == nil {
		return tracker.Result{}, false
	}
	return *a.lastResult, true
}

// FrameSize returns the dimensions of the most recent frame.
func (a *App) FrameSize() (int, int) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.frameW, a.frameH
}
