package app

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/capture"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/overlay"
	"github.com/ayusman/jointtrack/internal/publish"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/tracker"
)

// runPipeline reads frames until stopCh is closed or the source ends.
//
// Per frame:
// 1. Read a frame
// 2. Detect the pose, unless previewing a static scene
// 3. Record it when the session is recording
// 4. Draw the overlay and keep the frame for the preview stream
// 5. Publish recorded samples and notify OnResult
func (a *App) runPipeline(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	var tick <-chan time.Time
	if a.config.FrameInterval > 0 {
		ticker := time.NewTicker(a.config.FrameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stopCh:
			return
		default:
		}
		if tick != nil {
			select {
			case <-stopCh:
				return
			case <-tick:
			}
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				log.Println("End of stream")
				if _, err := a.StopRecording(); err != nil && !errors.Is(err, session.ErrInvalidTransition) {
					log.Printf("Error stopping recording: %v", err)
				}
				return
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}

		if _, err := a.ProcessFrame(frame, a.clock.Now()); err != nil {
			log.Printf("Error processing frame: %v", err)
		}
		frame.Close()
	}
}

// ProcessFrame runs detection, recording and annotation on one frame.
// The frame is drawn on in place. A nil result with a nil error means no
// pose was detected.
func (a *App) ProcessFrame(frame *gocv.Mat, at time.Time) (*tracker.Result, error) {
	if frame == nil || frame.Empty() {
		return nil, capture.ErrEmptyFrame
	}
	w, h := frame.Cols(), frame.Rows()

	a.mu.RLock()
	state := a.session.State()
	picker := a.session.Picker()
	var points []calibration.Point
	if picker != nil {
		points = picker.Points()
	}
	a.mu.RUnlock()

	pose, err := a.detect(frame, state == session.StateRecording)
	if err != nil {
		a.storeFrame(frame, w, h)
		return nil, fmt.Errorf("detect: %w", err)
	}

	var result *tracker.Result
	if pose != nil {
		result, err = a.measure(w, h, pose, at)
	}

	var annotation *tracker.Annotation
	if result != nil {
		annotation = &result.Annotation
	}
	status := ""
	if state == session.StateRecording {
		status = "REC"
	}
	overlay.Render(frame, pose, annotation, overlay.Options{Skeleton: a.config.Skeleton, Status: status})
	if len(points) > 0 {
		overlay.DrawPoints(frame, points)
	}
	a.storeFrame(frame, w, h)

	if result == nil {
		return nil, err
	}

	a.frameMu.Lock()
	r := *result
	a.lastResult = &r
	a.frameMu.Unlock()

	if result.Recorded {
		a.publishSample(result.Sample)
	}
	if a.config.OnResult != nil {
		a.config.OnResult(*result)
	}
	return result, err
}

// detect runs the detector. While not recording, a static scene reuses the
// previous pose instead of calling the detector again.
func (a *App) detect(frame *gocv.Mat, recording bool) (*detector.PoseLandmarks, error) {
	if a.scene != nil && !recording {
		if changed, _ := a.scene.Changed(frame); !changed {
			return a.lastPose, nil
		}
	} else if a.scene != nil {
		a.scene.Reset()
	}

	d := a.Detector()
	if d == nil {
		return nil, nil
	}
	pose, err := d.Detect(frame)
	if err != nil {
		return nil, err
	}
	a.lastPose = pose
	return pose, nil
}

// measure records the pose when recording; otherwise it computes the angle
// for display only.
func (a *App) measure(w, h int, pose *detector.PoseLandmarks, at time.Time) (*tracker.Result, error) {
	a.mu.Lock()
	if a.session.State() == session.StateRecording {
		res, err := a.session.Process(w, h, pose, at)
		a.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &res, nil
	}
	a.mu.Unlock()

	preview := tracker.New(tracker.Config{})
	res, err := preview.Record(w, h, pose, a.config.Joint, at)
	if err != nil {
		return nil, err
	}
	res.Recorded = false
	res.Annotation.Recorded = false
	return &res, nil
}

func (a *App) publishSample(s tracker.Sample) {
	a.mu.RLock()
	st := a.session.Status()
	a.mu.RUnlock()

	msg := publish.Message{
		SessionID:  st.ID,
		Joint:      st.Joint,
		Calibrated: st.Calibrated,
		Unit:       string(st.Unit),
		Sample:     s,
	}
	if err := a.pub.Publish(msg); err != nil {
		log.Printf("Error publishing sample: %v", err)
	}
}

func (a *App) storeFrame(frame *gocv.Mat, w, h int) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.frameMu.Lock()
	a.frameJPEG = data
	a.frameSeq++
	a.frameW, a.frameH = w, h
	a.frameMu.Unlock()
}
