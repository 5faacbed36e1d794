package app

import (
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/export"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/store"
)

// Status returns a snapshot of the current session.
func (a *App) Status() session.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Status()
}

// NewSession replaces the current session with a fresh one. A recording in
// progress is stopped and saved first.
func (a *App) NewSession() (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil && a.session.State() == session.StateRecording {
		if err := a.stopLocked(); err != nil {
			return session.Status{}, err
		}
	}

	s, err := session.New(session.Config{
		Joint:            a.config.Joint,
		SamplesPerSecond: a.config.SamplesPerSecond,
	})
	if err != nil {
		return session.Status{}, err
	}
	a.session = s
	a.persistCreate()

	log.Printf("Session %s created for %s", s.ID(), a.config.Joint)
	return s.Status(), nil
}

// PickPoint presses at p on the reference frame, optionally drags to moveTo,
// and releases. The first pick starts calibration on the current frame size.
func (a *App) PickPoint(p calibration.Point, moveTo *calibration.Point) (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.State() == session.StateUninitialized {
		w, h := a.FrameSize()
		if w == 0 || h == 0 {
			return a.session.Status(), ErrNoFrame
		}
		if err := a.session.BeginCalibration(w, h); err != nil {
			return a.session.Status(), err
		}
		a.persistUpdate()
	}

	pk := a.session.Picker()
	if pk == nil {
		return a.session.Status(), fmt.Errorf("%w: pick while %s", session.ErrInvalidTransition, a.session.State())
	}

	pk.Press(p)
	if moveTo != nil {
		pk.Move(*moveTo)
	}
	pk.Release()

	return a.session.Status(), nil
}

// ResetPoints clears the picked points.
func (a *App) ResetPoints() (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pk := a.session.Picker()
	if pk == nil {
		return a.session.Status(), fmt.Errorf("%w: reset while %s", session.ErrInvalidTransition, a.session.State())
	}
	pk.Reset()
	return a.session.Status(), nil
}

// FinishCalibration completes the two-point pick with the real-world distance.
func (a *App) FinishCalibration(distance calibration.Distance) (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.FinishCalibration(distance); err != nil {
		return a.session.Status(), err
	}
	a.persistUpdate()

	st := a.session.Status()
	log.Printf("Calibrated: reference %.2f%% of diagonal = %v %s", st.ReferencePercent, st.Distance, st.Unit)
	return st, nil
}

// Calibrate applies a known scale without picking points.
func (a *App) Calibrate(referencePercent float64, distance calibration.Distance) (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.Calibrate(referencePercent, distance); err != nil {
		return a.session.Status(), err
	}
	a.persistUpdate()
	return a.session.Status(), nil
}

// CalibrateWithPoints calibrates from two reference points on the camera's
// frame without going through the picker. The camera must be open.
func (a *App) CalibrateWithPoints(p1, p2 calibration.Point, distance calibration.Distance) (session.Status, error) {
	w, h := a.camera.Size()
	if w == 0 || h == 0 {
		w, h = a.FrameSize()
	}
	if w == 0 || h == 0 {
		return a.Status(), ErrNoFrame
	}
	pct, err := calibration.ReferencePercentage(p1, p2, w, h)
	if err != nil {
		return a.Status(), err
	}
	return a.Calibrate(pct, distance)
}

// SkipCalibration records angles only.
func (a *App) SkipCalibration() (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.SkipCalibration(); err != nil {
		return a.session.Status(), err
	}
	a.persistUpdate()
	return a.session.Status(), nil
}

// StartRecording begins recording samples in the current session.
func (a *App) StartRecording() (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.Start(); err != nil {
		return a.session.Status(), err
	}
	a.persistUpdate()

	log.Printf("Recording started for session %s", a.session.ID())
	return a.session.Status(), nil
}

// StopRecording ends recording and saves the samples.
func (a *App) StopRecording() (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.stopLocked(); err != nil {
		return a.session.Status(), err
	}
	return a.session.Status(), nil
}

func (a *App) stopLocked() error {
	if err := a.session.Stop(); err != nil {
		return err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Samples().Replace(a.session.ID(), a.session.Samples()); err != nil {
			log.Printf("Error saving samples: %v", err)
		}
	}
	a.persistUpdate()

	log.Printf("Recording stopped: %d samples", a.session.Len())
	return nil
}

// Export writes the stopped session to a new CSV file in the output
// directory and returns its path. An empty name uses the configured one.
func (a *App) Export(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if name == "" {
		name = a.config.FileName
	}
	if err := export.ValidateFileName(name); err != nil {
		return "", err
	}
	if st := a.session.State(); st != session.StateStopped && st != session.StateExported {
		return "", fmt.Errorf("%w: export while %s", session.ErrInvalidTransition, st)
	}

	path, err := export.Save(a.config.OutputDir, name, a.session.Samples(), a.session.Calibrated())
	if err != nil {
		return "", err
	}
	if err := a.session.MarkExported(); err != nil {
		return "", err
	}
	a.persistUpdate(func(r *store.Session) { r.ExportPath = path })

	log.Printf("Exported %d samples to %s", a.session.Len(), path)
	return path, nil
}

// Discard drops the current session without exporting.
func (a *App) Discard() (session.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.Discard(); err != nil {
		return a.session.Status(), err
	}
	a.persistUpdate()
	return a.session.Status(), nil
}

func (a *App) record() *store.Session {
	st := a.session.Status()
	return &store.Session{
		ID:               st.ID,
		Joint:            st.Joint,
		SamplesPerSecond: st.SamplesPerSecond,
		State:            string(st.State),
		Calibrated:       st.Calibrated,
		Unit:             string(st.Unit),
		Distance:         st.Distance,
		ReferencePercent: st.ReferencePercent,
		Samples:          st.Samples,
	}
}

func (a *App) persistCreate() {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Sessions().Create(a.record()); err != nil {
		log.Printf("Error saving session: %v", err)
	}
}

func (a *App) persistUpdate(edits ...func(*store.Session)) {
	if a.config.Store == nil {
		return
	}
	repo := a.config.Store.Sessions()

	rec := a.record()
	if prev, err := repo.GetByID(rec.ID); err == nil {
		rec.ExportPath = prev.ExportPath
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Error loading session: %v", err)
	}
	for _, edit := range edits {
		edit(rec)
	}

	if err := repo.Update(rec); err != nil {
		log.Printf("Error updating session: %v", err)
	}
}
