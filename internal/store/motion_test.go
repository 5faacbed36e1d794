package store

import (
	"errors"
	"testing"

	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/tracker"
)

func TestSampleRepository_Replace(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions().Create(newTestSession("rec")); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	samples := []tracker.Sample{
		{Timestamp: 0, DX: 0, DY: 0, Angle: 90, Position: detector.Point{X: 0.5, Y: 0.5}},
		{Timestamp: 0.1, DX: 10000, DY: -20.5, Angle: 88.4, Position: detector.Point{X: 0.51, Y: 0.5}},
		{Timestamp: 0.2, DX: 12000, DY: -21, Angle: 87.9, Position: detector.Point{X: 0.512, Y: 0.5}},
	}

	if err := s.Samples().Replace("rec", samples); err != nil {
		t.Fatalf("failed to store samples: %v", err)
	}

	got, err := s.Samples().GetBySessionID("rec")
	if err != nil {
		t.Fatalf("failed to get samples: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: expected %+v, got %+v", i, samples[i], got[i])
		}
	}

	session, err := s.Sessions().GetByID("rec")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if session.Samples != 3 {
		t.Errorf("expected sample count 3, got %d", session.Samples)
	}

	// Replacing again overwrites rather than appends.
	if err := s.Samples().Replace("rec", samples[:1]); err != nil {
		t.Fatalf("failed to replace samples: %v", err)
	}
	got, err = s.Samples().GetBySessionID("rec")
	if err != nil {
		t.Fatalf("failed to get samples: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 sample after replace, got %d", len(got))
	}
}

func TestSampleRepository_Replace_UnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.Samples().Replace("ghost", []tracker.Sample{{Angle: 1}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSampleRepository_GetBySessionID_Empty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Samples().GetBySessionID("none")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestSampleRepository_CascadeDelete(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions().Create(newTestSession("cascade")); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Samples().Replace("cascade", []tracker.Sample{{Angle: 45}}); err != nil {
		t.Fatalf("failed to store samples: %v", err)
	}

	if err := s.Sessions().Delete("cascade"); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM motion_samples WHERE session_id = ?`, "cascade").Scan(&count); err != nil {
		t.Fatalf("failed to count samples: %v", err)
	}
	if count != 0 {
		t.Errorf("expected samples deleted with session, got %d", count)
	}
}
