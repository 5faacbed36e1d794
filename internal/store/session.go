package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is the stored summary of a capture session.
type Session struct {
	ID               string    `json:"id"`
	Joint            string    `json:"joint"`
	SamplesPerSecond int       `json:"samples_per_second"`
	State            string    `json:"state"`
	Calibrated       bool      `json:"calibrated"`
	Unit             string    `json:"unit,omitempty"`
	Distance         float64   `json:"distance,omitempty"`
	ReferencePercent float64   `json:"reference_percent,omitempty"`
	Samples          int       `json:"samples"`
	ExportPath       string    `json:"export_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, joint, samples_per_second, state, calibrated, unit, distance,
	reference_percent, samples, export_path, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	err := row.Scan(&s.ID, &s.Joint, &s.SamplesPerSecond, &s.State, &s.Calibrated, &s.Unit,
		&s.Distance, &s.ReferencePercent, &s.Samples, &s.ExportPath, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(s *Session) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Joint, s.SamplesPerSecond, s.State, s.Calibrated, s.Unit, s.Distance,
		s.ReferencePercent, s.Samples, s.ExportPath, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Update saves the mutable fields of an existing session.
func (r *SessionRepository) Update(s *Session) error {
	s.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE sessions SET state = ?, calibrated = ?, unit = ?, distance = ?,
		 reference_percent = ?, samples = ?, export_path = ?, updated_at = ?
		 WHERE id = ?`,
		s.State, s.Calibrated, s.Unit, s.Distance, s.ReferencePercent, s.Samples,
		s.ExportPath, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a session and its samples.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
