package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/tracker"
)

// SampleRepository stores the motion samples of a session.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Replace stores samples as the full sequence for a session, dropping any
// previously stored ones, and updates the session's sample count.
func (r *SampleRepository) Replace(sessionID string, samples []tracker.Sample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE sessions SET samples = ?, updated_at = ? WHERE id = ?`,
		len(samples), time.Now(), sessionID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM motion_samples WHERE session_id = ?`, sessionID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO motion_samples
		(session_id, sequence, timestamp, dx, dy, angle, x, y) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range samples {
		if _, err := stmt.Exec(sessionID, i, s.Timestamp, s.DX, s.DY, s.Angle, s.Position.X, s.Position.Y); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBySessionID retrieves the samples of a session in recording order.
func (r *SampleRepository) GetBySessionID(sessionID string) ([]tracker.Sample, error) {
	rows, err := r.db.Query(
		`SELECT timestamp, dx, dy, angle, x, y
		 FROM motion_samples
		 WHERE session_id = ?
		 ORDER BY sequence`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []tracker.Sample{}
	for rows.Next() {
		var s tracker.Sample
		var p detector.Point
		if err := rows.Scan(&s.Timestamp, &s.DX, &s.DY, &s.Angle, &p.X, &p.Y); err != nil {
			return nil, err
		}
		s.Position = p
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
