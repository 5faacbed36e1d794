package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per capture session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			joint TEXT NOT NULL,
			samples_per_second INTEGER NOT NULL,
			state TEXT NOT NULL,
			calibrated INTEGER NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '',
			distance REAL NOT NULL DEFAULT 0,
			reference_percent REAL NOT NULL DEFAULT 0,
			samples INTEGER NOT NULL DEFAULT 0,
			export_path TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Recorded samples, already rounded for export
		`CREATE TABLE IF NOT EXISTS motion_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			timestamp REAL NOT NULL,
			dx REAL NOT NULL,
			dy REAL NOT NULL,
			angle REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_motion_samples_session_id ON motion_samples(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
