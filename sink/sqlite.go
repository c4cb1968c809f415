package sink

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

func init() {
	Register("sqlite", func(path string, appending bool) (Sink, error) {
		return OpenSQLite(path, appending)
	})
}

const (
	createSORFs = `
	CREATE TABLE IF NOT EXISTS sorfs (
		row INTEGER PRIMARY KEY AUTOINCREMENT,
		sORF_ID TEXT NOT NULL,
		sORF_seq TEXT NOT NULL,
		transcript_DNA_sequence_ID TEXT NOT NULL,
		start_at INTEGER NOT NULL,
		end_at INTEGER NOT NULL,
		classification TEXT NOT NULL,
		probability REAL NOT NULL
	);`
	insertSORF = `
	INSERT INTO sorfs (sORF_ID, sORF_seq, transcript_DNA_sequence_ID,
		start_at, end_at, classification, probability)
	VALUES (?, ?, ?, ?, ?, ?, ?);`
)

// SQLite stores rows in the sorfs table of an SQLite database. Every
// WriteRows call is a single transaction.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens an SQLite database. Unless appending is true an
// existing database file is replaced.
func OpenSQLite(path string, appending bool) (*SQLite, error) {
	if !appending {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// WriteHeader creates the table.
func (s *SQLite) WriteHeader() error {
	if _, err := s.db.Exec(createSORFs); err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}
	return nil
}

// WriteRows inserts rows in a single transaction.
func (s *SQLite) WriteRows(rows []Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insertSORF)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		_, err := stmt.Exec(r.ID, r.Seq, r.TranscriptID, r.StartAt, r.EndAt,
			r.Classification.String(), r.Probability)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Position returns the id of the last inserted row.
func (s *SQLite) Position() (int64, error) {
	var pos int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(row), 0) FROM sorfs;`).Scan(&pos)
	return pos, err
}

// Truncate deletes the rows inserted after the row pos.
func (s *SQLite) Truncate(pos int64) error {
	if err := s.WriteHeader(); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM sorfs WHERE row > ?;`, pos)
	if err != nil {
		return fmt.Errorf("error truncating table: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Infof("Deleted %d rows written after the checkpoint", n)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
