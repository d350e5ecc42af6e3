// Package store records cross-validation runs and their per-fold results in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	data_path     TEXT NOT NULL,
	labels_path   TEXT NOT NULL,
	seed          INTEGER NOT NULL,
	mode          TEXT NOT NULL,
	subjects      INTEGER NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	mean_auc      REAL,
	std_auc       REAL,
	mean_accuracy REAL,
	std_accuracy  REAL
);

CREATE TABLE IF NOT EXISTS folds (
	run_id        TEXT NOT NULL,
	fold          INTEGER NOT NULL,
	subject       INTEGER NOT NULL,
	valid_subject INTEGER,
	seed          INTEGER NOT NULL,
	auc           REAL,
	accuracy      REAL,
	train_size    INTEGER,
	valid_size    INTEGER,
	test_size     INTEGER,
	duration_ms   INTEGER,
	error         TEXT,
	PRIMARY KEY (run_id, fold),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Run is one invocation of the harness.
type Run struct {
	ID         string
	DataPath   string
	LabelsPath string
	Seed       int64
	Mode       string
	Subjects   int
	StartedAt  time.Time
}

// Summary is the aggregate written when a run finishes. NaN is stored as NULL.
type Summary struct {
	MeanAUC, StdAUC           float64
	MeanAccuracy, StdAccuracy float64
}

// Fold is one fold's row. A failed fold has NaN metrics and a non-empty Error.
type Fold struct {
	Fold         int
	Subject      int
	ValidSubject int // -1 when the fold failed before the nested split
	Seed         int64
	AUC          float64
	Accuracy     float64
	TrainSize    int
	ValidSize    int
	TestSize     int
	Duration     time.Duration
	Error        string
}

// Store wraps the results database.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// parallel folds write concurrently; one connection serialises them
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// StartRun inserts the run row. Folds may be saved once it exists.
func (s *Store) StartRun(r Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, data_path, labels_path, seed, mode, subjects, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DataPath, r.LabelsPath, r.Seed, r.Mode, r.Subjects, r.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the aggregate metrics and the finish time.
func (s *Store) FinishRun(runID string, sum Summary, at time.Time) error {
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, mean_auc = ?, std_auc = ?, mean_accuracy = ?, std_accuracy = ?
		 WHERE run_id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		nullable(sum.MeanAUC), nullable(sum.StdAUC), nullable(sum.MeanAccuracy), nullable(sum.StdAccuracy),
		runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// SaveFold inserts or replaces one fold row of a run.
func (s *Store) SaveFold(runID string, f Fold) error {
	var valid any
	if f.ValidSubject >= 0 {
		valid = f.ValidSubject
	}
	var errText any
	if f.Error != "" {
		errText = f.Error
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO folds
		 (run_id, fold, subject, valid_subject, seed, auc, accuracy, train_size, valid_size, test_size, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, f.Fold, f.Subject, valid, f.Seed, nullable(f.AUC), nullable(f.Accuracy),
		f.TrainSize, f.ValidSize, f.TestSize, f.Duration.Milliseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("insert fold %d: %w", f.Fold, err)
	}
	return nil
}

// Folds returns a run's folds ordered by fold index. NULL metrics read back as NaN.
func (s *Store) Folds(runID string) ([]Fold, error) {
	rows, err := s.db.Query(
		`SELECT fold, subject, valid_subject, seed, auc, accuracy, train_size, valid_size, test_size, duration_ms, error
		 FROM folds WHERE run_id = ? ORDER BY fold`, runID)
	if err != nil {
		return nil, fmt.Errorf("query folds: %w", err)
	}
	defer rows.Close()

	var out []Fold
	for rows.Next() {
		var (
			f         Fold
			valid     sql.NullInt64
			auc, acc  sql.NullFloat64
			durMillis int64
			errText   sql.NullString
		)
		if err := rows.Scan(&f.Fold, &f.Subject, &valid, &f.Seed, &auc, &acc,
			&f.TrainSize, &f.ValidSize, &f.TestSize, &durMillis, &errText); err != nil {
			return nil, fmt.Errorf("scan fold: %w", err)
		}
		f.ValidSubject = -1
		if valid.Valid {
			f.ValidSubject = int(valid.Int64)
		}
		f.AUC = fromNull(auc)
		f.Accuracy = fromNull(acc)
		f.Duration = time.Duration(durMillis) * time.Millisecond
		f.Error = errText.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// RunSummary reads back the aggregate of a finished run.
func (s *Store) RunSummary(runID string) (Summary, error) {
	var ma, sa, mc, sc sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT mean_auc, std_auc, mean_accuracy, std_accuracy FROM runs WHERE run_id = ?`, runID,
	).Scan(&ma, &sa, &mc, &sc)
	if err != nil {
		return Summary{}, fmt.Errorf("query run %s: %w", runID, err)
	}
	return Summary{
		MeanAUC: fromNull(ma), StdAUC: fromNull(sa),
		MeanAccuracy: fromNull(mc), StdAccuracy: fromNull(sc),
	}, nil
}

// nullable maps NaN to NULL; SQLite has no NaN.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
