package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"
)

// Run is the record of one finished coordinator operation.
type Run struct {
	ID         primitive.ObjectID `json:"id" yaml:"id"`
	Operation  string             `json:"operation" yaml:"operation"`
	Account    string             `json:"account" yaml:"account"`
	Status     string             `json:"status" yaml:"status"`
	Reason     string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	BaseID     string             `json:"baseId,omitempty" yaml:"baseId,omitempty"`
	Stale      bool               `json:"stale" yaml:"stale"`
	Files      []string           `json:"files" yaml:"files"`
	StartedAt  time.Time          `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt" yaml:"finishedAt"`
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		account TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		base_id TEXT,
		stale INTEGER NOT NULL DEFAULT 0,
		files TEXT NOT NULL DEFAULT '[]',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run, assigning it an id when it has none.
func (s *Store) Record(run *Run) error {
	if run.ID.IsZero() {
		run.ID = primitive.NewObjectIDFromTimestamp(run.StartedAt)
	}
	if run.Files == nil {
		run.Files = []string{}
	}

	files, err := json.Marshal(run.Files)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs
		(id, operation, account, status, reason, base_id, stale, files, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.Hex(), run.Operation, run.Account, run.Status, run.Reason, run.BaseID,
		run.Stale, string(files), run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID.Hex(), err)
	}

	utils.DebugLogger.Printf("Recorded run %s (%s %s: %s)\r\n", run.ID.Hex(), run.Operation, run.Account, run.Status)
	return nil
}

// List returns up to limit runs, most recent first. A limit of zero or less
// returns every run.
func (s *Store) List(limit int) ([]Run, error) {
	query := `
		SELECT id, operation, account, status, reason, base_id, stale, files, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			id, files         string
			reason, baseID    sql.NullString
			stale             bool
			started, finished int64
			run               Run
		)

		if err := rows.Scan(&id, &run.Operation, &run.Account, &run.Status, &reason, &baseID, &stale, &files, &started, &finished); err != nil {
			return nil, err
		}

		run.ID, err = primitive.ObjectIDFromHex(id)
		if err != nil {
			utils.WarnLogger.Printf("Skipping run with invalid id %s\r\n", id)
			continue
		}
		run.Reason = reason.String
		run.BaseID = baseID.String
		run.Stale = stale
		run.StartedAt = time.UnixMilli(started)
		run.FinishedAt = time.UnixMilli(finished)

		if err := json.Unmarshal([]byte(files), &run.Files); err != nil {
			utils.WarnLogger.Printf("Run %s has unreadable file list: %s\r\n", id, err.Error())
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
