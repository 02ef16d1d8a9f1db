package storage

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"phone_lister/models"
)

// SQLiteJournal mirrors jobs, row outcomes and step events to disk so a run
// can be audited after the process exits. Optional; enabled by JOBS_DB_PATH.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT,
		created_at DATETIME,
		started_at DATETIME,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS job_rows (
		job_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		platform TEXT,
		brand TEXT,
		model TEXT,
		price REAL,
		quantity INTEGER,
		status TEXT,
		kind TEXT,
		reason TEXT,
		updated_at DATETIME,
		PRIMARY KEY (job_id, row_index)
	);

	CREATE TABLE IF NOT EXISTS step_events (
		id INTEGER PRIMARY KEY,
		job_id TEXT NOT NULL,
		label TEXT,
		timestamp DATETIME,
		note TEXT,
		has_screenshot BOOLEAN
	);

	CREATE INDEX IF NOT EXISTS idx_step_events_job ON step_events(job_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

func (j *SQLiteJournal) RecordJob(job *models.Job) {
	_, err := j.db.Exec(`
		INSERT INTO jobs (id, status, created_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status,
			started_at=excluded.started_at, ended_at=excluded.ended_at`,
		job.ID, string(job.Status), job.CreatedAt, job.StartedAt, job.EndedAt)
	if err != nil {
		log.Printf("journal: record job %s: %v", job.ID, err)
	}
}

func (j *SQLiteJournal) RecordRow(jobID string, row *models.Row) {
	_, err := j.db.Exec(`
		INSERT INTO job_rows (job_id, row_index, platform, brand, model, price, quantity, status, kind, reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, row_index) DO UPDATE SET status=excluded.status,
			kind=excluded.kind, reason=excluded.reason, updated_at=excluded.updated_at`,
		jobID, row.Index, row.Platform, row.Listing.Brand, row.Listing.Model,
		row.Listing.Price, row.Listing.Quantity, string(row.Status), row.Kind, row.Reason,
		time.Now().UTC())
	if err != nil {
		log.Printf("journal: record row %s/%d: %v", jobID, row.Index, err)
	}
}

// RecordStep journals the event without its screenshot; payloads that size
// belong in the in-memory record, not an audit table.
func (j *SQLiteJournal) RecordStep(jobID string, ev models.StepEvent) {
	_, err := j.db.Exec(`
		INSERT INTO step_events (job_id, label, timestamp, note, has_screenshot)
		VALUES (?, ?, ?, ?, ?)`,
		jobID, ev.Label, ev.Timestamp, ev.Note, ev.Screenshot != "")
	if err != nil {
		log.Printf("journal: record step %s/%s: %v", jobID, ev.Label, err)
	}
}
