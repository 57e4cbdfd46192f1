// Package catalog keeps a SQLite ledger of every image famlysync has stored.
//
// The checkpoint file decides what to fetch; the catalog records what was
// actually written, by which run, and whether its capture date was set. It
// backs the "catalog stats" command and is safe to delete.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"famlysync/pkg/catalog/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Entry is one stored image
type Entry struct {
	ImageID   string
	ChildID   string
	ChildName string
	CreatedAt time.Time
	Path      string
	SizeBytes int64
	Tagged    bool
	RunID     string
}

// ChildStats summarises the stored images of one child
type ChildStats struct {
	ChildID   string
	ChildName string
	Images    int
	Bytes     int64
	Newest    time.Time
}

// Run is one recorded sync run
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Downloaded int
	Failed     int
}

// Catalog is the SQLite-backed ledger
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog at path and brings its schema up to date.
// path may be ":memory:".
func Open(path string) (*Catalog, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create catalog directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialised
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, path: path}, nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database location
func (c *Catalog) Path() string {
	return c.path
}

// StartRun records the start of a sync run and returns its id
func (c *Catalog) StartRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, formatTime(startedAt))
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome of a run
func (c *Catalog) FinishRun(ctx context.Context, runID string, downloaded, failed int, finishedAt time.Time) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, downloaded = ?, failed = ? WHERE id = ?`,
		formatTime(finishedAt), downloaded, failed, runID)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

// Record stores an image. Recording the same image id again replaces the row.
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	var runID interface{}
	if e.RunID != "" {
		runID = e.RunID
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO images (image_id, child_id, child_name, created_at, path, size_bytes, tagged, run_id, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			child_id = excluded.child_id,
			child_name = excluded.child_name,
			created_at = excluded.created_at,
			path = excluded.path,
			size_bytes = excluded.size_bytes,
			tagged = excluded.tagged,
			run_id = excluded.run_id,
			downloaded_at = excluded.downloaded_at`,
		e.ImageID, e.ChildID, e.ChildName, formatTime(e.CreatedAt), e.Path, e.SizeBytes, e.Tagged, runID,
		formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("recording image %s: %w", e.ImageID, err)
	}
	return nil
}

// Has reports whether imageID has been recorded
func (c *Catalog) Has(ctx context.Context, imageID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM images WHERE image_id = ?`, imageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up image %s: %w", imageID, err)
	}
	return true, nil
}

// Stats returns per-child totals ordered by child name
func (c *Catalog) Stats(ctx context.Context) ([]ChildStats, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT child_id, MAX(child_name), COUNT(*), COALESCE(SUM(size_bytes), 0), MAX(created_at)
		FROM images
		GROUP BY child_id
		ORDER BY MAX(child_name), child_id`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog stats: %w", err)
	}
	defer rows.Close()

	var stats []ChildStats
	for rows.Next() {
		var (
			s      ChildStats
			newest string
		)
		if err := rows.Scan(&s.ChildID, &s.ChildName, &s.Images, &s.Bytes, &newest); err != nil {
			return nil, fmt.Errorf("scanning catalog stats: %w", err)
		}
		s.Newest = parseTime(newest)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// LastRun returns the most recently started run, or nil if none
func (c *Catalog) LastRun(ctx context.Context) (*Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, downloaded, failed
		FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&r.ID, &started, &finished, &r.Downloaded, &r.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last run: %w", err)
	}

	r.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		r.FinishedAt = &t
	}
	return &r, nil
}

// timeLayout is fixed width and UTC so text comparison orders correctly
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
