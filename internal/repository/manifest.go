package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/debemdeboas/notebook/internal/db"
	"github.com/samber/lo"
)

// ManifestEntry records what the last build emitted for one page.
type ManifestEntry struct {
	Slug        string
	ContentHash string
	OutputPath  string
	BuildID     string
	BuiltAt     time.Time
	Callouts    int
	Size        int64
}

type BuildRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Skipped    int
	Warnings   int
}

// ManifestRepository is the incremental build state kept in SQLite.
type ManifestRepository struct {
	db db.Db
}

func NewManifestRepository(db db.Db) *ManifestRepository {
	return &ManifestRepository{db: db}
}

// Times are stored as fixed-width RFC 3339 text so they sort as strings and
// read back without driver specific parsing.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func (r *ManifestRepository) Get(slug string) (*ManifestEntry, error) {
	row := r.db.Get().QueryRow(
		`SELECT slug, md_content_hash, output_path, build_id, built_at, callouts, size FROM pages WHERE slug = ?`, slug)

	var e ManifestEntry
	var buildID sql.NullString
	var builtAt string
	err := row.Scan(&e.Slug, &e.ContentHash, &e.OutputPath, &buildID, &builtAt, &e.Callouts, &e.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning manifest entry: %w", err)
	}

	e.BuildID = buildID.String
	if e.BuiltAt, err = parseTime(builtAt); err != nil {
		return nil, fmt.Errorf("error parsing built_at %q: %w", builtAt, err)
	}
	return &e, nil
}

func (r *ManifestRepository) Put(e ManifestEntry) error {
	_, err := r.db.Exec(`
INSERT INTO pages (slug, md_content_hash, output_path, build_id, built_at, callouts, size)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    md_content_hash = excluded.md_content_hash,
    output_path = excluded.output_path,
    build_id = excluded.build_id,
    built_at = excluded.built_at,
    callouts = excluded.callouts,
    size = excluded.size`,
		e.Slug, e.ContentHash, e.OutputPath, e.BuildID, formatTime(e.BuiltAt), e.Callouts, e.Size)
	if err != nil {
		return fmt.Errorf("error saving manifest entry %s: %w", e.Slug, err)
	}
	return nil
}

// Prune deletes every entry whose slug is not in keep and returns the
// output paths of the deleted entries.
func (r *ManifestRepository) Prune(keep []string) ([]string, error) {
	query := `SELECT slug, output_path FROM pages`
	args := lo.Map(keep, func(s string, _ int) any { return s })
	if len(keep) > 0 {
		query += ` WHERE slug NOT IN (` + strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",") + `)`
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying stale pages: %w", err)
	}
	var slugs, paths []string
	for rows.Next() {
		var slug, p string
		if err := rows.Scan(&slug, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning stale page: %w", err)
		}
		slugs = append(slugs, slug)
		paths = append(paths, p)
	}
	rows.Close()

	for _, slug := range slugs {
		if _, err := r.db.Exec(`DELETE FROM pages WHERE slug = ?`, slug); err != nil {
			return nil, fmt.Errorf("error deleting %s: %w", slug, err)
		}
	}
	return paths, nil
}

func (r *ManifestRepository) Slugs() ([]string, error) {
	rows, err := r.db.Query(`SELECT slug FROM pages ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("error querying pages: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

func (r *ManifestRepository) RecordBuild(b BuildRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO builds (id, started_at, finished_at, pages, skipped, warnings) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, formatTime(b.StartedAt), formatTime(b.FinishedAt), b.Pages, b.Skipped, b.Warnings)
	if err != nil {
		return fmt.Errorf("error recording build %s: %w", b.ID, err)
	}
	return nil
}

// LastBuild returns the most recently started build, or nil when there is none.
func (r *ManifestRepository) LastBuild() (*BuildRecord, error) {
	row := r.db.Get().QueryRow(
		`SELECT id, started_at, finished_at, pages, skipped, warnings FROM builds ORDER BY started_at DESC LIMIT 1`)

	var b BuildRecord
	var started string
	var finished sql.NullString
	err := row.Scan(&b.ID, &started, &finished, &b.Pages, &b.Skipped, &b.Warnings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning build: %w", err)
	}

	if b.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		if b.FinishedAt, err = parseTime(finished.String); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
