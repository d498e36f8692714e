// Package sqlite implements the canonical work store and the full-text
// chunk index on a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/archivista/lore-ingest/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.WorkStore = (*Store)(nil)

// Store is the SQLite-backed canonical store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at dbPath and applies pending
// migrations. WAL mode and a busy timeout keep concurrent watcher workers
// and API readers from tripping over each other.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: database path required", domain.ErrInvalidInput)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// CreateWork writes the run, work, scenes and chunks in one transaction.
// A fingerprint collision aborts the whole write with ErrAlreadyExists.
func (s *Store) CreateWork(ctx context.Context, work *domain.Work, scenes []domain.Scene, chunks []domain.Chunk, run *domain.IngestRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO work (id, title, author, source, norm_text, char_count, content_sha1, ingest_run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, work.ID, work.Title, nullString(work.Author), nullString(work.Source),
		work.CanonicalText, work.CharCount, work.Fingerprint, work.IngestRunID, work.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("inserting work: %w", err)
	}

	if err := insertScenes(ctx, tx, scenes); err != nil {
		return err
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ReplaceSegments swaps a work's scenes and chunks for a new set under a
// new run, in one transaction. The canonical text is never touched.
func (s *Store) ReplaceSegments(ctx context.Context, workID string, scenes []domain.Scene, chunks []domain.Chunk, run *domain.IngestRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM work WHERE id = ?", workID).Scan(&exists); err != nil {
		return fmt.Errorf("checking work: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunk WHERE work_id = ?", workID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM scene WHERE work_id = ?", workID); err != nil {
		return fmt.Errorf("deleting scenes: %w", err)
	}

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := insertScenes(ctx, tx, scenes); err != nil {
		return err
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE work SET ingest_run_id = ? WHERE id = ?", run.ID, workID); err != nil {
		return fmt.Errorf("updating work run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// FindWorkByFingerprint returns the work with the given content fingerprint.
func (s *Store) FindWorkByFingerprint(ctx context.Context, fingerprint string) (*domain.Work, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, source, norm_text, char_count, content_sha1, ingest_run_id, created_at
		FROM work WHERE content_sha1 = ?
	`, fingerprint)
	return scanWork(row)
}

// GetWork returns a work by ID.
func (s *Store) GetWork(ctx context.Context, id string) (*domain.Work, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, source, norm_text, char_count, content_sha1, ingest_run_id, created_at
		FROM work WHERE id = ?
	`, id)
	return scanWork(row)
}

// ListWorks returns up to limit works, newest first. CanonicalText is not
// loaded for listings; use GetWork for the full text.
func (s *Store) ListWorks(ctx context.Context, titleQuery string, limit int) ([]domain.Work, error) {
	query := `
		SELECT id, title, author, source, char_count, content_sha1, ingest_run_id, created_at
		FROM work
	`
	args := []any{}
	if titleQuery != "" {
		query += " WHERE title LIKE ?"
		args = append(args, "%"+titleQuery+"%")
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying works: %w", err)
	}
	defer rows.Close()

	var works []domain.Work //nolint:prealloc // size unknown from query
	for rows.Next() {
		var w domain.Work
		var author, source sql.NullString
		if err := rows.Scan(&w.ID, &w.Title, &author, &source, &w.CharCount,
			&w.Fingerprint, &w.IngestRunID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning work: %w", err)
		}
		w.Author = author.String
		w.Source = source.String
		works = append(works, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating works: %w", err)
	}
	return works, nil
}

// ListScenes returns a work's scenes ordered by index.
func (s *Store) ListScenes(ctx context.Context, workID string) ([]domain.Scene, error) {
	if err := s.requireWork(ctx, workID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_id, idx, char_start, char_end, heading, chapter_id
		FROM scene WHERE work_id = ?
		ORDER BY idx
	`, workID)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []domain.Scene //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sc domain.Scene
		var heading, chapterID sql.NullString
		if err := rows.Scan(&sc.ID, &sc.WorkID, &sc.Index, &sc.Start, &sc.End, &heading, &chapterID); err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		sc.Heading = heading.String
		if chapterID.Valid {
			sc.ChapterID = &chapterID.String
		}
		scenes = append(scenes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}
	return scenes, nil
}

// ListChunks returns a work's chunks ordered by index.
func (s *Store) ListChunks(ctx context.Context, workID string) ([]domain.Chunk, error) {
	if err := s.requireWork(ctx, workID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_id, scene_id, idx, char_start, char_end, text, content_sha1
		FROM chunk WHERE work_id = ?
		ORDER BY idx
	`, workID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.WorkID, &c.SceneID, &c.Index, &c.Start, &c.End, &c.Text, &c.Fingerprint); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Counts returns the derived-row sizes for a work.
func (s *Store) Counts(ctx context.Context, workID string) (*domain.SegmentCounts, error) {
	var counts domain.SegmentCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT w.char_count,
			(SELECT COUNT(*) FROM scene WHERE work_id = w.id),
			(SELECT COUNT(*) FROM chunk WHERE work_id = w.id)
		FROM work w WHERE w.id = ?
	`, workID).Scan(&counts.Chars, &counts.Scenes, &counts.Chunks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("counting segments: %w", err)
	}
	return &counts, nil
}

// GetRun returns an ingest run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.IngestRun, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, created_at, params FROM ingest_run WHERE id = ?", id)

	var run domain.IngestRun
	var paramsJSON string
	if err := row.Scan(&run.ID, &run.CreatedAt, &paramsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return nil, fmt.Errorf("unmarshalling run params: %w", err)
	}
	return &run, nil
}

// requireWork returns ErrNotFound when the work does not exist.
func (s *Store) requireWork(ctx context.Context, workID string) error {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM work WHERE id = ?", workID).Scan(&exists); err != nil {
		return fmt.Errorf("checking work: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run *domain.IngestRun) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshalling run params: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_run (id, created_at, params) VALUES (?, ?, ?)
	`, run.ID, run.CreatedAt, string(paramsJSON)); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func insertScenes(ctx context.Context, tx *sql.Tx, scenes []domain.Scene) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene (id, work_id, idx, char_start, char_end, heading, chapter_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing scene insert: %w", err)
	}
	defer stmt.Close()

	for _, sc := range scenes {
		var chapterID any
		if sc.ChapterID != nil {
			chapterID = *sc.ChapterID
		}
		if _, err := stmt.ExecContext(ctx, sc.ID, sc.WorkID, sc.Index, sc.Start, sc.End,
			nullString(sc.Heading), chapterID); err != nil {
			return fmt.Errorf("inserting scene %d: %w", sc.Index, err)
		}
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []domain.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk (id, work_id, scene_id, idx, char_start, char_end, text, content_sha1)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.WorkID, c.SceneID, c.Index,
			c.Start, c.End, c.Text, c.Fingerprint); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}
	return nil
}

// scanWork scans a full work row including canonical text.
func scanWork(row *sql.Row) (*domain.Work, error) {
	var w domain.Work
	var author, source sql.NullString
	if err := row.Scan(&w.ID, &w.Title, &author, &source, &w.CanonicalText,
		&w.CharCount, &w.Fingerprint, &w.IngestRunID, &w.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning work: %w", err)
	}
	w.Author = author.String
	w.Source = source.String
	return &w, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullString maps "" to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
