package collab

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresStore persists lyric drafts in Postgres. Like the learning
// store, migrations are idempotent CREATE ... IF NOT EXISTS statements
// applied on every open, so the schema appears lazily on first use.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(30 * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		sqlBytes, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const draftColumns = `external_track_id, project_id, title, artist, bpm, lyrics, collaborators, source, updated_at, received_at`

func (s *PostgresStore) Upsert(ctx context.Context, req UpsertRequest, now time.Time) (LyricDraft, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LyricDraft{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, _, err := queryDraft(ctx, tx, req.ExternalTrackID)
	if err != nil {
		return LyricDraft{}, err
	}

	merged := merge(existing, req, now)

	collaboratorsJSON, err := json.Marshal(merged.Collaborators)
	if err != nil {
		return LyricDraft{}, fmt.Errorf("marshal collaborators: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collab_lyrics_drafts (`+draftColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (external_track_id) DO UPDATE SET
			project_id = $2, title = $3, artist = $4, bpm = $5, lyrics = $6,
			collaborators = $7, source = $8, updated_at = $9, received_at = $10`,
		merged.ExternalTrackID, merged.ProjectID, merged.Title, merged.Artist, merged.BPM,
		merged.Lyrics, collaboratorsJSON, merged.Source, merged.UpdatedAt, merged.ReceivedAt)
	if err != nil {
		return LyricDraft{}, fmt.Errorf("upsert draft: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return LyricDraft{}, fmt.Errorf("commit: %w", err)
	}
	return merged, nil
}

func scanDraft(scan func(...any) error) (LyricDraft, error) {
	var d LyricDraft
	var collaboratorsJSON []byte
	if err := scan(&d.ExternalTrackID, &d.ProjectID, &d.Title, &d.Artist, &d.BPM,
		&d.Lyrics, &collaboratorsJSON, &d.Source, &d.UpdatedAt, &d.ReceivedAt); err != nil {
		return LyricDraft{}, err
	}
	if err := json.Unmarshal(collaboratorsJSON, &d.Collaborators); err != nil {
		return LyricDraft{}, fmt.Errorf("unmarshal collaborators: %w", err)
	}
	return d, nil
}

func queryDraft(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, externalTrackID string) (LyricDraft, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+draftColumns+` FROM collab_lyrics_drafts WHERE external_track_id = $1`, externalTrackID)
	d, err := scanDraft(row.Scan)
	if err == sql.ErrNoRows {
		return LyricDraft{}, false, nil
	}
	if err != nil {
		return LyricDraft{}, false, fmt.Errorf("query draft: %w", err)
	}
	return d, true, nil
}

func (s *PostgresStore) Get(ctx context.Context, externalTrackID string) (LyricDraft, bool, error) {
	return queryDraft(ctx, s.db, externalTrackID)
}

func (s *PostgresStore) List(ctx context.Context, projectID, source string) ([]LyricDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM collab_lyrics_drafts WHERE TRUE`
	var args []any
	if projectID != "" {
		args = append(args, projectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if source != "" {
		args = append(args, source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	var out []LyricDraft
	for rows.Next() {
		d, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
