package learning

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

// PostgresStore persists learning state in Postgres via database/sql and
// the pgx stdlib driver. Migrations are idempotent CREATE ... IF NOT
// EXISTS statements applied on every open, so first use lazily creates
// the schema.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects to connStr, applies migrations, and caps the
// pool at 5 connections with a 30s idle timeout.
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

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		sqlBytes, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) InsertSession(ctx context.Context, ev SessionEvent) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal session event: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_session_events (id, user_id, session_id, payload, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, session_id) DO NOTHING`,
		ev.ID, ev.UserID, ev.SessionID, payload, ev.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert session event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) InsertEasePocket(ctx context.Context, ev EasePocketEvent) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal easepocket event: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_easepocket_events (id, user_id, event_id, payload, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, event_id) DO NOTHING`,
		ev.ID, ev.UserID, ev.EventID, payload, ev.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert easepocket event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) SessionsForUser(ctx context.Context, userID string) ([]SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM learning_session_events
		WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		var ev SessionEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal session event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EasePocketForUser(ctx context.Context, userID string) ([]EasePocketEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM learning_easepocket_events
		WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query easepocket events: %w", err)
	}
	defer rows.Close()

	var out []EasePocketEvent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan easepocket event: %w", err)
		}
		var ev EasePocketEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal easepocket event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordWordOutcomes(ctx context.Context, outcomes []WordOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, o := range outcomes {
		failed, succeeded := 0, 0
		if o.Failed {
			failed = 1
		}
		if o.Succeeded {
			succeeded = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO learning_word_difficulty (word, attempts, failures, successes)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (word) DO UPDATE SET
				attempts  = learning_word_difficulty.attempts + 1,
				failures  = learning_word_difficulty.failures + $2,
				successes = learning_word_difficulty.successes + $3`,
			o.Word, failed, succeeded); err != nil {
			return fmt.Errorf("upsert word difficulty: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) RecordTipResults(ctx context.Context, results []TipResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		improved := 0
		if r.Improved {
			improved = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO learning_tip_effectiveness (tip_key, shown_count, improved_count, success_score)
			VALUES ($1, 1, $2, $2)
			ON CONFLICT (tip_key) DO UPDATE SET
				shown_count    = learning_tip_effectiveness.shown_count + 1,
				improved_count = learning_tip_effectiveness.improved_count + $2,
				success_score  = (learning_tip_effectiveness.improved_count + $2)::double precision
				                 / (learning_tip_effectiveness.shown_count + 1)`,
			r.TipKey, improved); err != nil {
			return fmt.Errorf("upsert tip effectiveness: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) WordDifficulties(ctx context.Context) (map[string]WordDifficulty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT word, attempts, failures, successes FROM learning_word_difficulty`)
	if err != nil {
		return nil, fmt.Errorf("query word difficulty: %w", err)
	}
	defer rows.Close()

	out := make(map[string]WordDifficulty)
	for rows.Next() {
		var w WordDifficulty
		if err := rows.Scan(&w.Word, &w.Attempts, &w.Failures, &w.Successes); err != nil {
			return nil, fmt.Errorf("scan word difficulty: %w", err)
		}
		out[w.Word] = w.withRate()
	}
	return out, rows.Err()
}

func (s *PostgresStore) TipEffectivenesses(ctx context.Context) (map[string]TipEffectiveness, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tip_key, shown_count, improved_count FROM learning_tip_effectiveness`)
	if err != nil {
		return nil, fmt.Errorf("query tip effectiveness: %w", err)
	}
	defer rows.Close()

	out := make(map[string]TipEffectiveness)
	for rows.Next() {
		var t TipEffectiveness
		if err := rows.Scan(&t.TipKey, &t.ShownCount, &t.ImprovedCount); err != nil {
			return nil, fmt.Errorf("scan tip effectiveness: %w", err)
		}
		out[t.TipKey] = t.withScore()
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p UserProfile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_user_profiles (user_id, payload, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET payload = $2, updated_at = $3`,
		p.UserID, payload, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadProfile(ctx context.Context, userID string) (UserProfile, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM learning_user_profiles WHERE user_id = $1`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return UserProfile{}, false, nil
	}
	if err != nil {
		return UserProfile{}, false, fmt.Errorf("query profile: %w", err)
	}
	var p UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return UserProfile{}, false, fmt.Errorf("unmarshal profile: %w", err)
	}
	return p, true, nil
}
