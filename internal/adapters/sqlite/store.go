// Package sqlite persists participant credentials so a participant can
// recover their identity from another connection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dkeye/Hotseat/internal/adapters/sqlite/migrations"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// Store implements core.CredentialStore over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the credential database at path and applies the bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// runMigrations applies each embedded file at most once.
func (s *Store) runMigrations() error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.sqlDB.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var n int
		if err := s.sqlDB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", migrationTable), file).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := s.sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upMigration(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upMigration returns the SQL between the Up and Down markers.
func upMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j != -1 {
		content = content[:j]
	}
	return content
}

// SaveCredential inserts or replaces the unlock key of a participant. A
// linked account survives the replace.
func (s *Store) SaveCredential(ctx context.Context, c core.Credential) error {
	if strings.TrimSpace(string(c.ParticipantID)) == "" {
		return fmt.Errorf("participant id is required")
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (participant_id, unlock_key, account, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(participant_id) DO UPDATE SET
    unlock_key = excluded.unlock_key,
    account = CASE WHEN credentials.account = '' THEN excluded.account ELSE credentials.account END`,
		string(c.ParticipantID), c.UnlockKey, c.Account, created.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, pid domain.ParticipantID) (core.Credential, error) {
	var (
		c       core.Credential
		id      string
		created int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT participant_id, unlock_key, account, created_at FROM credentials WHERE participant_id = ?`,
		string(pid),
	).Scan(&id, &c.UnlockKey, &c.Account, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credential{}, core.ErrNotFound
	}
	if err != nil {
		return core.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	c.ParticipantID = domain.ParticipantID(id)
	c.CreatedAt = time.UnixMilli(created).UTC()
	return c, nil
}

// SetAccount records the linked account; it fails for unknown participants.
func (s *Store) SetAccount(ctx context.Context, pid domain.ParticipantID, account string) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE credentials SET account = ? WHERE participant_id = ?`, account, string(pid))
	if err != nil {
		return fmt.Errorf("set account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set account: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
