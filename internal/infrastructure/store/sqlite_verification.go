package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteVerificationStore persists records in a sqlite database.
type SQLiteVerificationStore struct {
	db     *sql.DB
	opts   Options
	logger port.Logger
}

// OpenSQLiteVerificationStore opens (creating if needed) the database at path, runs
// the embedded migrations and drops records past their hard TTL.
func OpenSQLiteVerificationStore(ctx context.Context, path string, opts Options, logger port.Logger) (*SQLiteVerificationStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteVerificationStore{db: db, opts: opts.withDefaults(), logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	removed, err := s.Purge(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Verification store opened", "path", path, "purged", removed)
	return s, nil
}

// migrate executes migrations/*.sql in file name order.
func (s *SQLiteVerificationStore) migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Get implements port.VerificationStore.
func (s *SQLiteVerificationStore) Get(ctx context.Context, chainID uint64, address string) (*entity.VerificationRecord, error) {
	minCheckedAt := s.opts.Now().Add(-s.opts.MaxAge).Unix()

	var (
		verified             int
		source               string
		checkedAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT is_verified, source, checked_at, expires_at
		FROM contract_verification
		WHERE chain_id = ? AND address = ? AND checked_at >= ?
		LIMIT 1
	`, int64(chainID), strings.ToLower(address), minCheckedAt).Scan(&verified, &source, &checkedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query verification %d/%s: %w", chainID, address, err)
	}
	return &entity.VerificationRecord{
		ChainID:    chainID,
		Address:    strings.ToLower(address),
		IsVerified: verified == 1,
		Source:     source,
		CheckedAt:  time.Unix(checkedAt, 0).UTC(),
		ExpiresAt:  time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// Set implements port.VerificationStore.
func (s *SQLiteVerificationStore) Set(ctx context.Context, chainID uint64, address string, isVerified bool, source string) error {
	record := newRecord(chainID, address, isVerified, source, s.opts.Now(), s.opts.HardTTL)
	verified := 0
	if record.IsVerified {
		verified = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contract_verification(chain_id, address, is_verified, source, checked_at, expires_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, address) DO UPDATE SET
			is_verified=excluded.is_verified,
			source=excluded.source,
			checked_at=excluded.checked_at,
			expires_at=excluded.expires_at
	`, int64(chainID), record.Address, verified, record.Source, record.CheckedAt.Unix(), record.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert verification %d/%s: %w", chainID, address, err)
	}
	return nil
}

// Purge deletes records past their hard TTL and reports how many were removed.
func (s *SQLiteVerificationStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contract_verification WHERE expires_at < ?`, s.opts.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge verification records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteVerificationStore) Close() error {
	return s.db.Close()
}
