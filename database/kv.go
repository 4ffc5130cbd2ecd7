package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxRetries     = 3
	baseRetryDelay = 50 * time.Millisecond
)

// isTransactionConflict checks if an error is a transient write conflict:
// a DuckDB transaction conflict or a busy SQLite database.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "transaction conflict") ||
		strings.Contains(errStr, "conflict on table") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "sqlite_busy")
}

// retryOnConflict executes a function with exponential backoff retry on
// transaction conflicts. It stops early when ctx is done.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !isTransactionConflict(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			// Exponential backoff: 50ms, 100ms, 200ms
			delay := baseRetryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// Get returns the value stored under key and whether it exists.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	var value string
	err := m.storeDB.QueryRowContext(ctx, "SELECT value FROM studio_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put stores value under key, replacing any previous value. Retries on
// write conflicts.
func (m *Manager) Put(ctx context.Context, key string, value []byte) error {
	const upsert = `
		INSERT INTO studio_kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	err := retryOnConflict(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
		defer cancel()

		tx, err := m.storeDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, upsert, key, string(value)); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	m.logger.Debug("Stored key",
		zap.String("key", key),
		zap.Int("bytes", len(value)),
	)
	return nil
}

// Keys lists every stored key in ascending order.
func (m *Manager) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	rows, err := m.storeDB.QueryContext(ctx, "SELECT key FROM studio_kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}
