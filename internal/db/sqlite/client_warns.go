package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ogcommunity/ogmodbot/internal/db"
)

func (c *sqliteClient) AddWarn(ctx context.Context, userID int64) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var count int
	err := c.db.GetContext(ctx, &count, `
		INSERT INTO warns (user_id, count) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET count = count + 1
		RETURNING count
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("add warn for user %d: %w", userID, err)
	}
	return count, nil
}

func (c *sqliteClient) GetWarns(ctx context.Context, userID int64) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT count FROM warns WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (c *sqliteClient) ClearWarns(ctx context.Context, userID int64) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT count FROM warns WHERE user_id = ?`, userID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		count = 0
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM warns WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

func (c *sqliteClient) ClearAllWarns(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM warns`)
	return err
}

func (c *sqliteClient) ListWarned(ctx context.Context) ([]db.WarnRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var records []db.WarnRecord
	err := c.db.SelectContext(ctx, &records, `SELECT user_id, count FROM warns WHERE count > 0`)
	return records, err
}
