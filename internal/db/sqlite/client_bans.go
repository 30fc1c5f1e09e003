package sqlite

import (
	"context"
	"fmt"
)

func (c *sqliteClient) AddBan(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `INSERT OR IGNORE INTO bans (chat_id, user_id) VALUES (?, ?)`, chatID, userID)
	if err != nil {
		return fmt.Errorf("add ban for user %d in chat %d: %w", userID, chatID, err)
	}
	return nil
}

func (c *sqliteClient) RemoveBan(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM bans WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

func (c *sqliteClient) IsBanned(ctx context.Context, chatID, userID int64) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bans WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return count > 0, err
}

func (c *sqliteClient) ListBans(ctx context.Context, chatID int64) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var userIDs []int64
	err := c.db.SelectContext(ctx, &userIDs, `SELECT user_id FROM bans WHERE chat_id = ?`, chatID)
	return userIDs, err
}

func (c *sqliteClient) ClearBans(ctx context.Context, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM bans WHERE chat_id = ?`, chatID)
	return err
}
