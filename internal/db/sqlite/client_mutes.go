package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ogcommunity/ogmodbot/internal/db"
)

func (c *sqliteClient) SetMute(ctx context.Context, mute *db.Mute) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT OR REPLACE INTO mutes (user_id, chat_id, until)
		VALUES (?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query, mute.UserID, mute.ChatID, mute.Until)
	if err != nil {
		return fmt.Errorf("set mute for user %d: %w", mute.UserID, err)
	}
	return nil
}

func (c *sqliteClient) RemoveMute(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM mutes WHERE user_id = ?`, userID)
	return err
}

func (c *sqliteClient) GetMute(ctx context.Context, userID int64) (*db.Mute, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var mute db.Mute
	err := c.db.GetContext(ctx, &mute, `SELECT user_id, chat_id, until FROM mutes WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &mute, nil
}

func (c *sqliteClient) ListActiveMutes(ctx context.Context, now time.Time) ([]*db.Mute, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var mutes []*db.Mute
	err := c.db.SelectContext(ctx, &mutes, `SELECT user_id, chat_id, until FROM mutes WHERE until > ?`, epoch(now))
	return mutes, err
}

func (c *sqliteClient) ListExpiredMutes(ctx context.Context, now time.Time) ([]*db.Mute, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var mutes []*db.Mute
	err := c.db.SelectContext(ctx, &mutes, `SELECT user_id, chat_id, until FROM mutes WHERE until <= ?`, epoch(now))
	return mutes, err
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
