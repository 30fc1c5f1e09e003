package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ogcommunity/ogmodbot/internal/db"
	errs "github.com/ogcommunity/ogmodbot/internal/errors"
)

func (c *sqliteClient) UpsertUser(ctx context.Context, user *db.User) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT OR REPLACE INTO users (id, username, full_name, first_name, last_name)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		user.ID,
		strings.ToLower(user.Username),
		user.FullName,
		user.FirstName,
		user.LastName,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.ID, err)
	}
	return nil
}

func (c *sqliteClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var user db.User
	err := c.db.GetContext(ctx, &user, `
		SELECT id, username, full_name, first_name, last_name
		FROM users
		WHERE id = ?
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (c *sqliteClient) GetUserByUsername(ctx context.Context, username string) (int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var userID int64
	err := c.db.GetContext(ctx, &userID, `SELECT id FROM users WHERE username = ?`, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}
