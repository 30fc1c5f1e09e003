package db

import (
	"context"
	"time"
)

// Client is the persistent store. Every mutating call commits before
// returning; no partial-write state is observable to other readers.
type Client interface {
	Close() error

	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (int64, error)

	AddWarn(ctx context.Context, userID int64) (int, error)
	GetWarns(ctx context.Context, userID int64) (int, error)
	ClearWarns(ctx context.Context, userID int64) (int, error)
	ClearAllWarns(ctx context.Context) error
	ListWarned(ctx context.Context) ([]WarnRecord, error)

	SetMute(ctx context.Context, mute *Mute) error
	RemoveMute(ctx context.Context, userID int64) error
	GetMute(ctx context.Context, userID int64) (*Mute, error)
	ListActiveMutes(ctx context.Context, now time.Time) ([]*Mute, error)
	ListExpiredMutes(ctx context.Context, now time.Time) ([]*Mute, error)

	AddBan(ctx context.Context, chatID, userID int64) error
	RemoveBan(ctx context.Context, chatID, userID int64) error
	IsBanned(ctx context.Context, chatID, userID int64) (bool, error)
	ListBans(ctx context.Context, chatID int64) ([]int64, error)
	ClearBans(ctx context.Context, chatID int64) error
}
