package db

import (
	"math"
	"time"
)

type (
	// User is upserted on every observed interaction and never deleted.
	User struct {
		ID        int64  `db:"id"`
		Username  string `db:"username"`
		FullName  string `db:"full_name"`
		FirstName string `db:"first_name"`
		LastName  string `db:"last_name"`
	}

	WarnRecord struct {
		UserID int64 `db:"user_id"`
		Count  int   `db:"count"`
	}

	// Mute is keyed by user id alone: a user carries at most one
	// outstanding mute across all chats, last write wins.
	Mute struct {
		UserID int64   `db:"user_id"`
		ChatID int64   `db:"chat_id"`
		Until  float64 `db:"until"`
	}

	Ban struct {
		ChatID int64 `db:"chat_id"`
		UserID int64 `db:"user_id"`
	}
)

func NewMute(userID, chatID int64, until time.Time) *Mute {
	return &Mute{
		UserID: userID,
		ChatID: chatID,
		Until:  float64(until.UnixNano()) / float64(time.Second),
	}
}

func (m *Mute) Expiry() time.Time {
	sec, frac := math.Modf(m.Until)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Active reports whether the mute is still in force. A record with
// until <= now is logically expired even if not yet deleted.
func (m *Mute) Active(now time.Time) bool {
	if m == nil {
		return false
	}
	return m.Expiry().After(now)
}
