package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/ogcommunity/ogmodbot/internal/bot"
	"github.com/ogcommunity/ogmodbot/internal/db"
	errs "github.com/ogcommunity/ogmodbot/internal/errors"
)

const deepLinkPrefix = "tg://user?id="

// resolveTarget resolves a human-entered user reference, in priority
// order: the author of a replied-to message, a numeric id, an @handle
// known to the store, a tg deep link.
func (m *Commands) resolveTarget(ctx context.Context, msg *api.Message, arg string) (int64, error) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target := msg.ReplyToMessage.From
		if err := m.store.UpsertUser(ctx, &db.User{
			ID:        target.ID,
			Username:  target.UserName,
			FullName:  bot.GetFullName(target),
			FirstName: target.FirstName,
			LastName:  target.LastName,
		}); err != nil {
			return 0, err
		}
		return target.ID, nil
	}

	ref := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(arg), "@"))
	if ref == "" {
		return 0, errs.ErrInvalidInput
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}

	if id, err := m.store.GetUserByUsername(ctx, ref); err == nil {
		return id, nil
	}

	if strings.HasPrefix(ref, deepLinkPrefix) {
		if id, err := strconv.ParseInt(strings.TrimPrefix(ref, deepLinkPrefix), 10, 64); err == nil {
			return id, nil
		}
	}

	return 0, errs.ErrNotFound
}

func (m *Commands) mention(ctx context.Context, userID int64) string {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil || user == nil {
		return fmt.Sprintf("ID %d", userID)
	}
	return bot.MentionHTML(userID, user.FullName)
}
