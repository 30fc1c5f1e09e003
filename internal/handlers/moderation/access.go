package moderation

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/policy/permissions"
)

type accessChecker interface {
	IsModerator(ctx context.Context, chatID, userID int64) bool
}

type chatAccessChecker struct {
	bot chatAPI
	cfg config.Config
}

func NewAccessChecker(botAPI chatAPI, cfg config.Config) *chatAccessChecker {
	return &chatAccessChecker{bot: botAPI, cfg: cfg}
}

// IsModerator fails closed: a platform query failure means not
// authorized, never a fatal error.
func (a *chatAccessChecker) IsModerator(ctx context.Context, chatID, userID int64) bool {
	if a.cfg.IsAdmin(userID) {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	member, err := a.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		log.WithFields(log.Fields{"chat_id": chatID, "user_id": userID, "error": err.Error()}).Error("cant check moderator status")
		return false
	}
	// Moderation rights require the restrict privilege, not just a
	// title. The owner always qualifies.
	return permissions.CanRestrict(&member)
}
