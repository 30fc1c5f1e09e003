package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/ogcommunity/ogmodbot/internal/bot"
	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/db"
	"github.com/ogcommunity/ogmodbot/internal/i18n"
)

type reactorStore interface {
	GetMute(ctx context.Context, userID int64) (*db.Mute, error)
	RemoveMute(ctx context.Context, userID int64) error
}

type moderatorChecker interface {
	IsModerator(ctx context.Context, chatID, userID int64) bool
}

// Reactor watches regular group traffic: it drops messages from users
// whose mute is still in force and says goodbye to leavers.
type Reactor struct {
	bot    platformAPI
	store  reactorStore
	access moderatorChecker
	langs  languageResolver
	cfg    config.Config
	logger *log.Entry
}

func NewReactor(botAPI platformAPI, store reactorStore, access moderatorChecker, langs languageResolver, cfg config.Config) *Reactor {
	return &Reactor{
		bot:    botAPI,
		store:  store,
		access: access,
		langs:  langs,
		cfg:    cfg,
	}
}

func (r *Reactor) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if u == nil || u.Message == nil || chat == nil {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	msg := u.Message

	if msg.LeftChatMember != nil {
		r.farewell(ctx, chat.ID, msg.LeftChatMember)
		return true, nil
	}
	if isServiceMessage(msg) {
		return true, nil
	}

	if user == nil || user.IsBot {
		return true, nil
	}
	// Command traffic is the moderation engine's business.
	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return true, nil
	}

	r.forwardToAuditChannel(msg)

	mute, err := r.store.GetMute(ctx, user.ID)
	if err != nil {
		return true, err
	}
	if mute == nil {
		return true, nil
	}

	if !mute.Active(time.Now()) {
		// Stale record, the reconciler just hasn't caught up yet.
		if err := r.store.RemoveMute(ctx, user.ID); err != nil {
			r.getLogEntry().WithField("error", err.Error()).Warn("cant remove expired mute")
		}
		return true, nil
	}

	// Moderators are never silenced, even by a stray record.
	if r.access.IsModerator(ctx, chat.ID, user.ID) {
		return true, nil
	}

	if err := bot.DeleteChatMessage(ctx, r.bot, chat.ID, msg.MessageID); err != nil {
		r.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "user_id": user.ID, "error": err.Error()}).
			Error("cant delete message from muted user")
	}
	return false, nil
}

// isServiceMessage reports whether the message's only payload is a
// chat lifecycle event rather than user content.
func isServiceMessage(msg *api.Message) bool {
	return msg.NewChatMembers != nil ||
		msg.LeftChatMember != nil ||
		msg.NewChatTitle != "" ||
		msg.NewChatPhoto != nil ||
		msg.DeleteChatPhoto ||
		msg.GroupChatCreated ||
		msg.SuperGroupChatCreated ||
		msg.PinnedMessage != nil ||
		msg.MessageAutoDeleteTimerChanged != nil
}

// forwardToAuditChannel mirrors plain group traffic to the audit
// channel. Best-effort; a copy failing never blocks moderation.
func (r *Reactor) forwardToAuditChannel(msg *api.Message) {
	if r.cfg.AuditChannelID == 0 {
		return
	}
	forward := api.NewForward(r.cfg.AuditChannelID, msg.Chat.ID, msg.MessageID)
	if _, err := r.bot.Send(forward); err != nil {
		r.getLogEntry().WithField("error", err.Error()).Debug("cant forward message to audit channel")
	}
}

func (r *Reactor) farewell(ctx context.Context, chatID int64, left *api.User) {
	if left.IsBot {
		return
	}
	lang := r.langs.GetLanguage(ctx, chatID, left)
	text := fmt.Sprintf(i18n.Get("👋 Farewell, %s!", lang), bot.MentionHTML(left.ID, bot.GetFullName(left)))
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	if _, err := r.bot.Send(msg); err != nil {
		r.getLogEntry().WithField("error", err.Error()).Error("cant send farewell")
	}
}

func (r *Reactor) getLogEntry() *log.Entry {
	if r.logger == nil {
		r.logger = log.WithField("handler", "reactor")
	}
	return r.logger
}
