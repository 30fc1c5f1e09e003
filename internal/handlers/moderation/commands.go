package moderation

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
	errs "github.com/ogcommunity/ogmodbot/internal/errors"
	"github.com/ogcommunity/ogmodbot/internal/event"
	"github.com/ogcommunity/ogmodbot/internal/i18n"
	"github.com/ogcommunity/ogmodbot/internal/observability"
	"github.com/ogcommunity/ogmodbot/internal/utils/duration"
)

const (
	// warnAutoBanThreshold is the warning count at which the engine
	// escalates to an automatic ban, exactly once per crossing.
	warnAutoBanThreshold = 5

	mutedUntilLayout = "02.01.2006 15:04"
)

var warnForms = [3]string{"предупреждение", "предупреждения", "предупреждений"}

type commandFunc func(ctx context.Context, msg *api.Message, lang string) error

// languageResolver picks the reply language for a user. bot.Service
// satisfies it.
type languageResolver interface {
	GetLanguage(ctx context.Context, chatID int64, user *api.User) string
}

// Commands interprets moderator commands, mutates the store and the
// restriction gateway, and composes replies.
type Commands struct {
	bot          chatAPI
	store        db.Client
	access       accessChecker
	restrictions RestrictionService
	langs        languageResolver
	cfg          config.Config

	dispatch map[string]commandFunc
	logger   *log.Entry
}

func NewCommands(botAPI chatAPI, store db.Client, access accessChecker, restrictions RestrictionService, langs languageResolver, cfg config.Config) *Commands {
	m := &Commands{
		bot:          botAPI,
		store:        store,
		access:       access,
		restrictions: restrictions,
		langs:        langs,
		cfg:          cfg,
	}
	m.dispatch = map[string]commandFunc{
		"ban":        m.cmdBan,
		"mute":       m.cmdMute,
		"warn":       m.cmdWarn,
		"unban":      m.cmdUnban,
		"unmute":     m.cmdUnmute,
		"warns":      m.cmdWarns,
		"clearwarns": m.cmdClearWarns,
		"муты":       m.cmdMutesList,
		"mutes":      m.cmdMutesList,
		"варны":      m.cmdWarnsList,
		"warnlist":   m.cmdWarnsList,
		"баны":       m.cmdBansList,
		"banlist":    m.cmdBansList,
		"амнистия":   m.cmdAmnesty,
		"amnesty":    m.cmdAmnesty,
	}
	return m
}

func (m *Commands) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if u == nil || u.Message == nil || chat == nil || user == nil {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}

	msg := u.Message
	cmd := extractCommand(msg)
	handler, ok := m.dispatch[cmd]
	if !ok {
		return true, nil
	}

	entry := m.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "user": bot.GetUN(user), "user_id": user.ID, "command": cmd})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	lang := m.langs.GetLanguage(ctx, chat.ID, user)
	if !m.access.IsModerator(ctx, chat.ID, user.ID) {
		m.reply(msg.Chat.ID, i18n.Get("❌ You don't have enough rights.", lang))
		return false, nil
	}

	m.run(ctx, entry, handler, msg, lang)
	observability.RecordModerationAction(cmd)

	// The triggering command message is always removed, best-effort.
	if err := bot.DeleteChatMessage(ctx, m.bot, msg.Chat.ID, msg.MessageID); err != nil {
		entry.WithField("error", err.Error()).Debug("cant delete command message")
	}
	return false, nil
}

// run is the failure boundary around a single command: unexpected
// errors and panics are logged and surfaced as a generic message, the
// event loop never crashes.
func (m *Commands) run(ctx context.Context, entry *log.Entry, handler commandFunc, msg *api.Message, lang string) {
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("command handler panicked")
			m.reply(msg.Chat.ID, i18n.Get("❌ Something went wrong while executing the command.", lang))
		}
	}()
	if err := handler(ctx, msg, lang); err != nil {
		entry.WithField("error", err.Error()).Error("command handler failed")
		m.reply(msg.Chat.ID, i18n.Get("❌ Something went wrong while executing the command.", lang))
	}
}

func (m *Commands) cmdBan(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, reason := splitTargetAndRest(msg)

	userID, err := m.resolveTarget(ctx, msg, targetArg)
	if err != nil {
		m.replyResolveFailure(msg.Chat.ID, lang, err)
		return nil
	}

	if member, err := m.getChatMember(msg.Chat.ID, userID); err == nil && member.WasKicked() {
		m.replyf(msg.Chat.ID, i18n.Get("ℹ️ %s is already banned.", lang), m.mention(ctx, userID))
		return nil
	}

	banStatus := i18n.Get("kicked from the chat and blacklisted", lang)
	if err := bot.BanUserFromChat(ctx, m.bot, userID, msg.Chat.ID, 0); err != nil {
		m.getLogEntry().WithField("error", err.Error()).Error("cant ban user via platform")
		banStatus = i18n.Get("blacklisted", lang)
	}

	if err := m.store.AddBan(ctx, msg.Chat.ID, userID); err != nil {
		return err
	}

	m.deleteReplyTarget(ctx, msg)

	if reason == "" {
		reason = i18n.Get("not specified", lang)
	}
	m.replyf(msg.Chat.ID, i18n.Get("🚫 %s %s.\n\nReason: %s", lang), m.mention(ctx, userID), banStatus, reason)
	event.Audit("Ban", msg.From.ID, userID, reason)
	return nil
}

func (m *Commands) cmdMute(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, rest := splitTargetAndRest(msg)
	durArg, reason := splitFirstWord(rest)

	userID, err := m.resolveTarget(ctx, msg, targetArg)
	if err != nil {
		m.replyResolveFailure(msg.Chat.ID, lang, err)
		return nil
	}

	now := time.Now()
	if mute, err := m.store.GetMute(ctx, userID); err != nil {
		return err
	} else if mute.Active(now) {
		m.replyf(msg.Chat.ID, i18n.Get("ℹ️ %s is already muted until %s.", lang),
			m.mention(ctx, userID), mute.Expiry().Format(mutedUntilLayout))
		return nil
	}

	dur, ok := duration.Parse(durArg)
	if !ok {
		dur = duration.DefaultMute
		if durArg != "" {
			reason = strings.TrimSpace(durArg + " " + reason)
		}
	}
	until := now.Add(dur)

	// The store commits even when the enforcement call fails; the
	// platform is an unreliable channel, the store is the schedule.
	if err := m.restrictions.Restrict(ctx, msg.Chat.ID, userID, &until); err != nil {
		m.getLogEntry().WithField("error", err.Error()).Error("cant apply restriction via platform")
	}
	if err := m.store.SetMute(ctx, db.NewMute(userID, msg.Chat.ID, until)); err != nil {
		return err
	}

	m.deleteReplyTarget(ctx, msg)

	statusEmoji, statusText := "✅", i18n.Get("muted", lang)
	if member, err := m.getChatMember(msg.Chat.ID, userID); err == nil && member.Status != "restricted" {
		statusEmoji, statusText = "⚠️", i18n.Get("restricted", lang)
	}

	text := fmt.Sprintf(i18n.Get("%s %s, %s for %s.", lang), statusEmoji, m.mention(ctx, userID), statusText, duration.Display(dur))
	if reason != "" {
		text += fmt.Sprintf(i18n.Get("\n\nReason: %s", lang), reason)
	}
	m.reply(msg.Chat.ID, text)
	event.Audit("Mute", msg.From.ID, userID, duration.Display(dur))
	return nil
}

func (m *Commands) cmdWarn(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, reason := splitTargetAndRest(msg)

	userID, err := m.resolveTarget(ctx, msg, targetArg)
	if err != nil {
		m.replyResolveFailure(msg.Chat.ID, lang, err)
		return nil
	}

	count, err := m.store.AddWarn(ctx, userID)
	if err != nil {
		return err
	}
	form := duration.Pluralize(count, warnForms[0], warnForms[1], warnForms[2])

	m.deleteReplyTarget(ctx, msg)

	text := fmt.Sprintf(i18n.Get("⚠️ %s got a warning.\nTotal: %d %s.", lang), m.mention(ctx, userID), count, form)
	if reason != "" {
		text += fmt.Sprintf(i18n.Get("\nReason: %s", lang), reason)
	}

	if count >= warnAutoBanThreshold {
		banned, err := m.store.IsBanned(ctx, msg.Chat.ID, userID)
		if err != nil {
			return err
		}
		// Escalate exactly once per crossing.
		if !banned {
			if err := bot.BanUserFromChat(ctx, m.bot, userID, msg.Chat.ID, 0); err != nil {
				m.getLogEntry().WithField("error", err.Error()).Error("cant auto-ban user via platform")
			}
			if err := m.store.AddBan(ctx, msg.Chat.ID, userID); err != nil {
				return err
			}
			text += i18n.Get("\n\n🚫 Auto-ban for 5 warnings.", lang)
			event.Audit("Auto-ban 5 warns", 0, userID, "")
		}
	}

	m.reply(msg.Chat.ID, text)
	event.Audit("Warn", msg.From.ID, userID, fmt.Sprintf("Total: %d", count))
	return nil
}

func (m *Commands) cmdUnban(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, _ := splitTargetAndRest(msg)

	userID, err := m.resolveTarget(ctx, msg, targetArg)
	if err != nil {
		m.replyResolveFailure(msg.Chat.ID, lang, err)
		return nil
	}

	banned, err := m.store.IsBanned(ctx, msg.Chat.ID, userID)
	if err != nil {
		return err
	}
	if !banned {
		m.replyf(msg.Chat.ID, i18n.Get("ℹ️ %s is not banned.", lang), m.mention(ctx, userID))
		return nil
	}

	if err := m.store.RemoveBan(ctx, msg.Chat.ID, userID); err != nil {
		return err
	}

	statusText := i18n.Get("✅ Ban lifted, the user can rejoin the chat", lang)
	if err := bot.UnbanUserFromChat(ctx, m.bot, userID, msg.Chat.ID); err != nil {
		m.getLogEntry().WithField("error", err.Error()).Error("cant unban user via platform")
		statusText = i18n.Get("✅ Ban removed from the database", lang)
	}

	m.replyf(msg.Chat.ID, i18n.Get("%s. %s is no longer banned.", lang), statusText, m.mention(ctx, userID))
	event.Audit("Unban", msg.From.ID, userID, "")
	return nil
}

func (m *Commands) cmdUnmute(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, _ := splitTargetAndRest(msg)

	userID, err := m.resolveTarget(ctx, msg, targetArg)
	if err != nil {
		m.replyResolveFailure(msg.Chat.ID, lang, err)
		return nil
	}

	mute, err := m.store.GetMute(ctx, userID)
	if err != nil {
		return err
	}
	if mute == nil {
		// Not muted: no platform call at all.
		m.replyf(msg.Chat.ID, i18n.Get("ℹ️ %s is not muted.", lang), m.mention(ctx, userID))
		return nil
	}

	m.restrictions.Lift(ctx, msg.Chat.ID, userID)

	statusText := i18n.Get("✅ Mute removed from the database", lang)
	if member, err := m.getChatMember(msg.Chat.ID, userID); err == nil {
		if member.Status == "restricted" && !member.CanSendMessages {
			statusText = i18n.Get("✅ Mute removed from the database, but platform restrictions may remain", lang)
		} else {
			statusText = i18n.Get("✅ Mute lifted, the user can talk again", lang)
		}
	}

	m.replyf(msg.Chat.ID, i18n.Get("%s. %s is no longer muted.", lang), statusText, m.mention(ctx, userID))
	event.Audit("Unmute", msg.From.ID, userID, "")
	return nil
}

func (m *Commands) cmdWarns(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, _ := splitTargetAndRest(msg)

	var userID int64
	if msg.ReplyToMessage == nil && targetArg == "" {
		// Query defaults to the command author.
		userID = msg.From.ID
	} else {
		var err error
		userID, err = m.resolveTarget(ctx, msg, targetArg)
		if err != nil {
			m.replyResolveFailure(msg.Chat.ID, lang, err)
			return nil
		}
	}

	count, err := m.store.GetWarns(ctx, userID)
	if err != nil {
		return err
	}
	form := duration.Pluralize(count, warnForms[0], warnForms[1], warnForms[2])
	m.replyf(msg.Chat.ID, i18n.Get("ℹ️ %s has %d %s.", lang), m.mention(ctx, userID), count, form)
	return nil
}

func (m *Commands) cmdClearWarns(ctx context.Context, msg *api.Message, lang string) error {
	targetArg, _ := splitTargetAndRest(msg)

	userID, err := m.resolveTarget(ctx, msg, targetArg)
	if err != nil {
		m.replyResolveFailure(msg.Chat.ID, lang, err)
		return nil
	}

	prev, err := m.store.ClearWarns(ctx, userID)
	if err != nil {
		return err
	}
	m.replyf(msg.Chat.ID, i18n.Get("✅ Warnings reset (%d → 0) for %s.", lang), prev, m.mention(ctx, userID))
	event.Audit("Clear warns", msg.From.ID, userID, "")
	return nil
}

func (m *Commands) getChatMember(chatID, userID int64) (api.ChatMember, error) {
	return m.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
}

func (m *Commands) replyResolveFailure(chatID int64, lang string, err error) {
	if err == nil {
		return
	}
	text := i18n.Get("❌ User not found.", lang)
	if errs.Is(err, errs.ErrInvalidInput) {
		text = i18n.Get("❌ Specify a user.", lang)
	}
	m.reply(chatID, text)
}

// deleteReplyTarget removes the offending message a punitive command
// replied to, best-effort.
func (m *Commands) deleteReplyTarget(ctx context.Context, msg *api.Message) {
	if msg.ReplyToMessage == nil {
		return
	}
	if err := bot.DeleteChatMessage(ctx, m.bot, msg.Chat.ID, msg.ReplyToMessage.MessageID); err != nil {
		m.getLogEntry().WithField("error", err.Error()).Warn("cant delete target message")
	}
}

func (m *Commands) reply(chatID int64, text string) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	if _, err := m.bot.Send(msg); err != nil {
		m.getLogEntry().WithField("error", err.Error()).Error("cant send reply")
	}
}

func (m *Commands) replyf(chatID int64, format string, args ...any) {
	m.reply(chatID, fmt.Sprintf(format, args...))
}

func (m *Commands) getLogEntry() *log.Entry {
	if m.logger == nil {
		m.logger = log.WithField("handler", "moderation")
	}
	return m.logger
}

// extractCommand pulls the command word even when the platform did not
// tag a bot_command entity (latin-free command aliases).
func extractCommand(msg *api.Message) string {
	if cmd := msg.Command(); cmd != "" {
		return strings.ToLower(cmd)
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word := strings.Fields(text)[0]
	word = strings.TrimPrefix(word, "/")
	if at := strings.Index(word, "@"); at >= 0 {
		word = word[:at]
	}
	return strings.ToLower(word)
}

// commandArguments is everything after the command word.
func commandArguments(msg *api.Message) string {
	text := strings.TrimSpace(msg.Text)
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		return strings.TrimSpace(text[i:])
	}
	return ""
}

// splitTargetAndRest parses the positional target argument, which is
// absent when the command replies to the target's message.
func splitTargetAndRest(msg *api.Message) (target, rest string) {
	args := commandArguments(msg)
	if msg.ReplyToMessage != nil {
		return "", args
	}
	return splitFirstWord(args)
}

func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}
