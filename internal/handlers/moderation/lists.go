package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/ogcommunity/ogmodbot/internal/bot"
	"github.com/ogcommunity/ogmodbot/internal/event"
	"github.com/ogcommunity/ogmodbot/internal/i18n"
	"github.com/ogcommunity/ogmodbot/internal/utils/duration"
)

func (m *Commands) cmdMutesList(ctx context.Context, msg *api.Message, lang string) error {
	mutes, err := m.store.ListActiveMutes(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(mutes) == 0 {
		m.reply(msg.Chat.ID, i18n.Get("No active mutes.", lang))
		return nil
	}

	var b strings.Builder
	b.WriteString(i18n.Get("🔇 Muted users:", lang))
	for _, mute := range mutes {
		b.WriteString("\n" + fmt.Sprintf(i18n.Get("✅ %s until %s", lang),
			m.mention(ctx, mute.UserID), mute.Expiry().Format(mutedUntilLayout)))
	}
	m.reply(msg.Chat.ID, b.String())
	return nil
}

func (m *Commands) cmdWarnsList(ctx context.Context, msg *api.Message, lang string) error {
	warned, err := m.store.ListWarned(ctx)
	if err != nil {
		return err
	}
	if len(warned) == 0 {
		m.reply(msg.Chat.ID, i18n.Get("No users with warnings.", lang))
		return nil
	}

	var b strings.Builder
	b.WriteString(i18n.Get("⚠️ Warned users:", lang))
	for _, w := range warned {
		form := duration.Pluralize(w.Count, warnForms[0], warnForms[1], warnForms[2])
		b.WriteString(fmt.Sprintf("\n%s: %d %s", m.mention(ctx, w.UserID), w.Count, form))
	}
	m.reply(msg.Chat.ID, b.String())
	return nil
}

func (m *Commands) cmdBansList(ctx context.Context, msg *api.Message, lang string) error {
	bans, err := m.store.ListBans(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	if len(bans) == 0 {
		m.reply(msg.Chat.ID, i18n.Get("No banned users.", lang))
		return nil
	}

	var b strings.Builder
	b.WriteString(i18n.Get("🚫 Banned users:", lang))
	for _, userID := range bans {
		b.WriteString("\n" + m.mention(ctx, userID))
	}
	m.reply(msg.Chat.ID, b.String())
	return nil
}

// cmdAmnesty lifts every active mute, clears the chat's ban list and
// resets all warning counters. Individual platform failures do not
// abort the sweep.
func (m *Commands) cmdAmnesty(ctx context.Context, msg *api.Message, lang string) error {
	now := time.Now()

	mutes, err := m.store.ListActiveMutes(ctx, now)
	if err != nil {
		return err
	}
	unmuted := 0
	for _, mute := range mutes {
		if m.restrictions.Lift(ctx, mute.ChatID, mute.UserID) {
			unmuted++
		}
	}

	bans, err := m.store.ListBans(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	unbanned := 0
	for _, userID := range bans {
		if err := m.store.RemoveBan(ctx, msg.Chat.ID, userID); err != nil {
			m.getLogEntry().WithField("error", err.Error()).Warn("cant remove ban record")
			continue
		}
		unbanned++
		if err := bot.UnbanUserFromChat(ctx, m.bot, userID, msg.Chat.ID); err != nil {
			m.getLogEntry().WithField("error", err.Error()).Warn("cant unban user via platform")
		}
	}

	if err := m.store.ClearAllWarns(ctx); err != nil {
		return err
	}

	m.reply(msg.Chat.ID, i18n.Get("✅ Amnesty complete! All restrictions lifted, warnings reset.", lang))
	event.Audit("Amnesty", msg.From.ID, 0, fmt.Sprintf("unmuted=%d unbanned=%d", unmuted, unbanned))
	return nil
}
