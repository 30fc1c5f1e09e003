package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ogcommunity/ogmodbot/internal/bot"
	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/db"
	"github.com/ogcommunity/ogmodbot/internal/event"
	"github.com/ogcommunity/ogmodbot/internal/i18n"
	"github.com/ogcommunity/ogmodbot/internal/observability"
)

const (
	verificationTimeout = 120 * time.Second

	updateTypeCallbackQuery  updateType = "callback_query"
	updateTypeNewChatMembers updateType = "new_chat_members"
	updateTypeIgnore         updateType = "ignore"
)

type updateType string

type platformAPI interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	Send(c api.Chattable) (api.Message, error)
	GetChatMember(c api.GetChatMemberConfig) (api.ChatMember, error)
}

// languageResolver picks the reply language for a user. bot.Service
// satisfies it.
type languageResolver interface {
	GetLanguage(ctx context.Context, chatID int64, user *api.User) string
}

type gatekeeperStore interface {
	UpsertUser(ctx context.Context, user *db.User) error
	IsBanned(ctx context.Context, chatID, userID int64) (bool, error)
	AddBan(ctx context.Context, chatID, userID int64) error
}

type restrictor interface {
	Restrict(ctx context.Context, chatID, userID int64, until *time.Time) error
	Lift(ctx context.Context, chatID, userID int64) bool
}

// pendingCheck is one outstanding verification. A joiner has at most
// one: re-joining replaces the previous check and cancels its timer.
type pendingCheck struct {
	chatID      int64
	messageID   int
	displayName string
	token       string
	lang        string
	timer       *time.Timer
}

// Gatekeeper restricts every new member until they press the
// verification button, and removes those who never do.
type Gatekeeper struct {
	bot          platformAPI
	store        gatekeeperStore
	restrictions restrictor
	langs        languageResolver
	cfg          config.Config

	checksMutex sync.Mutex
	checks      map[int64]*pendingCheck

	timeout time.Duration
	logger  *log.Entry
}

func NewGatekeeper(botAPI platformAPI, store gatekeeperStore, restrictions restrictor, langs languageResolver, cfg config.Config) *Gatekeeper {
	return &Gatekeeper{
		bot:          botAPI,
		store:        store,
		restrictions: restrictions,
		langs:        langs,
		cfg:          cfg,
		checks:       map[int64]*pendingCheck{},
		timeout:      verificationTimeout,
	}
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if u == nil || chat == nil || user == nil {
		return true, nil
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	switch determineUpdateType(u) {
	case updateTypeCallbackQuery:
		if !isVerificationCallbackData(u.CallbackQuery.Data) {
			return true, nil
		}
		return false, g.handleVerificationAnswer(ctx, u.CallbackQuery, user)
	case updateTypeNewChatMembers:
		if !chat.IsGroup() && !chat.IsSuperGroup() {
			return true, nil
		}
		return true, g.handleNewChatMembers(ctx, u.Message, chat)
	default:
		return true, nil
	}
}

func determineUpdateType(u *api.Update) updateType {
	if u.CallbackQuery != nil {
		return updateTypeCallbackQuery
	}
	if u.Message != nil && u.Message.NewChatMembers != nil {
		return updateTypeNewChatMembers
	}
	return updateTypeIgnore
}

func isVerificationCallbackData(data string) bool {
	parts := strings.Split(data, ";")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return false
	}
	return true
}

func (g *Gatekeeper) handleNewChatMembers(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	entry := g.getLogEntry().WithField("chat_id", chat.ID)

	for _, member := range msg.NewChatMembers {
		member := member
		if member.IsBot {
			continue
		}
		entry := entry.WithField("user_id", member.ID)
		lang := g.langs.GetLanguage(ctx, chat.ID, &member)

		if err := g.store.UpsertUser(ctx, &db.User{
			ID:        member.ID,
			Username:  member.UserName,
			FullName:  bot.GetFullName(&member),
			FirstName: member.FirstName,
			LastName:  member.LastName,
		}); err != nil {
			entry.WithField("error", err.Error()).Error("cant upsert joiner")
		}

		banned, err := g.store.IsBanned(ctx, chat.ID, member.ID)
		if err != nil {
			return err
		}
		if banned {
			// Blacklisted rejoiners are kicked back out without a challenge.
			// Telegram keeps delivering the join event even when the ban
			// already stuck, so only hit the API when the member isn't
			// kicked yet.
			chatMember, memberErr := g.bot.GetChatMember(api.GetChatMemberConfig{
				ChatConfigWithUser: api.ChatConfigWithUser{
					ChatConfig: api.ChatConfig{ChatID: chat.ID},
					UserID:     member.ID,
				},
			})
			if memberErr != nil || !chatMember.WasKicked() {
				if err := bot.BanUserFromChat(ctx, g.bot, member.ID, chat.ID, 0); err != nil {
					entry.WithField("error", err.Error()).Error("cant kick banned rejoiner")
				}
			}
			g.send(chat.ID, fmt.Sprintf(i18n.Get("🚫 %s is banned and cannot stay in this chat.", lang), memberMention(&member)))
			event.Audit("Rejoin while banned", 0, member.ID, "")
			continue
		}

		if err := g.restrictions.Restrict(ctx, chat.ID, member.ID, nil); err != nil {
			entry.WithField("error", err.Error()).Error("cant restrict joiner")
		}

		token := uuid.New()
		text := fmt.Sprintf(
			i18n.Get("Hi, %s! Welcome to the OG Community chat!\n\nPress the button below within 2 minutes to confirm that you are not a bot.", lang),
			memberMention(&member),
		)
		challenge := api.NewMessage(chat.ID, text)
		challenge.ParseMode = api.ModeHTML
		challenge.ReplyMarkup = api.NewInlineKeyboardMarkup(
			api.NewInlineKeyboardRow(
				api.NewInlineKeyboardButtonData(
					i18n.Get("I'm not a bot ✅", lang),
					fmt.Sprintf("%d;%s", member.ID, token),
				),
			),
		)
		sent, err := g.bot.Send(challenge)
		if err != nil {
			entry.WithField("error", err.Error()).Error("cant send challenge message")
		}

		if superseded := g.registerCheck(&member, chat.ID, sent.MessageID, token, lang); superseded != nil && superseded.messageID != 0 {
			// The previous challenge is dead now; leaving its prompt
			// around would offer a button that no longer works.
			if err := bot.DeleteChatMessage(ctx, g.bot, superseded.chatID, superseded.messageID); err != nil {
				entry.WithField("error", err.Error()).Error("cant delete superseded challenge message")
			}
		}
	}
	return nil
}

// registerCheck stores the joiner's pending verification and returns
// the check it replaced, if any, with its timer already stopped.
func (g *Gatekeeper) registerCheck(member *api.User, chatID int64, messageID int, token, lang string) *pendingCheck {
	g.checksMutex.Lock()
	defer g.checksMutex.Unlock()

	prev := g.checks[member.ID]
	if prev != nil {
		prev.timer.Stop()
	}

	userID := member.ID
	g.checks[userID] = &pendingCheck{
		chatID:      chatID,
		messageID:   messageID,
		displayName: bot.GetFullName(member),
		token:       token,
		lang:        lang,
		timer: time.AfterFunc(g.timeout, func() {
			g.expireCheck(userID, token)
		}),
	}
	return prev
}

// takePending removes and returns the matching check. It is the single
// arbitration point between the confirm path and the timeout path;
// whichever calls first wins, the loser gets nil.
func (g *Gatekeeper) takePending(userID int64, token string) *pendingCheck {
	g.checksMutex.Lock()
	defer g.checksMutex.Unlock()

	check, ok := g.checks[userID]
	if !ok || check.token != token {
		return nil
	}
	delete(g.checks, userID)
	return check
}

func (g *Gatekeeper) expireCheck(userID int64, token string) {
	check := g.takePending(userID, token)
	if check == nil {
		return
	}

	ctx := context.Background()
	entry := g.getLogEntry().WithFields(log.Fields{"chat_id": check.chatID, "user_id": userID})
	lang := check.lang

	if err := bot.BanUserFromChat(ctx, g.bot, userID, check.chatID, 0); err != nil {
		entry.WithField("error", err.Error()).Error("cant remove unverified joiner")
	}
	if err := g.store.AddBan(ctx, check.chatID, userID); err != nil {
		entry.WithField("error", err.Error()).Error("cant record ban for unverified joiner")
	}
	if check.messageID != 0 {
		if err := bot.DeleteChatMessage(ctx, g.bot, check.chatID, check.messageID); err != nil {
			entry.WithField("error", err.Error()).Error("cant delete challenge message")
		}
	}
	g.send(check.chatID, fmt.Sprintf(i18n.Get("%s failed verification and was removed.", lang), check.displayName))

	observability.RecordVerificationOutcome("timeout")
	event.Audit("Verification timeout", 0, userID, "")
}

func (g *Gatekeeper) handleVerificationAnswer(ctx context.Context, cq *api.CallbackQuery, user *api.User) error {
	entry := g.getLogEntry().WithField("user_id", user.ID)
	lang := g.langs.GetLanguage(ctx, 0, user)

	parts := strings.Split(cq.Data, ";")
	joinerID, _ := strconv.ParseInt(parts[0], 10, 64)
	token := parts[1]

	if user.ID != joinerID {
		g.answerCallback(cq.ID, i18n.Get("No check is outstanding.", lang), false)
		return nil
	}

	check := g.takePending(user.ID, token)
	if check == nil {
		g.answerCallback(cq.ID, i18n.Get("No check is outstanding.", lang), true)
		return nil
	}
	check.timer.Stop()

	g.restrictions.Lift(ctx, check.chatID, user.ID)

	if check.messageID != 0 {
		if err := bot.DeleteChatMessage(ctx, g.bot, check.chatID, check.messageID); err != nil {
			entry.WithField("error", err.Error()).Error("cant delete challenge message")
		}
	}
	g.answerCallback(cq.ID, i18n.Get("Verification passed!", lang), false)
	g.sendWelcome(check.chatID, bot.MentionHTML(user.ID, bot.GetFullName(user)), lang)

	observability.RecordVerificationOutcome("confirmed")
	event.Audit("Verification passed", user.ID, user.ID, "")
	return nil
}

func (g *Gatekeeper) sendWelcome(chatID int64, mention, lang string) {
	text := fmt.Sprintf(i18n.Get("Hi, %s! ❤️\n\n💸 Welcome to the OG Coin Community chat!", lang), mention)

	if path := g.cfg.WelcomeImagePath; path != "" {
		photo := api.NewPhoto(chatID, api.FilePath(path))
		photo.Caption = text
		photo.ParseMode = api.ModeHTML
		_, err := g.bot.Send(photo)
		if err == nil {
			return
		}
		g.getLogEntry().WithField("error", err.Error()).Warn("cant send welcome photo, falling back to text")
	}
	g.send(chatID, text)
}

func (g *Gatekeeper) answerCallback(callbackID, text string, alert bool) {
	callback := api.NewCallback(callbackID, text)
	if alert {
		callback = api.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := g.bot.Request(callback); err != nil {
		g.getLogEntry().WithField("error", err.Error()).Error("cant answer callback query")
	}
}

func (g *Gatekeeper) send(chatID int64, text string) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	if _, err := g.bot.Send(msg); err != nil {
		g.getLogEntry().WithField("error", err.Error()).Error("cant send message")
	}
}

func memberMention(user *api.User) string {
	return bot.MentionHTML(user.ID, bot.GetFullName(user))
}

func (g *Gatekeeper) getLogEntry() *log.Entry {
	if g.logger == nil {
		g.logger = log.WithField("handler", "gatekeeper")
	}
	return g.logger
}
