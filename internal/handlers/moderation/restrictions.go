package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/ogcommunity/ogmodbot/internal/bot"
	"github.com/ogcommunity/ogmodbot/internal/db"
	"github.com/ogcommunity/ogmodbot/internal/event"
	"github.com/ogcommunity/ogmodbot/internal/i18n"
	"github.com/ogcommunity/ogmodbot/internal/policy/permissions"
)

const (
	// reconcileInterval is how often expired mutes are swept out of the
	// store. The store, not in-process timers, is the durable schedule.
	reconcileInterval = 10 * time.Second
)

// chatAPI is the slice of the platform client the moderation layer
// talks to. *api.BotAPI satisfies it.
type chatAPI interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	Send(c api.Chattable) (api.Message, error)
	GetChat(config api.ChatInfoConfig) (api.ChatFullInfo, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
}

type restrictionStore interface {
	RemoveMute(ctx context.Context, userID int64) error
	ListExpiredMutes(ctx context.Context, now time.Time) ([]*db.Mute, error)
	GetUser(ctx context.Context, userID int64) (*db.User, error)
}

// RestrictionService is the single chokepoint for applying and lifting
// posting restrictions. The store is the source of truth; the platform
// is a best-effort enforcement channel.
type RestrictionService interface {
	Restrict(ctx context.Context, chatID, userID int64, until *time.Time) error
	Lift(ctx context.Context, chatID, userID int64) bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type defaultRestrictionService struct {
	bot   chatAPI
	store restrictionStore
	lang  string

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewRestrictionService(botAPI chatAPI, store restrictionStore, lang string) RestrictionService {
	return &defaultRestrictionService{
		bot:   botAPI,
		store: store,
		lang:  lang,
	}
}

func mutedPermissions() *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       false,
		CanSendAudios:         false,
		CanSendDocuments:      false,
		CanSendPhotos:         false,
		CanSendVideos:         false,
		CanSendVideoNotes:     false,
		CanSendVoiceNotes:     false,
		CanSendPolls:          false,
		CanSendOtherMessages:  false,
		CanAddWebPagePreviews: false,
		CanChangeInfo:         false,
		CanInviteUsers:        false,
		CanPinMessages:        false,
		CanManageTopics:       false,
	}
}

func defaultMemberPermissions() *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanChangeInfo:         false,
		CanInviteUsers:        true,
		CanPinMessages:        false,
		CanManageTopics:       false,
	}
}

func (s *defaultRestrictionService) Restrict(ctx context.Context, chatID, userID int64, until *time.Time) error {
	entry := log.WithFields(log.Fields{"object": "RestrictionService", "chat_id": chatID, "user_id": userID})

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Never lock out staff promoted outside the bot's knowledge.
	member, err := s.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant fetch member status before restricting")
	} else if permissions.IsAdministrator(&member) {
		entry.Warn("attempt to restrict an administrator, skipping")
		return nil
	}

	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions:                   mutedPermissions(),
		UseIndependentChatPermissions: true,
	}
	if until != nil {
		config.UntilDate = until.Unix()
	}

	if _, err := s.bot.Request(config); err != nil {
		entry.WithField("error", err.Error()).Error("cant restrict user")
		return fmt.Errorf("restrict user %d: %w", userID, err)
	}
	return nil
}

// Lift removes the mute record unconditionally so bookkeeping never
// desyncs, then best-effort restores default member permissions. It
// reports true whenever the store-side removal succeeded.
func (s *defaultRestrictionService) Lift(ctx context.Context, chatID, userID int64) bool {
	entry := log.WithFields(log.Fields{"object": "RestrictionService", "chat_id": chatID, "user_id": userID})

	if err := s.store.RemoveMute(ctx, userID); err != nil {
		entry.WithField("error", err.Error()).Error("cant remove mute record")
		return false
	}

	chat, err := s.bot.GetChat(api.ChatInfoConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant get chat info, restrictions lifted from store only")
		return true
	}

	if !chat.IsSuperGroup() {
		entry.Debug("chat does not support member permission overrides, skipping platform call")
		return true
	}

	perms := chat.Permissions
	if perms == nil {
		perms = defaultMemberPermissions()
	}

	if _, err := s.bot.Request(api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions:                   perms,
		UseIndependentChatPermissions: true,
	}); err != nil {
		entry.WithField("error", err.Error()).Error("cant lift restrictions via platform, store record removed anyway")
	}
	return true
}

func (s *defaultRestrictionService) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	s.workersWg.Add(1)
	go func() {
		defer s.workersWg.Done()
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := s.reconcile(runCtx); err != nil && runCtx.Err() == nil {
					log.WithField("error", err.Error()).Error("failed to reconcile expired mutes")
				}
			}
		}
	}()

	s.started = true
	return nil
}

func (s *defaultRestrictionService) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// reconcile lifts mutes whose expiry passed without a live timer, the
// recovery path after a restart.
func (s *defaultRestrictionService) reconcile(ctx context.Context) error {
	expired, err := s.store.ListExpiredMutes(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list expired mutes: %w", err)
	}

	for _, mute := range expired {
		if !s.Lift(ctx, mute.ChatID, mute.UserID) {
			continue
		}
		mention := s.mention(ctx, mute.UserID)
		text := fmt.Sprintf(i18n.Get("%s, restrictions lifted, you can talk again", s.lang), mention)
		msg := api.NewMessage(mute.ChatID, text)
		msg.ParseMode = api.ModeHTML
		if _, err := s.bot.Send(msg); err != nil {
			log.WithFields(log.Fields{"chat_id": mute.ChatID, "error": err.Error()}).Debug("cant send auto-unmute notice")
		}
		event.Audit("Auto-unmute", 0, mute.UserID, "")
	}
	return nil
}

func (s *defaultRestrictionService) mention(ctx context.Context, userID int64) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil || user == nil {
		return fmt.Sprintf("ID %d", userID)
	}
	return bot.MentionHTML(userID, user.FullName)
}
