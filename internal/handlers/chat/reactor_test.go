package chat

import (
	"context"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/db"
)

func (f *fakePlatform) deleteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		if _, ok := c.(api.DeleteMessageConfig); ok {
			n++
		}
	}
	return n
}

func (f *fakePlatform) forwardCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if _, ok := c.(api.ForwardConfig); ok {
			n++
		}
	}
	return n
}

type fakeModerator struct {
	moderators map[int64]bool
}

func (f *fakeModerator) IsModerator(ctx context.Context, chatID, userID int64) bool {
	return f.moderators[userID]
}

func groupMessage(userID int64, text string) (*api.Update, *api.Chat, *api.User) {
	chat := api.Chat{ID: -1001, Type: "supergroup"}
	author := api.User{ID: userID, FirstName: "Talker"}
	u := &api.Update{
		Message: &api.Message{
			MessageID: 300,
			Chat:      chat,
			From:      &author,
			Text:      text,
		},
	}
	return u, &chat, &author
}

func TestReactorDeletesMutedUserMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	platform := &fakePlatform{}
	store := newTestStore(t)
	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}
	r := NewReactor(platform, store, &fakeModerator{}, fakeLangs{}, config.Config{DefaultLanguage: "en"})

	u, chat, author := groupMessage(42, "hello there")
	proceed, err := r.Handle(ctx, u, chat, author)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Error("muted user's message must be consumed")
	}
	if n := platform.deleteCalls(); n != 1 {
		t.Errorf("expected one delete call, got %d", n)
	}
}

func TestReactorCleansExpiredMute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	platform := &fakePlatform{}
	store := newTestStore(t)
	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}
	r := NewReactor(platform, store, &fakeModerator{}, fakeLangs{}, config.Config{DefaultLanguage: "en"})

	u, chat, author := groupMessage(42, "am i free")
	proceed, err := r.Handle(ctx, u, chat, author)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed {
		t.Error("expired mute must not block the message")
	}
	if n := platform.deleteCalls(); n != 0 {
		t.Errorf("expired mute must not delete, got %d calls", n)
	}
	mute, err := store.GetMute(ctx, 42)
	if err != nil {
		t.Fatalf("get mute: %v", err)
	}
	if mute != nil {
		t.Error("expected the stale mute record removed")
	}
}

func TestReactorIgnoresUnmutedAndCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	platform := &fakePlatform{}
	store := newTestStore(t)
	r := NewReactor(platform, store, &fakeModerator{}, fakeLangs{}, config.Config{DefaultLanguage: "en"})

	u, chat, author := groupMessage(42, "regular chatter")
	if proceed, err := r.Handle(ctx, u, chat, author); err != nil || !proceed {
		t.Fatalf("unmuted user must pass through: proceed=%v err=%v", proceed, err)
	}

	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}
	u, chat, author = groupMessage(42, "/warns")
	if proceed, err := r.Handle(ctx, u, chat, author); err != nil || !proceed {
		t.Fatalf("command must pass through to the command engine: proceed=%v err=%v", proceed, err)
	}
	if n := platform.deleteCalls(); n != 0 {
		t.Errorf("expected no deletions, got %d", n)
	}
}

func TestReactorSendsFarewell(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	platform := &fakePlatform{}
	store := newTestStore(t)
	r := NewReactor(platform, store, &fakeModerator{}, fakeLangs{}, config.Config{DefaultLanguage: "en"})

	chat := api.Chat{ID: -1001, Type: "supergroup"}
	left := api.User{ID: 42, FirstName: "Leaver"}
	u := &api.Update{
		Message: &api.Message{
			MessageID:      301,
			Chat:           chat,
			From:           &left,
			LeftChatMember: &left,
		},
	}
	if _, err := r.Handle(ctx, u, &chat, &left); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if platform.lastSentText() == "" {
		t.Error("expected a farewell message")
	}
}

func TestReactorSparesModeratorWithStaleMute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	platform := &fakePlatform{}
	store := newTestStore(t)
	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}
	access := &fakeModerator{moderators: map[int64]bool{42: true}}
	r := NewReactor(platform, store, access, fakeLangs{}, config.Config{DefaultLanguage: "en"})

	u, chat, author := groupMessage(42, "moderator speaking")
	proceed, err := r.Handle(ctx, u, chat, author)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed {
		t.Error("a moderator's message must pass through even with a mute record")
	}
	if n := platform.deleteCalls(); n != 0 {
		t.Errorf("a moderator's message must not be deleted, got %d calls", n)
	}
}

func TestReactorSkipsServiceMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	platform := &fakePlatform{}
	store := newTestStore(t)
	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}
	r := NewReactor(platform, store, &fakeModerator{}, fakeLangs{}, config.Config{
		DefaultLanguage: "en",
		AuditChannelID:  -100200,
	})

	chat := api.Chat{ID: -1001, Type: "supergroup"}
	joiner := api.User{ID: 42, FirstName: "Talker"}
	u := &api.Update{
		Message: &api.Message{
			MessageID:      302,
			Chat:           chat,
			From:           &joiner,
			NewChatMembers: []api.User{joiner},
		},
	}
	proceed, err := r.Handle(ctx, u, &chat, &joiner)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed {
		t.Error("membership events must pass through to the gatekeeper")
	}
	if n := platform.deleteCalls(); n != 0 {
		t.Errorf("membership events must never be deleted, got %d calls", n)
	}
	if n := platform.forwardCalls(); n != 0 {
		t.Errorf("membership events must not be mirrored, got %d forwards", n)
	}

	pinned := &api.Update{
		Message: &api.Message{
			MessageID:     303,
			Chat:          chat,
			From:          &joiner,
			PinnedMessage: &api.Message{MessageID: 300},
		},
	}
	proceed, err = r.Handle(ctx, pinned, &chat, &joiner)
	if err != nil {
		t.Fatalf("handle pin: %v", err)
	}
	if !proceed || platform.deleteCalls() != 0 || platform.forwardCalls() != 0 {
		t.Error("pin events must pass through untouched")
	}
}
