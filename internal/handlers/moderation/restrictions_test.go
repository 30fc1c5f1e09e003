package moderation

import (
	"context"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/ogcommunity/ogmodbot/internal/db"
	"github.com/ogcommunity/ogmodbot/internal/db/sqlite"
)

func (f *fakeChatAPI) restrictCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		if _, ok := c.(api.RestrictChatMemberConfig); ok {
			n++
		}
	}
	return n
}

func newRestrictionFixture(t *testing.T) (*fakeChatAPI, db.Client, *defaultRestrictionService) {
	t.Helper()
	store, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fakeAPI := &fakeChatAPI{member: api.ChatMember{Status: "member"}}
	svc := NewRestrictionService(fakeAPI, store, "en").(*defaultRestrictionService)
	return fakeAPI, store, svc
}

func TestLiftRemovesRecordDespitePlatformFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fakeAPI, store, svc := newRestrictionFixture(t)
	fakeAPI.requestErr = func(c api.Chattable) error {
		if _, ok := c.(api.RestrictChatMemberConfig); ok {
			return api.Error{Message: "not enough rights"}
		}
		return nil
	}

	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}

	if !svc.Lift(ctx, -1001, 42) {
		t.Error("lift must succeed when the store-side removal succeeded")
	}
	mute, err := store.GetMute(ctx, 42)
	if err != nil {
		t.Fatalf("get mute: %v", err)
	}
	if mute != nil {
		t.Error("expected the mute record removed")
	}
}

func TestLiftSkipsPlatformForBasicGroup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fakeAPI, store, svc := newRestrictionFixture(t)
	fakeAPI.chatType = "group"

	if err := store.SetMute(ctx, db.NewMute(42, -2002, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed mute: %v", err)
	}

	if !svc.Lift(ctx, -2002, 42) {
		t.Error("lift must succeed for a basic group")
	}
	if n := fakeAPI.restrictCalls(); n != 0 {
		t.Errorf("basic group must not get a permissions call, got %d", n)
	}
	mute, err := store.GetMute(ctx, 42)
	if err != nil {
		t.Fatalf("get mute: %v", err)
	}
	if mute != nil {
		t.Error("expected the mute record removed")
	}
}

func TestRestrictSkipsAdministrators(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fakeAPI, _, svc := newRestrictionFixture(t)
	fakeAPI.member = api.ChatMember{Status: "administrator"}

	if err := svc.Restrict(ctx, -1001, 42, nil); err != nil {
		t.Fatalf("restrict: %v", err)
	}
	if n := fakeAPI.restrictCalls(); n != 0 {
		t.Errorf("administrator must not be restricted, got %d calls", n)
	}
}

func TestReconcileLiftsExpiredMutes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fakeAPI, store, svc := newRestrictionFixture(t)

	if err := store.UpsertUser(ctx, &db.User{ID: 42, Username: "sleeper", FullName: "Sleepy Head"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := store.SetMute(ctx, db.NewMute(42, -1001, time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("seed expired mute: %v", err)
	}
	if err := store.SetMute(ctx, db.NewMute(43, -1001, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed active mute: %v", err)
	}

	if err := svc.reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if mute, _ := store.GetMute(ctx, 42); mute != nil {
		t.Error("expected the expired mute lifted")
	}
	if mute, _ := store.GetMute(ctx, 43); mute == nil {
		t.Error("active mute must survive reconciliation")
	}
	if !strings.Contains(fakeAPI.lastSentText(), "restrictions lifted") {
		t.Errorf("expected an auto-unmute notice, got %q", fakeAPI.lastSentText())
	}
}
