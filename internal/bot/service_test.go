package bot

import (
	"context"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/db"
)

func TestGetLanguagePrefersKnownUserLanguage(t *testing.T) {
	t.Parallel()

	s := NewService(nil, nil, config.Config{DefaultLanguage: "en"})
	ctx := context.Background()

	if got := s.GetLanguage(ctx, -1001, &api.User{ID: 1, LanguageCode: "ru"}); got != "ru" {
		t.Errorf("expected the user's language, got %q", got)
	}
	if got := s.GetLanguage(ctx, -1001, &api.User{ID: 1, LanguageCode: "de"}); got != "en" {
		t.Errorf("unknown language must fall back to the default, got %q", got)
	}
	if got := s.GetLanguage(ctx, -1001, nil); got != "en" {
		t.Errorf("nil user must fall back to the default, got %q", got)
	}
}

type fakeService struct {
	upserts int
}

func (f *fakeService) GetBot() *api.BotAPI { return nil }
func (f *fakeService) GetDB() db.Client    { return nil }

func (f *fakeService) UpsertUser(ctx context.Context, user *api.User) error {
	f.upserts++
	return nil
}

func (f *fakeService) GetLanguage(ctx context.Context, chatID int64, user *api.User) string {
	return "en"
}

type countingHandler struct {
	calls int
}

func (h *countingHandler) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	h.calls++
	return true, nil
}

func TestProcessSkipsDuplicateDeliveries(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	handler := &countingHandler{}
	up := &UpdateProcessor{
		s:              svc,
		updateHandlers: []Handler{handler},
		seen:           make(map[string]struct{}),
	}

	u := &api.Update{
		UpdateID: 1,
		Message: &api.Message{
			MessageID: 100,
			Date:      int(time.Now().Unix()),
			Chat:      api.Chat{ID: -1001, Type: "supergroup"},
			From:      &api.User{ID: 42, FirstName: "Talker"},
			Text:      "hello",
		},
	}

	ctx := context.Background()
	if err := up.Process(ctx, u); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := up.Process(ctx, u); err != nil {
		t.Fatalf("process duplicate: %v", err)
	}
	if handler.calls != 1 {
		t.Errorf("expected a single handler invocation, got %d", handler.calls)
	}
	if svc.upserts != 1 {
		t.Errorf("expected the sender upserted once, got %d", svc.upserts)
	}
}

func TestProcessSkipsOutdatedUpdates(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{}
	up := &UpdateProcessor{
		s:              &fakeService{},
		updateHandlers: []Handler{handler},
		seen:           make(map[string]struct{}),
	}

	u := &api.Update{
		UpdateID: 2,
		Message: &api.Message{
			MessageID: 101,
			Date:      int(time.Now().Add(-UpdateTimeout - time.Minute).Unix()),
			Chat:      api.Chat{ID: -1001, Type: "supergroup"},
			From:      &api.User{ID: 42},
			Text:      "stale",
		},
	}

	if err := up.Process(context.Background(), u); err != nil {
		t.Fatalf("process: %v", err)
	}
	if handler.calls != 0 {
		t.Errorf("outdated update must not reach handlers, got %d calls", handler.calls)
	}
}
