package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"

	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/db"
	"github.com/ogcommunity/ogmodbot/internal/i18n"
)

type service struct {
	bot *api.BotAPI
	db  db.Client
	cfg config.Config
}

func NewService(bot *api.BotAPI, dbClient db.Client, cfg config.Config) *service {
	return &service{
		bot: bot,
		db:  dbClient,
		cfg: cfg,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

func (s *service) UpsertUser(ctx context.Context, user *api.User) error {
	if user == nil {
		return nil
	}
	return s.db.UpsertUser(ctx, &db.User{
		ID:        user.ID,
		Username:  user.UserName,
		FullName:  GetFullName(user),
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

func (s *service) GetLanguage(_ context.Context, _ int64, user *api.User) string {
	if user != nil && tool.In(user.LanguageCode, i18n.GetLanguagesList()...) {
		return user.LanguageCode
	}
	return s.cfg.DefaultLanguage
}
