package main

import (
	"context"
	"os"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ogcommunity/ogmodbot/internal/bot"
	"github.com/ogcommunity/ogmodbot/internal/config"
	"github.com/ogcommunity/ogmodbot/internal/db/sqlite"
	"github.com/ogcommunity/ogmodbot/internal/event"
	"github.com/ogcommunity/ogmodbot/internal/handlers/chat"
	"github.com/ogcommunity/ogmodbot/internal/handlers/moderation"
	"github.com/ogcommunity/ogmodbot/internal/infra"
	"github.com/ogcommunity/ogmodbot/internal/lifecycle"
	"github.com/ogcommunity/ogmodbot/internal/observability"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.OgFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}
	defer event.RunWorker()()

	dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "bot.db")
	if err != nil {
		log.WithError(err).Fatalln("cant initialize storage")
	}
	defer func() { _ = dbClient.Close() }()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	service := bot.NewService(botAPI, dbClient, cfg)

	restrictions := moderation.NewRestrictionService(service.GetBot(), service.GetDB(), cfg.DefaultLanguage)
	access := moderation.NewAccessChecker(service.GetBot(), cfg)
	bot.RegisterUpdateHandler("moderation", moderation.NewCommands(service.GetBot(), service.GetDB(), access, restrictions, service, cfg))
	bot.RegisterUpdateHandler("gatekeeper", chat.NewGatekeeper(service.GetBot(), service.GetDB(), restrictions, service, cfg))
	bot.RegisterUpdateHandler("chat", chat.NewReactor(service.GetBot(), service.GetDB(), access, service, cfg))

	if cfg.AuditChannelID != 0 {
		event.Subscribe(event.TypeAudit, func(e event.Queueable) {
			auditEvent, ok := e.(*event.AuditEvent)
			if !ok {
				e.Drop()
				return
			}
			if _, err := botAPI.Send(api.NewMessage(cfg.AuditChannelID, auditEvent.String())); err != nil {
				log.WithError(err).Error("cant forward audit event")
				return
			}
			e.Process()
		})
	}

	runtime := lifecycle.NewRuntime(restrictions)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("cant stop components cleanly")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateProcessor := bot.NewUpdateProcessor(service)

	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case err := <-errorChan:
				return err
			case update := <-updateChan:
				infra.GoRecoverable(5, "update_processor", func() {
					if err := updateProcessor.Process(runCtx, &update); err != nil {
						log.WithError(err).Errorln("cant process update")
					}
				})
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
	})
	g.Go(func() error {
		select {
		case <-infra.MonitorExecutable(runCtx):
			log.Errorln("executable file was modified, shutting down")
			cancel()
			return nil
		case <-runCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Errorln("no more updates")
	}
}
