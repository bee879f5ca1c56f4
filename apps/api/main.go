package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/skillforge/skillforge/apps/api/echo"
	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/notification"
	"github.com/skillforge/skillforge/core/summary"
	"github.com/skillforge/skillforge/core/user"
	broadcastsvc "github.com/skillforge/skillforge/services/broadcast"
	emailsvc "github.com/skillforge/skillforge/services/email"
	logsvc "github.com/skillforge/skillforge/services/logger"
	textgensvc "github.com/skillforge/skillforge/services/textgen"
	"github.com/skillforge/skillforge/storage/database"
	sqlxrepos "github.com/skillforge/skillforge/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatal(err)
	}
	if err = conf.Validate(); err != nil {
		std.Fatal(err)
	}
	core.InitMail(conf)
	core.InitValidators(core.Validate, core.Translator)

	var logger core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer db.Close()
	errAndDie(logger, db.Ping())

	usrRepo := sqlxrepos.NewUserRepository(db)
	contestRepo := sqlxrepos.NewContestRepository(db)
	emailRepo := sqlxrepos.NewEmailLogRepository(db)
	keyNoteRepo := sqlxrepos.NewKeyNoteRepository(db)

	// set up email delivery
	var primary core.Transport
	if conf.Debug {
		primary = emailsvc.NewConsoleTransport(logger)
	} else {
		primary = emailsvc.NewSMTPTransport(conf, logger)
	}
	var fallback core.Transport
	if conf.Sendgrid.APIKey != "" {
		fallback = emailsvc.NewSendgridTransport(conf, logger)
	}
	dispatcher := notification.NewDispatcher(primary, fallback, logger)

	var mailer user.Mailer = notification.NewInlineSender(dispatcher, logger)
	if conf.Email.UseSendPool {
		pool := notification.NewSendPool(dispatcher, conf.Email.MaxSendWorkers, conf.Email.SendQueueDepth, logger)
		defer pool.Stop()
		mailer = pool
	}

	throttle := notification.NewThrottle(emailRepo, conf.Email.RecipientCooldown, conf.Email.MinGapPerRecipient)
	orchestrator := notification.NewOrchestrator(
		emailRepo, contestRepo, usrRepo,
		notification.RosterFromRepo(contestRepo),
		throttle, dispatcher, conf, logger,
	)

	// set up services
	usrSvc := user.NewService(usrRepo, mailer, logger)
	summarySvc := summary.NewService(keyNoteRepo, contestRepo, logger,
		textgensvc.NewGeminiGenerator(conf),
		textgensvc.NewOpenAIGenerator(conf),
	)
	hub := broadcastsvc.NewHub(logger)
	contestSvc := contest.NewService(contestRepo, orchestrator, hub, summarySvc, logger)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:      conf.Server.Address,
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		ContestSvc:   contestSvc,
		SummarySvc:   summarySvc,
		Orchestrator: orchestrator,
		Hub:          hub,
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			logger.Error("stopping server", err)
		}
	}()

	app.Start()
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
