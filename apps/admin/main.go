package main

import (
	"log"
	"os"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/notification"
	"github.com/skillforge/skillforge/core/summary"
	"github.com/skillforge/skillforge/core/user"
	emailsvc "github.com/skillforge/skillforge/services/email"
	logsvc "github.com/skillforge/skillforge/services/logger"
	textgensvc "github.com/skillforge/skillforge/services/textgen"
	"github.com/skillforge/skillforge/storage/database"
	sqlxrepos "github.com/skillforge/skillforge/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger = logsvc.NewStdLogger(std)

	conf, err := core.NewConfig()
	errAndDie(err)
	errAndDie(conf.Validate())
	core.InitMail(conf)
	core.InitValidators(core.Validate, core.Translator)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	usrRepo := sqlxrepos.NewUserRepository(db)
	contestRepo := sqlxrepos.NewContestRepository(db)
	emailRepo := sqlxrepos.NewEmailLogRepository(db)
	keyNoteRepo := sqlxrepos.NewKeyNoteRepository(db)

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
	throttle := notification.NewThrottle(emailRepo, conf.Email.RecipientCooldown, conf.Email.MinGapPerRecipient)
	orchestrator := notification.NewOrchestrator(
		emailRepo, contestRepo, usrRepo,
		notification.RosterFromRepo(contestRepo),
		throttle, dispatcher, conf, logger,
	)

	summarySvc := summary.NewService(keyNoteRepo, contestRepo, logger,
		textgensvc.NewGeminiGenerator(conf),
		textgensvc.NewOpenAIGenerator(conf),
	)
	contestSvc := contest.NewService(contestRepo, orchestrator, nil, summarySvc, logger)
	usrSvc := user.NewService(usrRepo, nil, logger)

	// start CLI
	cli := commandLine{
		db:           db.DB,
		usrSvc:       usrSvc,
		contestSvc:   contestSvc,
		summarySvc:   summarySvc,
		orchestrator: orchestrator,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
