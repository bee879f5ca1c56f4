package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"io/ioutil"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/notification"
	"github.com/skillforge/skillforge/core/summary"
	"github.com/skillforge/skillforge/core/user"
	emailsvc "github.com/skillforge/skillforge/services/email"
	logsvc "github.com/skillforge/skillforge/services/logger"
	dummydb "github.com/skillforge/skillforge/storage/database/dummy"
)

var (
	testDB      *dummydb.DB
	usrRepo     user.Repository
	contestRepo contest.Repository
	logRepo     notification.Repository
	console     *emailsvc.ConsoleTransport
)

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	testDB = db
	usrRepo = dummydb.NewUserRepository(db)
	contestRepo = dummydb.NewContestRepository(db)
	logRepo = dummydb.NewEmailLogRepository(db)
	keyNoteRepo := dummydb.NewKeyNoteRepository(db)

	logger = logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	conf := &core.Config{
		Email: core.EmailConfig{
			MaxAttempts:        5,
			RecipientCooldown:  30 * time.Minute,
			ReceivingRateBlock: 24 * time.Hour,
		},
	}

	console = emailsvc.NewConsoleTransport(nil)
	dispatcher := notification.NewDispatcher(console, nil, logger)
	throttle := notification.NewThrottle(logRepo, conf.Email.RecipientCooldown, 0)
	orchestrator := notification.NewOrchestrator(
		logRepo, contestRepo, usrRepo,
		notification.RosterFromRepo(contestRepo),
		throttle, dispatcher, conf, logger,
	)
	summarySvc := summary.NewService(keyNoteRepo, contestRepo, logger)

	return &commandLine{
		usrSvc:       user.NewService(usrRepo, nil, logger),
		contestSvc:   contest.NewService(contestRepo, orchestrator, nil, summarySvc, logger),
		summarySvc:   summarySvc,
		orchestrator: orchestrator,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cretSauce!"), nil }

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "missing email", args: []string{"adduser", "-username", "ada"}, wantErr: errHelp},
		{name: "missing username", args: []string{"adduser", "-email", "ada@test.cd"}, wantErr: errHelp},
		{name: "create student", args: []string{"adduser", "-username", "ada", "-email", "ada@test.cd"}},
		{name: "promote to admin", args: []string{"adduser", "-username", "ada", "-email", "ada@test.cd", "-admin"}},
		{name: "create admin", args: []string{"adduser", "-username", "root", "-email", "root@test.cd", "-admin"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
		})
	}

	ada, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), "ada")
	if err != nil {
		t.Fatalf("GetUserByUsernameOrEmail() failed: %v", err)
	}
	if !ada.IsActive || !ada.IsVerified {
		t.Error("created user should be active and verified")
	}
	if !ada.IsAdmin() {
		t.Errorf("user role = %s, want %s after promotion", ada.Role, user.RoleAdmin)
	}
	if err = ada.CheckPassword("s3cretSauce!"); err != nil {
		t.Error("password was not set")
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr, err := cli.usrSvc.Register(context.Background(), user.NewUser{
		Name: "Awe", Username: "awe", Email: "awe@test.cd", Password: "0ldPassword!", Role: user.RoleStudent,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "wh4tever!"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "n3wPassword!"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "n3werPassword!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed: %v", err)
				}
				if cerr := refreshed.CheckPassword(tt.extra.(extra).pwd); cerr != nil {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_scanEndedAndProcessQueue(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	ada, err := cli.usrSvc.Register(ctx, user.NewUser{
		Name: "Ada", Username: "ada", Email: "ada@test.cd", Password: "s3cretSauce!", Role: user.RoleStudent,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	now := time.Now().UTC()
	ended, err := contestRepo.CreateContest(ctx, contest.Contest{
		Name:             "Algebra I",
		Status:           contest.StatusOngoing,
		MaxPoints:        100,
		StartTime:        null.TimeFrom(now.Add(-2 * time.Hour)),
		EndTime:          null.TimeFrom(now.Add(-time.Hour)),
		AutoEmailResults: true,
	})
	if err != nil {
		t.Fatalf("CreateContest() failed: %v", err)
	}
	if _, err = contestRepo.CreateParticipant(ctx, contest.Participant{
		ContestID: ended.ID, UserID: ada.ID, Score: 80,
		CompletedAt: null.TimeFrom(now), CreatedAt: now.Add(-90 * time.Minute),
	}); err != nil {
		t.Fatalf("CreateParticipant() failed: %v", err)
	}

	if err = cli.run([]string{"admin", "scanended", "-dry-run"}); err != nil {
		t.Fatalf("scanended -dry-run failed: %v", err)
	}
	if c, _ := contestRepo.GetContest(ctx, ended.ID); c.Status == contest.StatusFinished {
		t.Error("dry run should not finish contests")
	}

	if err = cli.run([]string{"admin", "scanended", "-process"}); err != nil {
		t.Fatalf("scanended -process failed: %v", err)
	}
	c, err := contestRepo.GetContest(ctx, ended.ID)
	if err != nil {
		t.Fatalf("GetContest() failed: %v", err)
	}
	if c.Status != contest.StatusFinished {
		t.Errorf("contest status = %s, want %s", c.Status, contest.StatusFinished)
	}
	if got := len(console.Sent()); got != 1 {
		t.Errorf("sent %d email(s), want 1", got)
	}

	// nothing left for a bare queue run
	if err = cli.run([]string{"admin", "processqueue", "-limit", "10"}); err != nil {
		t.Fatalf("processqueue failed: %v", err)
	}
	if got := len(console.Sent()); got != 1 {
		t.Errorf("sent %d email(s) after drain, want 1", got)
	}
}

func Test_commandLine_sendEmails(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	ada, err := cli.usrSvc.Register(ctx, user.NewUser{
		Name: "Ada", Username: "ada", Email: "ada@test.cd", Password: "s3cretSauce!", Role: user.RoleStudent,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	c, err := contestRepo.CreateContest(ctx, contest.Contest{
		Name: "Algebra I", Status: contest.StatusFinished, MaxPoints: 100, AutoEmailResults: true,
	})
	if err != nil {
		t.Fatalf("CreateContest() failed: %v", err)
	}
	if err = contestRepo.EnrollUser(ctx, c.ID, ada.ID); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}

	tests := []cliTest{
		{name: "missing contest flag", args: []string{"sendemails"}, wantErr: errHelp},
		{name: "unknown contest", args: []string{"sendemails", "-contest", "999"}, wantErr: contest.ErrNotFound},
		{name: "queue and send", args: []string{"sendemails", "-contest", strconv.Itoa(c.ID)}},
		{name: "resend failed with none failed", args: []string{"sendemails", "-contest", strconv.Itoa(c.ID), "-resend-failed"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if got := len(console.Sent()); got != 1 {
		t.Errorf("sent %d email(s), want 1", got)
	}
}

func Test_commandLine_regenerateSummaries(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	c, err := contestRepo.CreateContest(ctx, contest.Contest{
		Name: "Algebra I", Status: contest.StatusFinished, MaxPoints: 100,
	})
	if err != nil {
		t.Fatalf("CreateContest() failed: %v", err)
	}
	q := testDB.SeedQuestion(contest.Question{ContestID: c.ID, Text: "What is 2+2?"})
	testDB.SeedOption(contest.Option{QuestionID: q.ID, Text: "4", IsCorrect: true})

	tests := []cliTest{
		{name: "no target", args: []string{"regeneratesummaries"}, wantErr: errHelp},
		{name: "single contest", args: []string{"regeneratesummaries", "-contest", strconv.Itoa(c.ID)}},
		{name: "all finished", args: []string{"regeneratesummaries", "-all"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	notes, err := cli.summarySvc.Query(ctx, c.ID)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(notes) == 0 {
		t.Error("expected key notes after regeneration")
	}
}
