package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/notification"
	"github.com/skillforge/skillforge/core/summary"
	"github.com/skillforge/skillforge/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db           *sql.DB
	usrSvc       *user.Service
	contestSvc   *contest.Service
	summarySvc   *summary.Service
	orchestrator *notification.Orchestrator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args]                            - run DB migrations (goose commands)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin]  - create or update a user, password prompted")
	fmt.Println("  resetpassword -username USERNAME|EMAIL            - reset user's password")
	fmt.Println("  processqueue [-limit N]                           - work due queued emails once")
	fmt.Println("  scanended [-limit N] [-process] [-process-limit N] [-dry-run]")
	fmt.Println("                                                    - finish ended contests and queue reports")
	fmt.Println("  sendemails -contest ID [-resend-failed]           - requeue and send a contest's emails")
	fmt.Println("  regeneratesummaries -contest ID | -all            - regenerate AI key notes")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserIsAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	processQueueCmd := flag.NewFlagSet("processqueue", flag.ExitOnError)
	processQueueLimit := processQueueCmd.Int("limit", 0, "Max emails to process, 0 for no limit.")

	scanEndedCmd := flag.NewFlagSet("scanended", flag.ExitOnError)
	scanEndedLimit := scanEndedCmd.Int("limit", 0, "Max contests to finish, 0 for no limit.")
	scanEndedProcess := scanEndedCmd.Bool("process", false, "Process the email queue afterwards.")
	scanEndedProcessLimit := scanEndedCmd.Int("process-limit", 0, "Max emails to process afterwards, 0 for no limit.")
	scanEndedDryRun := scanEndedCmd.Bool("dry-run", false, "Only report what would be finished.")

	sendEmailsCmd := flag.NewFlagSet("sendemails", flag.ExitOnError)
	sendEmailsContest := sendEmailsCmd.Int("contest", 0, "Contest ID.")
	sendEmailsResendFailed := sendEmailsCmd.Bool("resend-failed", false, "Requeue permanently failed emails first.")

	regenCmd := flag.NewFlagSet("regeneratesummaries", flag.ExitOnError)
	regenContest := regenCmd.Int("contest", 0, "Contest ID.")
	regenAll := regenCmd.Bool("all", false, "Regenerate for all finished contests.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, string(pwd), *addUserIsAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, string(pwd))
	case "processqueue":
		if err := processQueueCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.processQueue(*processQueueLimit)
	case "scanended":
		if err := scanEndedCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.scanEnded(*scanEndedLimit, *scanEndedProcess, *scanEndedProcessLimit, *scanEndedDryRun)
	case "sendemails":
		if err := sendEmailsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *sendEmailsContest == 0 {
			sendEmailsCmd.Usage()
			return errHelp
		}
		return cli.sendEmails(*sendEmailsContest, *sendEmailsResendFailed)
	case "regeneratesummaries":
		if err := regenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *regenContest == 0 && !*regenAll {
			regenCmd.Usage()
			return errHelp
		}
		return cli.regenerateSummaries(*regenContest, *regenAll)
	default:
		cli.printUsage()
		return errHelp
	}
}
