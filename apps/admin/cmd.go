package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/lamiedu/taarifa/core/notification"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sql.DB
	notifSvc notification.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  addnotification -role ROLE -id ID -title TITLE -message MESSAGE [-email EMAIL] - publish a notification")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCmd := flag.NewFlagSet("addnotification", flag.ExitOnError)
	addRole := addCmd.String("role", "", "The recipient's role: admin, mentor, student or company.")
	addID := addCmd.Int("id", 0, "The recipient's id.")
	addTitle := addCmd.String("title", "", "The notification title.")
	addMessage := addCmd.String("message", "", "The notification message.")
	addEmail := addCmd.String("email", "", "Also send the notification to this email address.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addnotification":
		if err := addCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addRole == "" || *addID == 0 || *addTitle == "" || *addMessage == "" {
			addCmd.Usage()
			return errHelp
		}
		return cli.addNotification(*addRole, *addID, *addTitle, *addMessage, *addEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
