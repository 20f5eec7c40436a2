package main

import (
	"log"
	"os"

	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
	emailsvc "github.com/lamiedu/taarifa/services/email"
	"github.com/lamiedu/taarifa/storage/database"
	sqlxrepos "github.com/lamiedu/taarifa/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	core.ParseEmailTemplates(conf, core.NopLogger{})

	// start CLI
	cli := commandLine{
		db:       db,
		notifSvc: notification.NewService(sqlxrepos.NewNotificationRepository(db), nil, emailsvc.NewConsoleService(conf), core.NopLogger{}, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
