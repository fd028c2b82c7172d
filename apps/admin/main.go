package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	emailsvc "github.com/trezcool/karo/services/email"
	logsvc "github.com/trezcool/karo/services/logger"
	notifsvc "github.com/trezcool/karo/services/notification"
	"github.com/trezcool/karo/storage/database"
	sqlxrepos "github.com/trezcool/karo/storage/database/sqlx"
)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		logger.Fatal("pinging database", err)
	}

	core.ParseEmailTemplates(conf, logger)

	mailSvc := emailsvc.NewConsoleService(conf)
	notifier := notifsvc.NewEmailNotifier(mailSvc)

	sdb := sqlx.NewDb(db, conf.Database.Engine)
	feeSvc := fee.NewService(
		sqlxrepos.NewFeeRepository(sdb),
		sqlxrepos.NewStudentRepository(sdb),
		notifier,
		logger,
	)

	// start CLI
	cli := commandLine{
		db:     db,
		feeSvc: feeSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
