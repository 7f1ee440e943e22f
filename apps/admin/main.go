package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
	emailsvc "github.com/trezcool/minerva/services/email"
	logsvc "github.com/trezcool/minerva/services/logger"
	"github.com/trezcool/minerva/storage/database"
	sqlxrepos "github.com/trezcool/minerva/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(false)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// start CLI
	usrRepo := sqlxrepos.NewUserRepository(db)
	cli := commandLine{
		db:        db,
		usrRepo:   usrRepo,
		courseSvc: course.NewService(db, sqlxrepos.NewCourseRepository(db), usrRepo, emailsvc.NewConsoleService(conf, logger), conf),
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
