package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/services/logger"
	"github.com/trezcool/quickgrade/storage/database"
	"github.com/trezcool/quickgrade/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:       db,
		svc:      grading.NewService(sqlxrepos.NewSaveRepository(db), conf),
		validate: grading.NewValidator(core.NewTranslator()),
		in:       os.Stdin,
		out:      os.Stdout,
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
