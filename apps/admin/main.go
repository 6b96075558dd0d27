package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shuleboard/core"
	"github.com/trezcool/shuleboard/core/chatbot"
	"github.com/trezcool/shuleboard/core/school"
	"github.com/trezcool/shuleboard/storage/database"
	sqlxrepos "github.com/trezcool/shuleboard/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(context.Background(), conf)
	errAndDie(err)
	defer db.Close()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		validate: validate,
		schoolSvc: school.NewService(sqlxrepos.NewSchoolRepository(db)),
		chatbotSvc: chatbot.NewService(
			sqlxrepos.NewKnowledgeRepository(db),
			sqlxrepos.NewExchangeRepository(db),
			sqlxrepos.NewFeedbackQueueRepository(db),
			nil,
			chatbot.NewOptions(conf),
		),
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
