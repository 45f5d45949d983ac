package main

import (
	"context"
	"log"
	"os"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/storage/database"
	sqlxrepos "github.com/aizadzidi/tasmik-windsurf-sub000/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), conf.Exam.FetchTimeout)
	db, err := database.Open(ctx, conf)
	cancel()
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:     db.DB,
		conf:   conf,
		repo:   sqlxrepos.NewExamRepository(db),
		ledger: sqlxrepos.NewLedgerWriter(db),
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
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
