package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/classboard/core"
	classroomsvc "github.com/trezcool/classboard/services/classroom"
	"github.com/trezcool/classboard/services/eventapi"
	"github.com/trezcool/classboard/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// start CLI
	cli := commandLine{
		conf:      conf,
		out:       os.Stdout,
		openDB:    func() (*sqlx.DB, error) { return database.Open(conf.Database) },
		providers: classroomsvc.NewFactory(conf),
		remotes:   eventapi.NewFactory(conf),
		health: func(token string) healthChecker {
			return eventapi.NewClient(conf.EventAPI, token)
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
