package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/classboard/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	return gooseRunFunc(db, args[0], args[1:]...)
}
