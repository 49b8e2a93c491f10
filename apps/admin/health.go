package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

func (cli *commandLine) checkHealth(ctx context.Context) error {
	h, err := cli.health("").Health(ctx)
	if err != nil {
		return errors.Wrap(err, "checking attendance backend")
	}
	fmt.Fprintf(cli.out, "status: %s  env: %s  version: %s  db: %s\n", h.Status, h.Environment, h.Version, h.Database.Status)
	return nil
}
