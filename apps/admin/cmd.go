package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/core/session"
	"github.com/trezcool/classboard/services/eventapi"
)

var (
	readTokenFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type healthChecker interface {
	Health(ctx context.Context) (eventapi.Health, error)
}

type commandLine struct {
	conf      *core.Config
	out       io.Writer
	openDB    func() (*sqlx.DB, error)
	providers classroom.ProviderFactory
	remotes   session.RemoteFactory
	health    func(token string) healthChecker
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  report -course ID - print the grade report of a course")
	fmt.Fprintln(cli.out, "  export -course ID -date YYYY-MM-DD [-out FILE] - export the attendance of a day as CSV")
	fmt.Fprintln(cli.out, "  health - check the attendance backend")
}

// promptToken reads a Google access token without echoing it.
func (cli *commandLine) promptToken() (string, error) {
	fmt.Fprint(cli.out, "Enter access token:")
	token, err := readTokenFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(token)), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportCourse := reportCmd.String("course", "", "The Classroom course id. The access token will be prompted next.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportCourse := exportCmd.String("course", "", "The Classroom course id, also the cohort id.")
	exportDate := exportCmd.String("date", "", "The day to export, as YYYY-MM-DD.")
	exportOut := exportCmd.String("out", "", "The output file. Defaults to stdout.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportCourse == "" {
			reportCmd.Usage()
			return errHelp
		}
		token, err := cli.promptToken()
		if err != nil {
			return err
		}
		if token == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(ctx, token, *reportCourse)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportCourse == "" || *exportDate == "" {
			exportCmd.Usage()
			return errHelp
		}
		token, err := cli.promptToken()
		if err != nil {
			return err
		}
		if token == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, token, *exportCourse, *exportDate, *exportOut)
	case "health":
		return cli.checkHealth(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}
