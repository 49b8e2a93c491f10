package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/services/eventapi"
	"github.com/trezcool/classboard/tests"
)

type fakeHealth struct {
	h   eventapi.Health
	err error
}

func (f fakeHealth) Health(context.Context) (eventapi.Health, error) { return f.h, f.err }

func setup(t *testing.T) (*commandLine, *bytes.Buffer, *testutil.FakeRemote) {
	out := new(bytes.Buffer)
	provider := testutil.NewFakeProvider(testutil.Snapshot("c1"))
	remote := testutil.NewFakeRemote()

	origRead := readTokenFunc
	readTokenFunc = func(int) ([]byte, error) { return []byte("google-token\n"), nil }
	t.Cleanup(func() { readTokenFunc = origRead })

	return &commandLine{
		conf: core.NewTestConfig(),
		out:  out,
		openDB: func() (*sqlx.DB, error) {
			// lazily connected; nothing is dialed until a query runs
			return sqlx.Open("postgres", "postgres://localhost/classboard_test?sslmode=disable")
		},
		providers: provider.Factory(),
		remotes:   func(string) attendance.Remote { return remote },
		health: func(string) healthChecker {
			h := eventapi.Health{Status: "ok", Environment: "test", Version: "1.0.0"}
			h.Database.Status = "up"
			return fakeHealth{h: h}
		},
	}, out, remote
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() expected an error")
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "sessions", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCLITests(t, cli, tests)
}

func Test_commandLine_report(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{name: "no course", args: []string{"report"}, wantErr: errHelp},
	}
	runCLITests(t, cli, tests)

	t.Run("unknown course", func(t *testing.T) {
		err := cli.run([]string{"admin", "report", "-course", "nope"})
		assert.Equal(t, classroom.ErrNotFound, errors.Cause(err))
	})

	t.Run("empty token", func(t *testing.T) {
		readTokenFunc = func(int) ([]byte, error) { return []byte("  "), nil }
		assert.Equal(t, errHelp, cli.run([]string{"admin", "report", "-course", "c1"}))
	})

	t.Run("success", func(t *testing.T) {
		readTokenFunc = func(int) ([]byte, error) { return []byte("google-token"), nil }
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "report", "-course", "c1"}))

		got := out.String()
		assert.Contains(t, got, "Course c1 - A")
		assert.Contains(t, got, "average: 75.00  pass rate: 50%")
		assert.Contains(t, got, "Essay")
		assert.Contains(t, got, "Reading")
	})
}

func Test_commandLine_export(t *testing.T) {
	cli, out, remote := setup(t)
	remote.AddEvent("c1", "2024-03-05", "s1", "s3")

	tests := []cliTest{
		{name: "no args", args: []string{"export"}, wantErr: errHelp},
		{name: "no date", args: []string{"export", "-course", "c1"}, wantErr: errHelp},
		{name: "bad date", args: []string{"export", "-course", "c1", "-date", "05/03/2024"}, wantErrStr: `invalid date "05/03/2024": must be formatted as YYYY-MM-DD`},
		{name: "no record", args: []string{"export", "-course", "c1", "-date", "2024-03-06"}, wantErr: attendance.ErrNoRecord},
	}
	runCLITests(t, cli, tests)

	t.Run("stdout", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "export", "-course", "c1", "-date", "2024-03-05"}))
		assert.Contains(t, out.String(), `"Course c1 - A","05/03/2024","Student 1","s1@test.test","Presente"`)
		assert.Contains(t, out.String(), `"Course c1 - A","05/03/2024","Student 2","s2@test.test","Ausente"`)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.csv")
		require.NoError(t, cli.run([]string{"admin", "export", "-course", "c1", "-date", "2024-03-05", "-out", path}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"Cohorte","Fecha","Nombre","Email","Estado"`)
		assert.Contains(t, string(data), `"Student 3","s3@test.test","Presente"`)
	})
}

func Test_commandLine_health(t *testing.T) {
	cli, out, _ := setup(t)

	require.NoError(t, cli.run([]string{"admin", "health"}))
	assert.Equal(t, "status: ok  env: test  version: 1.0.0  db: up\n", out.String())

	t.Run("backend down", func(t *testing.T) {
		cli.health = func(string) healthChecker { return fakeHealth{err: testutil.ErrRemote} }
		err := cli.run([]string{"admin", "health"})
		assert.Equal(t, testutil.ErrRemote, errors.Cause(err))
	})
}
