package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
)

// export writes the attendance of courseID on date as CSV to path, or to stdout.
func (cli *commandLine) export(ctx context.Context, token, courseID, date, path string) error {
	if _, err := core.ParseDateKey(date); err != nil {
		return errors.Errorf("invalid date %q: must be formatted as YYYY-MM-DD", date)
	}

	provider, err := cli.providers(ctx, token)
	if err != nil {
		return errors.Wrap(err, "building classroom provider")
	}
	course, err := provider.GetCourse(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	roster, err := provider.ListStudents(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}

	rec := attendance.NewReconciler(courseID, cli.remotes(token), nil, core.NopLogger())
	rec.SetRoster(roster)
	if err = rec.Load(ctx); err != nil {
		return errors.Wrap(err, "loading attendance")
	}
	record, ok := rec.Record(date)
	if !ok {
		return attendance.ErrNoRecord
	}

	var w io.Writer = cli.out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating output file")
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return attendance.WriteCSV(w, course.DisplayName(), record)
}
