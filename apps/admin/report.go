package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/core/grading"
)

// report prints the course summary then one line per assignment.
func (cli *commandLine) report(ctx context.Context, token, courseID string) error {
	provider, err := cli.providers(ctx, token)
	if err != nil {
		return errors.Wrap(err, "building classroom provider")
	}
	courses, err := provider.ListCourses(ctx)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	snap, err := classroom.NewLoader(provider, cli.conf.Classroom.FetchConcurrency).Load(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "loading course")
	}

	engine := grading.NewEngine(grading.Options{
		PassMark:       cli.conf.Grading.PassMark,
		HistogramWidth: cli.conf.Grading.HistogramWidth,
	})
	rep := engine.BuildReport(snap, len(courses))

	cs := rep.Course
	fmt.Fprintf(cli.out, "%s\n", snap.Course.DisplayName())
	fmt.Fprintf(cli.out, "students: %d  assignments: %d  submissions: %d  pending: %d\n",
		cs.TotalStudents, cs.TotalAssignments, cs.TotalSubmissions, cs.TotalPending)
	fmt.Fprintf(cli.out, "average: %.2f  pass rate: %d%%\n\n", cs.AverageGrade, cs.PassRate)

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSIGNMENT\tSUBMITTED\tGRADED\tMISSING\tAVERAGE\tPASS RATE")
	for _, s := range rep.Assignments {
		fmt.Fprintf(w, "%s\t%d/%d\t%d\t%d\t%.2f\t%d%%\n",
			s.Assignment.Title,
			s.SubmittedCount, s.TotalStudents,
			s.Buckets.Get(grading.BucketGraded),
			s.Buckets.Get(grading.BucketNotSubmitted),
			s.AverageGrade,
			s.PassRate,
		)
	}
	return w.Flush()
}
