package grading

import (
	"strconv"
	"sync"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

const (
	DefaultPassMark       = 70
	DefaultHistogramWidth = 5

	minGrade = 0
	maxGrade = 100
)

type Options struct {
	PassMark       int // minimum percentage that passes
	HistogramWidth int
}

// Engine derives display-ready grading statistics. It holds no mutable state.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.PassMark <= 0 {
		opts.PassMark = DefaultPassMark
	}
	if opts.HistogramWidth <= 0 {
		opts.HistogramWidth = DefaultHistogramWidth
	}
	return &Engine{opts: opts}
}

func (e *Engine) passed(grades []int) int {
	var n int
	for _, g := range grades {
		if g >= e.opts.PassMark {
			n++
		}
	}
	return n
}

// AggregateAssignment counts buckets and computes the assignment's average and pass rate.
// The pass rate is relative to the whole roster, not to graded students.
func (e *Engine) AggregateAssignment(assignment classroom.Assignment, views []StudentView) AssignmentStat {
	stat := AssignmentStat{
		Assignment:    assignment,
		Students:      views,
		TotalStudents: len(views),
	}
	for _, v := range views {
		stat.Buckets.Inc(Classify(v))
		if v.Submitted {
			stat.SubmittedCount++
		}
	}
	grades := stat.Grades()
	stat.AverageGrade = mean2(grades)
	stat.PassRate = core.Percent(e.passed(grades), stat.TotalStudents)
	return stat
}

// AggregateCourse sums per-assignment stats. The average is taken over every
// individual grade, not over assignment averages.
func (e *Engine) AggregateCourse(totalCourses, rosterSize int, stats []AssignmentStat) CourseStat {
	cs := CourseStat{
		TotalCourses:     totalCourses,
		TotalAssignments: len(stats),
		TotalStudents:    rosterSize,
	}
	var grades []int
	for _, s := range stats {
		cs.TotalSubmissions += s.SubmittedCount
		cs.Buckets.Add(s.Buckets)
		grades = append(grades, s.Grades()...)
	}
	cs.TotalPending = rosterSize*len(stats) - cs.TotalSubmissions
	if cs.TotalPending < 0 {
		cs.TotalPending = 0
	}
	cs.AverageGrade = mean2(grades)
	cs.PassRate = core.Percent(e.passed(grades), len(grades))
	return cs
}

// AggregateCourses classifies every student of every assignment of each
// snapshot and returns one bar per course, in snapshot order.
func (e *Engine) AggregateCourses(snaps []classroom.Snapshot) []CourseBuckets {
	bars := make([]CourseBuckets, 0, len(snaps))
	for _, snap := range snaps {
		bar := CourseBuckets{CourseID: snap.Course.ID, Name: snap.Course.DisplayName()}
		for _, a := range snap.Assignments {
			for _, v := range DeriveStudents(a, snap.Submissions[a.ID], snap.Roster) {
				bar.Inc(Classify(v))
			}
		}
		bars = append(bars, bar)
	}
	return bars
}

// Histogram partitions 0-100 into contiguous buckets of the given width:
// "0-5", "6-10", ..., "96-100" for width 5. Every bucket is returned, empty or not.
// Out-of-range grades are counted in the edge buckets.
func Histogram(grades []int, width int) []HistogramBucket {
	if width <= 0 {
		width = DefaultHistogramWidth
	}
	buckets := make([]HistogramBucket, 0, maxGrade/width+1)
	for lo, hi := minGrade, width; lo <= maxGrade; lo, hi = hi+1, hi+width {
		if hi > maxGrade {
			hi = maxGrade
		}
		buckets = append(buckets, HistogramBucket{
			Range: strconv.Itoa(lo) + "-" + strconv.Itoa(hi),
			Min:   lo,
			Max:   hi,
		})
	}

	for _, g := range grades {
		i := 0
		if g > width {
			i = (g - 1) / width
		}
		if g < minGrade {
			i = 0
		}
		if i >= len(buckets) {
			i = len(buckets) - 1
		}
		buckets[i].Count++
	}
	return buckets
}

// Report is the full grading view-model of one course.
type Report struct {
	Course      CourseStat          `json:"course"`
	Assignments []AssignmentStat    `json:"assignments"`
	Bars        []AssignmentBuckets `json:"bars"`
	Donut       []BucketSlice       `json:"donut"`
	Histogram   []HistogramBucket   `json:"histogram"`
}

// Assignment returns the stat of the given assignment, or a zero stat.
func (r Report) Assignment(id string) (AssignmentStat, bool) {
	for _, s := range r.Assignments {
		if s.Assignment.ID == id {
			return s, true
		}
	}
	return AssignmentStat{Students: []StudentView{}}, false
}

// Grades returns every defined grade across all assignments.
func (r Report) Grades() []int {
	var grades []int
	for _, s := range r.Assignments {
		grades = append(grades, s.Grades()...)
	}
	return grades
}

// BuildReport derives every statistic of a snapshot. Assignments are processed
// concurrently; output keeps the snapshot's assignment order.
func (e *Engine) BuildReport(snap classroom.Snapshot, totalCourses int) Report {
	stats := make([]AssignmentStat, len(snap.Assignments))

	var wg sync.WaitGroup
	for i, a := range snap.Assignments {
		wg.Add(1)
		go func(i int, a classroom.Assignment) {
			defer wg.Done()
			views := DeriveStudents(a, snap.Submissions[a.ID], snap.Roster)
			stats[i] = e.AggregateAssignment(a, views)
		}(i, a)
	}
	wg.Wait()

	report := Report{
		Course:      e.AggregateCourse(totalCourses, len(snap.Roster), stats),
		Assignments: stats,
		Bars:        make([]AssignmentBuckets, 0, len(stats)),
	}
	for _, s := range stats {
		report.Bars = append(report.Bars, AssignmentBuckets{
			AssignmentID: s.Assignment.ID,
			Name:         s.Assignment.Title,
			BucketCounts: s.Buckets,
		})
	}
	report.Donut = report.Course.Buckets.Slices()
	report.Histogram = Histogram(report.Grades(), e.opts.HistogramWidth)
	return report
}
