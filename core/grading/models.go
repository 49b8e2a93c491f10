package grading

import (
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core/classroom"
)

// Bucket is the status of one student for one assignment.
type Bucket string

const (
	BucketGraded       Bucket = "graded"        // corregida: submitted and graded
	BucketSubmitted    Bucket = "submitted"     // entregada: submitted, not graded yet
	BucketNotSubmitted Bucket = "not_submitted" // comenzada: nothing turned in
	// BucketReclaimed (reclamada) is kept for a future dispute workflow; no rule populates it.
	BucketReclaimed Bucket = "reclaimed"
	BucketAnomalous Bucket = "anomalous" // graded without a submission
)

// AllBuckets lists buckets in display order.
var AllBuckets = []Bucket{BucketGraded, BucketSubmitted, BucketNotSubmitted, BucketReclaimed, BucketAnomalous}

// StudentView merges a roster student with their submission for one assignment.
type StudentView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	PhotoURL    null.String `json:"photo_url"`
	Submitted   bool        `json:"submitted"`
	Grade       null.Int    `json:"grade"` // percentage 0-100
	SubmittedAt null.Time   `json:"submitted_at"`
}

type BucketCounts struct {
	Graded       int `json:"graded"`
	Submitted    int `json:"submitted"`
	NotSubmitted int `json:"not_submitted"`
	Reclaimed    int `json:"reclaimed"`
	Anomalous    int `json:"anomalous"`
}

func (b *BucketCounts) Inc(bucket Bucket) {
	switch bucket {
	case BucketGraded:
		b.Graded++
	case BucketSubmitted:
		b.Submitted++
	case BucketNotSubmitted:
		b.NotSubmitted++
	case BucketReclaimed:
		b.Reclaimed++
	default:
		b.Anomalous++
	}
}

func (b *BucketCounts) Add(o BucketCounts) {
	b.Graded += o.Graded
	b.Submitted += o.Submitted
	b.NotSubmitted += o.NotSubmitted
	b.Reclaimed += o.Reclaimed
	b.Anomalous += o.Anomalous
}

func (b BucketCounts) Get(bucket Bucket) int {
	switch bucket {
	case BucketGraded:
		return b.Graded
	case BucketSubmitted:
		return b.Submitted
	case BucketNotSubmitted:
		return b.NotSubmitted
	case BucketReclaimed:
		return b.Reclaimed
	default:
		return b.Anomalous
	}
}

func (b BucketCounts) Total() int {
	return b.Graded + b.Submitted + b.NotSubmitted + b.Reclaimed + b.Anomalous
}

// Slices returns the counts in display order (donut chart data).
func (b BucketCounts) Slices() []BucketSlice {
	slices := make([]BucketSlice, 0, len(AllBuckets))
	for _, bucket := range AllBuckets {
		slices = append(slices, BucketSlice{Name: bucket, Value: b.Get(bucket)})
	}
	return slices
}

type BucketSlice struct {
	Name  Bucket `json:"name"`
	Value int    `json:"value"`
}

type AssignmentStat struct {
	Assignment     classroom.Assignment `json:"assignment"`
	Students       []StudentView        `json:"students"`
	Buckets        BucketCounts         `json:"buckets"`
	SubmittedCount int                  `json:"submitted_count"`
	TotalStudents  int                  `json:"total_students"`
	AverageGrade   float64              `json:"average_grade"`
	PassRate       int                  `json:"pass_rate"`
}

// Grades returns every defined grade of the assignment.
func (s AssignmentStat) Grades() []int {
	grades := make([]int, 0, len(s.Students))
	for _, st := range s.Students {
		if st.Grade.Valid {
			grades = append(grades, st.Grade.Int)
		}
	}
	return grades
}

type CourseStat struct {
	TotalCourses     int          `json:"total_courses"`
	TotalAssignments int          `json:"total_assignments"`
	TotalStudents    int          `json:"total_students"`
	TotalSubmissions int          `json:"total_submissions"`
	TotalPending     int          `json:"total_pending"`
	AverageGrade     float64      `json:"average_grade"`
	PassRate         int          `json:"pass_rate"`
	Buckets          BucketCounts `json:"buckets"`
}

type HistogramBucket struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// AssignmentBuckets is one bar of the per-assignment bar chart.
type AssignmentBuckets struct {
	AssignmentID string `json:"assignment_id"`
	Name         string `json:"name"`
	BucketCounts
}

// CourseBuckets is one bar of the cross-course bar chart.
type CourseBuckets struct {
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
	BucketCounts
}
