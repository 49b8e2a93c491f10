package testutil

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/storage/database"
)

// Roster returns n students with ids s1..sn.
func Roster(n int) []classroom.Student {
	students := make([]classroom.Student, 0, n)
	for i := 1; i <= n; i++ {
		id := "s" + strconv.Itoa(i)
		students = append(students, classroom.Student{
			ID:    id,
			Name:  "Student " + strconv.Itoa(i),
			Email: id + "@test.test",
		})
	}
	return students
}

func Student(id, name string) classroom.Student {
	return classroom.Student{ID: id, Name: name, Email: id + "@test.test"}
}

// GradedSubmission returns a RETURNED submission of userID with the given grade.
func GradedSubmission(assignmentID, userID string, grade float64, updatedAt ...time.Time) classroom.Submission {
	sub := classroom.Submission{
		ID:            assignmentID + "-" + userID,
		AssignmentID:  assignmentID,
		UserID:        userID,
		State:         classroom.StateReturned,
		AssignedGrade: null.Float64From(grade),
	}
	if len(updatedAt) > 0 {
		sub.UpdateTime = null.TimeFrom(updatedAt[0])
	}
	return sub
}

// TurnedIn returns an ungraded TURNED_IN submission of userID.
func TurnedIn(assignmentID, userID string) classroom.Submission {
	return classroom.Submission{
		ID:           assignmentID + "-" + userID,
		AssignmentID: assignmentID,
		UserID:       userID,
		State:        classroom.StateTurnedIn,
	}
}

// Snapshot returns a course of 4 students and 2 assignments:
// "a1" (max 50) graded for s1 and s2, turned in by s3; "a2" (no max points) turned in by s1.
func Snapshot(courseID string) classroom.Snapshot {
	return classroom.Snapshot{
		Course: classroom.Course{ID: courseID, Name: "Course " + courseID, Section: null.StringFrom("A")},
		Roster: Roster(4),
		Assignments: []classroom.Assignment{
			{ID: "a1", Title: "Essay", MaxPoints: null.Float64From(50), DueDate: null.TimeFrom(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))},
			{ID: "a2", Title: "Reading"},
		},
		Submissions: map[string][]classroom.Submission{
			"a1": {GradedSubmission("a1", "s1", 45), GradedSubmission("a1", "s2", 30), TurnedIn("a1", "s3")},
			"a2": {TurnedIn("a2", "s1")},
		},
	}
}

// OpenDB connects to the test database and applies migrations.
// The test is skipped unless TEST_DATABASE_HOST is set.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	conf := core.DatabaseConfig{
		Engine:     "postgres",
		Host:       host,
		Port:       getenv("TEST_DATABASE_PORT", "5432"),
		Name:       getenv("TEST_DATABASE_NAME", "classboard_test"),
		User:       getenv("TEST_DATABASE_USER", "classboard"),
		Password:   getenv("TEST_DATABASE_PASSWORD", "classboard"),
		DisableTLS: true,
	}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err := database.Migrate(db, "up"); err != nil {
		t.Fatalf("OpenDB() failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE TABLE attendance_draft"); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
