package classroom

import (
	"github.com/volatiletech/null/v8"
)

// SubmissionState mirrors the Classroom StudentSubmission.state enum.
type SubmissionState string

const (
	StateUnspecified SubmissionState = "SUBMISSION_STATE_UNSPECIFIED"
	StateNew         SubmissionState = "NEW"
	StateCreated     SubmissionState = "CREATED"
	StateTurnedIn    SubmissionState = "TURNED_IN"
	StateReturned    SubmissionState = "RETURNED"
	StateReclaimed   SubmissionState = "RECLAIMED_BY_STUDENT"
)

// Submitted reports whether the state counts as a submission.
// CREATED is counted as submitted, like the dashboard always did.
func (s SubmissionState) Submitted() bool {
	switch s {
	case StateTurnedIn, StateReturned, StateCreated:
		return true
	default:
		return false
	}
}

type Course struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Section        null.String `json:"section"`
	Room           null.String `json:"room"`
	EnrollmentCode null.String `json:"enrollment_code"`
}

func (c Course) DisplayName() string {
	if c.Section.Valid && c.Section.String != "" {
		return c.Name + " - " + c.Section.String
	}
	return c.Name
}

// Assignment is one course-work item.
type Assignment struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	DueDate         null.Time    `json:"due_date"`
	MaxPoints       null.Float64 `json:"max_points"`
	SubmissionCount null.Int     `json:"submission_count"`
	AssignedCount   null.Int     `json:"assigned_count"`
}

// Gradable reports whether MaxPoints can be used as grading denominator.
func (a Assignment) Gradable() bool {
	return a.MaxPoints.Valid && a.MaxPoints.Float64 > 0
}

type Submission struct {
	ID            string          `json:"id"`
	AssignmentID  string          `json:"assignment_id"`
	UserID        string          `json:"user_id"`
	State         SubmissionState `json:"state"`
	AssignedGrade null.Float64    `json:"assigned_grade"`
	UpdateTime    null.Time       `json:"update_time"`
}

// Student is a roster entry; the roster decides who appears in every view.
type Student struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	PhotoURL null.String `json:"photo_url"`
}

// Snapshot is an immutable view of one course. It is replaced wholesale, never mutated.
type Snapshot struct {
	Course      Course                  `json:"course"`
	Roster      []Student               `json:"roster"`
	Assignments []Assignment            `json:"assignments"`
	Submissions map[string][]Submission `json:"submissions"` // {assignmentID: submissions}
}
