package session

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/grading"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrExpired        = errors.New("session expired")
	ErrNoCourse       = errors.New("no course selected")
	ErrMissingToken   = errors.New("missing access token")
	ErrCourseNotFound = errors.New("course not found")
)

// Session is the signed-in state of one teacher.
type Session struct {
	ID          string       `json:"id"`
	AccessToken string       `json:"-"`
	Teacher     core.Teacher `json:"teacher"`
	CourseID    string       `json:"course_id"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Repository interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// RemoteFactory builds the attendance backend client of one access token.
type RemoteFactory func(accessToken string) attendance.Remote

// Dashboard is the landing view of a course.
type Dashboard struct {
	Course         grading.CourseStat        `json:"course"`
	Histogram      []grading.HistogramBucket `json:"histogram"`
	Courses        []grading.CourseBuckets   `json:"courses"` // one bar per course of the teacher
	AttendanceRate int                       `json:"attendance_rate"` // % of recorded days with someone present
	AttendanceDays int                       `json:"attendance_days"`
}
