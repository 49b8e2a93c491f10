package classroom

import (
	"context"
	"errors"

	"github.com/trezcool/classboard/core"
)

var (
	ErrNotFound     = errors.New("course not found")
	ErrUnauthorized = errors.New("classroom access denied")
	ErrStale        = errors.New("classroom response superseded by a newer request")
)

type (
	// Provider reads Classroom data on behalf of one signed-in teacher.
	// List methods return every page.
	Provider interface {
		Me(ctx context.Context) (core.Teacher, error)
		ListCourses(ctx context.Context) ([]Course, error)
		GetCourse(ctx context.Context, courseID string) (Course, error)
		ListStudents(ctx context.Context, courseID string) ([]Student, error)
		ListCourseWork(ctx context.Context, courseID string) ([]Assignment, error)
		ListSubmissions(ctx context.Context, courseID, courseWorkID string) ([]Submission, error)
	}

	// ProviderFactory builds a Provider for an access token.
	ProviderFactory func(ctx context.Context, accessToken string) (Provider, error)
)
