// Package classroomsvc reads Google Classroom through the official API client.
package classroomsvc

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/oauth2"
	gclassroom "google.golang.org/api/classroom/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

const (
	maxPageSize   = 100
	teacherMe     = "me"
	activeCourses = "ACTIVE"
)

type Provider struct {
	svc                *gclassroom.Service
	courseWorkPageSize int64
}

var _ classroom.Provider = (*Provider)(nil)

// NewProvider returns a Provider acting as the owner of accessToken.
// opts are applied after the defaults.
func NewProvider(ctx context.Context, conf core.ClassroomConfig, accessToken string, opts ...option.ClientOption) (*Provider, error) {
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	hc.Timeout = conf.Timeout

	svc, err := gclassroom.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "creating classroom service")
	}

	pageSize := conf.CourseWorkPageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Provider{svc: svc, courseWorkPageSize: pageSize}, nil
}

// NewFactory returns a classroom.ProviderFactory backed by the Google API.
func NewFactory(conf *core.Config) classroom.ProviderFactory {
	return func(ctx context.Context, accessToken string) (classroom.Provider, error) {
		// the provider outlives the request that created it
		return NewProvider(context.WithoutCancel(ctx), conf.Classroom, accessToken)
	}
}

func translateErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return errors.Wrap(classroom.ErrNotFound, msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(classroom.ErrUnauthorized, msg)
		}
	}
	return errors.Wrap(err, msg)
}

func (p *Provider) Me(ctx context.Context) (core.Teacher, error) {
	prof, err := p.svc.UserProfiles.Get(teacherMe).Context(ctx).Do()
	if err != nil {
		return core.Teacher{}, translateErr(err, "getting user profile")
	}
	t := core.Teacher{ID: prof.Id, Email: prof.EmailAddress}
	if prof.Name != nil {
		t.Name = prof.Name.FullName
	}
	return t, nil
}

func (p *Provider) ListCourses(ctx context.Context) ([]classroom.Course, error) {
	var courses []classroom.Course
	err := p.svc.Courses.List().
		TeacherId(teacherMe).
		CourseStates(activeCourses).
		PageSize(maxPageSize).
		Pages(ctx, func(resp *gclassroom.ListCoursesResponse) error {
			for _, c := range resp.Courses {
				courses = append(courses, toCourse(c))
			}
			return nil
		})
	if err != nil {
		return nil, translateErr(err, "listing courses")
	}
	return courses, nil
}

func (p *Provider) GetCourse(ctx context.Context, courseID string) (classroom.Course, error) {
	c, err := p.svc.Courses.Get(courseID).Context(ctx).Do()
	if err != nil {
		return classroom.Course{}, translateErr(err, "getting course")
	}
	return toCourse(c), nil
}

func (p *Provider) ListStudents(ctx context.Context, courseID string) ([]classroom.Student, error) {
	var students []classroom.Student
	err := p.svc.Courses.Students.List(courseID).
		PageSize(maxPageSize).
		Pages(ctx, func(resp *gclassroom.ListStudentsResponse) error {
			for _, s := range resp.Students {
				students = append(students, toStudent(s))
			}
			return nil
		})
	if err != nil {
		return nil, translateErr(err, "listing students")
	}
	return students, nil
}

func (p *Provider) ListCourseWork(ctx context.Context, courseID string) ([]classroom.Assignment, error) {
	var work []classroom.Assignment
	err := p.svc.Courses.CourseWork.List(courseID).
		PageSize(p.courseWorkPageSize).
		Pages(ctx, func(resp *gclassroom.ListCourseWorkResponse) error {
			for _, cw := range resp.CourseWork {
				work = append(work, toAssignment(cw))
			}
			return nil
		})
	if err != nil {
		return nil, translateErr(err, "listing course work")
	}
	return work, nil
}

func (p *Provider) ListSubmissions(ctx context.Context, courseID, courseWorkID string) ([]classroom.Submission, error) {
	var subs []classroom.Submission
	err := p.svc.Courses.CourseWork.StudentSubmissions.List(courseID, courseWorkID).
		PageSize(maxPageSize).
		Pages(ctx, func(resp *gclassroom.ListStudentSubmissionsResponse) error {
			for _, s := range resp.StudentSubmissions {
				subs = append(subs, toSubmission(s))
			}
			return nil
		})
	if err != nil {
		return nil, translateErr(err, "listing submissions")
	}
	return subs, nil
}

func optString(s string) null.String {
	return null.NewString(s, s != "")
}

func toCourse(c *gclassroom.Course) classroom.Course {
	return classroom.Course{
		ID:             c.Id,
		Name:           c.Name,
		Section:        optString(c.Section),
		Room:           optString(c.Room),
		EnrollmentCode: optString(c.EnrollmentCode),
	}
}

func toStudent(s *gclassroom.Student) classroom.Student {
	st := classroom.Student{ID: s.UserId}
	if prof := s.Profile; prof != nil {
		st.Email = prof.EmailAddress
		st.PhotoURL = optString(prof.PhotoUrl)
		if prof.Name != nil {
			st.Name = prof.Name.FullName
		}
	}
	if st.Name == "" {
		st.Name = st.Email
	}
	return st
}

func toAssignment(cw *gclassroom.CourseWork) classroom.Assignment {
	a := classroom.Assignment{
		ID:        cw.Id,
		Title:     cw.Title,
		MaxPoints: null.NewFloat64(cw.MaxPoints, cw.MaxPoints > 0),
	}
	if d := cw.DueDate; d != nil && d.Year > 0 {
		var h, m int
		if t := cw.DueTime; t != nil {
			h, m = int(t.Hours), int(t.Minutes)
		}
		a.DueDate = null.TimeFrom(time.Date(int(d.Year), time.Month(d.Month), int(d.Day), h, m, 0, 0, time.UTC))
	}
	return a
}

// toSubmission treats a zero grade as unset unless the work was returned.
func toSubmission(s *gclassroom.StudentSubmission) classroom.Submission {
	state := classroom.SubmissionState(s.State)
	if state == "" {
		state = classroom.StateUnspecified
	}
	sub := classroom.Submission{
		ID:            s.Id,
		AssignmentID:  s.CourseWorkId,
		UserID:        s.UserId,
		State:         state,
		AssignedGrade: null.NewFloat64(s.AssignedGrade, s.AssignedGrade != 0 || state == classroom.StateReturned),
	}
	if t, err := time.Parse(time.RFC3339Nano, s.UpdateTime); err == nil {
		sub.UpdateTime = null.TimeFrom(t)
	}
	return sub
}
