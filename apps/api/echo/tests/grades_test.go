package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/classboard/apps/api/echo"
	"github.com/trezcool/classboard/core/grading"
	"github.com/trezcool/classboard/core/reminder"
	"github.com/trezcool/classboard/core/session"
	emailsvc "github.com/trezcool/classboard/services/email"
)

func TestGradesAPI_ListCourses(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	rec := f.do(http.MethodGet, "/v1/courses", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var courses []CourseResponse
	decode(t, rec, &courses)
	require.Len(t, courses, 1)
	assert.Equal(t, "c1", courses[0].ID)
	assert.Equal(t, "Course c1 - A", courses[0].DisplayName)
	assert.False(t, courses[0].Selected)

	f.do(http.MethodPut, "/v1/session/course", token, []byte(`{"course_id": "c1"}`))
	decode(t, f.do(http.MethodGet, "/v1/courses", token), &courses)
	assert.True(t, courses[0].Selected)
}

func TestGradesAPI_Report(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	rec := f.do(http.MethodGet, "/v1/courses/c1/grades", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report grading.Report
	decode(t, rec, &report)
	require.Len(t, report.Assignments, 2)
	assert.Equal(t, 2, report.Course.TotalAssignments)
	assert.Equal(t, 4, report.Course.TotalStudents)
	assert.Equal(t, 4, report.Course.TotalSubmissions)
	assert.Equal(t, 4, report.Course.TotalPending)
	assert.Equal(t, 75.0, report.Course.AverageGrade)
	assert.Equal(t, 50, report.Course.PassRate)
	assert.Len(t, report.Bars, 2)
	assert.Len(t, report.Donut, len(grading.AllBuckets))

	t.Run("cached unless refreshed", func(t *testing.T) {
		calls := f.provider.Calls("ListCourseWork")
		f.do(http.MethodGet, "/v1/courses/c1/grades", token)
		assert.Equal(t, calls, f.provider.Calls("ListCourseWork"))

		rec := f.do(http.MethodGet, "/v1/courses/c1/grades?refresh=true", token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, calls+1, f.provider.Calls("ListCourseWork"))
	})
}

func TestGradesAPI_Assignment(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	t.Run("success", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/courses/c1/grades/a1", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stat grading.AssignmentStat
		decode(t, rec, &stat)
		assert.Equal(t, "Essay", stat.Assignment.Title)
		assert.Equal(t, 25, stat.PassRate)
		assert.Equal(t, 75.0, stat.AverageGrade)
		assert.Equal(t, 3, stat.SubmittedCount)
		assert.Equal(t, 2, stat.Buckets.Get(grading.BucketGraded))
		assert.Equal(t, 1, stat.Buckets.Get(grading.BucketNotSubmitted))
	})

	tests := []httpTest{
		{
			name:     "unknown assignment",
			method:   http.MethodGet,
			path:     "/v1/courses/c1/grades/nope",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: []byte(`{"error":"not found"}`),
		},
		{
			name:     "unknown course",
			method:   http.MethodGet,
			path:     "/v1/courses/nope/grades/a1",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: []byte(`{"error":"course not found"}`),
		},
		{
			name:     "no current course",
			method:   http.MethodGet,
			path:     "/v1/courses/current/grades/a1",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"no course selected"}`),
		},
	}
	runTests(t, f, tests)

	t.Run("current course", func(t *testing.T) {
		f.do(http.MethodPut, "/v1/session/course", token, []byte(`{"course_id": "c1"}`))
		rec := f.do(http.MethodGet, "/v1/courses/current/grades/a1", token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGradesAPI_Dashboard(t *testing.T) {
	f := setup(t)
	token := f.login(t)
	f.remote.AddEvent("c1", "2024-03-05", "s1", "s2")
	f.remote.AddEvent("c1", "2024-03-06")

	rec := f.do(http.MethodGet, "/v1/courses/c1/dashboard", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dash session.Dashboard
	decode(t, rec, &dash)
	assert.Equal(t, 75.0, dash.Course.AverageGrade)
	assert.Len(t, dash.Histogram, 20)
	assert.Equal(t, 2, dash.AttendanceDays)
	assert.Equal(t, 50, dash.AttendanceRate)

	require.Len(t, dash.Courses, 1)
	assert.Equal(t, "Course c1 - A", dash.Courses[0].Name)
	assert.Equal(t, grading.BucketCounts{Graded: 2, Submitted: 2, NotSubmitted: 4}, dash.Courses[0].BucketCounts)

	t.Run("attendance backend down", func(t *testing.T) {
		f := setup(t)
		token := f.login(t)
		f.remote.FailList = true

		rec := f.do(http.MethodGet, "/v1/courses/c1/dashboard", token)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &dash)
		assert.Zero(t, dash.AttendanceDays)
	})
}

func TestGradesAPI_SendReminders(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	rec := f.do(http.MethodPost, "/v1/courses/c1/grades/a1/reminders", token)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var res reminder.Result
	decode(t, rec, &res)
	assert.Equal(t, []string{"s4"}, res.Sent)
	assert.Empty(t, res.Skipped)

	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "s4@test.test", sent[0].To[0].Address)
	assert.Equal(t, "teacher@test.test", sent[0].Cc[0].Address)
	assert.Equal(t, "Tarea pendiente: Essay", sent[0].Subject)
}
