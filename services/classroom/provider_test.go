package classroomsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

// pages maps "path?pageToken" to a JSON answer.
type pages map[string]interface{}

func newTestProvider(t *testing.T, answers pages) (*Provider, *[]*http.Request) {
	var reqs []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs = append(reqs, r)
		ans, ok := answers[r.URL.Path+"?"+r.URL.Query().Get("pageToken")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "Requested entity was not found."}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ans)
	}))
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig().Classroom
	p, err := NewProvider(context.Background(), conf, "tok", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return p, &reqs
}

func TestProvider_ListStudentsPages(t *testing.T) {
	p, reqs := newTestProvider(t, pages{
		"/v1/courses/c1/students?": map[string]interface{}{
			"students": []interface{}{
				map[string]interface{}{"userId": "s1", "profile": map[string]interface{}{
					"name": map[string]interface{}{"fullName": "Ana"}, "emailAddress": "ana@test.test",
				}},
			},
			"nextPageToken": "p2",
		},
		"/v1/courses/c1/students?p2": map[string]interface{}{
			"students": []interface{}{
				map[string]interface{}{"userId": "s2", "profile": map[string]interface{}{"emailAddress": "bo@test.test"}},
			},
		},
	})

	students, err := p.ListStudents(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []classroom.Student{
		{ID: "s1", Name: "Ana", Email: "ana@test.test"},
		{ID: "s2", Name: "bo@test.test", Email: "bo@test.test"},
	}, students)

	require.Len(t, *reqs, 2)
	assert.Equal(t, "100", (*reqs)[0].URL.Query().Get("pageSize"))
}

func TestProvider_ListCourseWork(t *testing.T) {
	p, reqs := newTestProvider(t, pages{
		"/v1/courses/c1/courseWork?": map[string]interface{}{
			"courseWork": []interface{}{
				map[string]interface{}{
					"id": "a1", "title": "Essay", "maxPoints": 50,
					"dueDate": map[string]interface{}{"year": 2024, "month": 3, "day": 5},
					"dueTime": map[string]interface{}{"hours": 23, "minutes": 59},
				},
				map[string]interface{}{"id": "a2", "title": "Reading"},
			},
		},
	})

	work, err := p.ListCourseWork(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, work, 2)
	assert.Equal(t, "20", (*reqs)[0].URL.Query().Get("pageSize"))

	assert.True(t, work[0].Gradable())
	assert.Equal(t, 50.0, work[0].MaxPoints.Float64)
	assert.Equal(t, time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC), work[0].DueDate.Time)
	assert.False(t, work[1].Gradable())
	assert.False(t, work[1].DueDate.Valid)
}

func TestProvider_ListSubmissions(t *testing.T) {
	p, _ := newTestProvider(t, pages{
		"/v1/courses/c1/courseWork/a1/studentSubmissions?": map[string]interface{}{
			"studentSubmissions": []interface{}{
				map[string]interface{}{"id": "x1", "courseWorkId": "a1", "userId": "s1", "state": "RETURNED", "updateTime": "2024-03-05T10:00:00.123Z"},
				map[string]interface{}{"id": "x2", "courseWorkId": "a1", "userId": "s2", "state": "TURNED_IN"},
				map[string]interface{}{"id": "x3", "courseWorkId": "a1", "userId": "s3", "state": "TURNED_IN", "assignedGrade": 45},
				map[string]interface{}{"id": "x4", "courseWorkId": "a1", "userId": "s4"},
			},
		},
	})

	subs, err := p.ListSubmissions(context.Background(), "c1", "a1")
	require.NoError(t, err)
	require.Len(t, subs, 4)

	tests := []struct {
		id        string
		state     classroom.SubmissionState
		gradeSet  bool
		grade     float64
		timeValid bool
	}{
		{"x1", classroom.StateReturned, true, 0, true},
		{"x2", classroom.StateTurnedIn, false, 0, false},
		{"x3", classroom.StateTurnedIn, true, 45, false},
		{"x4", classroom.StateUnspecified, false, 0, false},
	}
	for i, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			sub := subs[i]
			assert.Equal(t, tc.id, sub.ID)
			assert.Equal(t, "a1", sub.AssignmentID)
			assert.Equal(t, tc.state, sub.State)
			assert.Equal(t, tc.gradeSet, sub.AssignedGrade.Valid)
			assert.Equal(t, tc.grade, sub.AssignedGrade.Float64)
			assert.Equal(t, tc.timeValid, sub.UpdateTime.Valid)
		})
	}
}

func TestProvider_CoursesAndMe(t *testing.T) {
	p, reqs := newTestProvider(t, pages{
		"/v1/courses?": map[string]interface{}{
			"courses": []interface{}{
				map[string]interface{}{"id": "c1", "name": "Math", "section": "A"},
				map[string]interface{}{"id": "c2", "name": "Art"},
			},
		},
		"/v1/courses/c1?": map[string]interface{}{"id": "c1", "name": "Math", "section": "A", "room": "12"},
		"/v1/userProfiles/me?": map[string]interface{}{
			"id": "t1", "emailAddress": "t@test.test", "name": map[string]interface{}{"fullName": "Teacher"},
		},
	})
	ctx := context.Background()

	courses, err := p.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Math - A", courses[0].DisplayName())
	assert.Equal(t, "Art", courses[1].DisplayName())
	assert.Equal(t, "me", (*reqs)[0].URL.Query().Get("teacherId"))

	c, err := p.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "12", c.Room.String)
	assert.False(t, c.EnrollmentCode.Valid)

	me, err := p.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Teacher{ID: "t1", Name: "Teacher", Email: "t@test.test"}, me)
}

func TestProvider_NotFound(t *testing.T) {
	p, _ := newTestProvider(t, pages{})

	_, err := p.GetCourse(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, classroom.ErrNotFound)
}
