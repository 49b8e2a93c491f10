package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classboard/core/session"
)

func TestSessionAPI_Login(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     "/v1/session",
			body:     []byte(`{"access_token": "  "}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"access_token":"this field is required"}`),
		},
		{
			name:     "bad json",
			method:   http.MethodPost,
			path:     "/v1/session",
			body:     []byte(`{"access_token": `),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no jwt",
			method:   http.MethodGet,
			path:     "/v1/session",
			wantCode: http.StatusUnauthorized,
			wantData: []byte(`{"error":"missing or malformed jwt"}`),
		},
		{
			name:     "bad jwt",
			method:   http.MethodGet,
			path:     "/v1/session",
			token:    "not-a-token",
			wantCode: http.StatusUnauthorized,
		},
	}
	runTests(t, f, tests)

	t.Run("success", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/session", "", []byte(`{"access_token": "google-token"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Token   string          `json:"token"`
			Session session.Session `json:"session"`
		}
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.Session.ID)
		assert.Equal(t, "t1", resp.Session.Teacher.ID)
		assert.Equal(t, "teacher@test.test", resp.Session.Teacher.Email)
		assert.Empty(t, resp.Session.CourseID)
		assert.NotContains(t, rec.Body.String(), "google-token")
	})
}

func TestSessionAPI_Retrieve(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	rec := f.do(http.MethodGet, "/v1/session", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sess session.Session
	decode(t, rec, &sess)
	assert.Equal(t, "Teacher", sess.Teacher.Name)
}

func TestSessionAPI_SelectCourse(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	tests := []httpTest{
		{
			name:     "unknown course",
			method:   http.MethodPut,
			path:     "/v1/session/course",
			body:     []byte(`{"course_id": "nope"}`),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: []byte(`{"error":"course not found"}`),
		},
		{
			name:     "missing course",
			method:   http.MethodPut,
			path:     "/v1/session/course",
			body:     []byte(`{}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"course_id":"this field is required"}`),
		},
		{
			name:     "unauthenticated",
			method:   http.MethodPut,
			path:     "/v1/session/course",
			body:     []byte(`{"course_id": "c1"}`),
			wantCode: http.StatusUnauthorized,
		},
	}
	runTests(t, f, tests)

	t.Run("success", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/v1/session/course", token, []byte(`{"course_id": "c1"}`))
		assert.Equal(t, http.StatusOK, rec.Code)

		var sess session.Session
		decode(t, rec, &sess)
		assert.Equal(t, "c1", sess.CourseID)

		// the selection survives the request
		rec = f.do(http.MethodGet, "/v1/session", token)
		decode(t, rec, &sess)
		assert.Equal(t, "c1", sess.CourseID)
	})
}

func TestSessionAPI_Logout(t *testing.T) {
	f := setup(t)
	token := f.login(t)

	rec := f.do(http.MethodDelete, "/v1/session", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the token outlives the session but no longer authenticates
	tt := httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: []byte(`{"error":"session not authenticated"}`),
	}
	checkCodeAndData(t, tt, f.do(http.MethodGet, "/v1/session", token))
}
