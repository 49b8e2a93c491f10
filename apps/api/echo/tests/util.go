package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/classboard/apps/api/echo"
	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/grading"
	"github.com/trezcool/classboard/core/reminder"
	"github.com/trezcool/classboard/core/session"
	appfs "github.com/trezcool/classboard/fs"
	emailsvc "github.com/trezcool/classboard/services/email"
	"github.com/trezcool/classboard/storage/database/inmem"
	"github.com/trezcool/classboard/tests"
)

type fixture struct {
	conf     *core.Config
	app      *Server
	provider *testutil.FakeProvider
	remote   *testutil.FakeRemote
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	logger := core.NopLogger()

	// set up repos
	db := inmemdb.Open()
	sessions := inmemdb.NewSessionRepository(db)
	drafts := inmemdb.NewDraftRepository(db)

	// set up services
	f := &fixture{
		conf:     conf,
		provider: testutil.NewFakeProvider(testutil.Snapshot("c1")),
		remote:   testutil.NewFakeRemote(),
	}
	remotes := func(string) attendance.Remote { return f.remote }
	engine := grading.NewEngine(grading.Options{PassMark: conf.Grading.PassMark, HistogramWidth: conf.Grading.HistogramWidth})
	sessSvc := session.NewService(conf, sessions, f.provider.Factory(), remotes, drafts, engine, logger)

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	emailsvc.ResetSentMessages()
	t.Cleanup(emailsvc.ResetSentMessages)
	remindSvc := reminder.NewService(emailsvc.NewConsoleServiceMock(conf), logger)

	translator := core.NewTranslator()

	// set up server
	f.app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		SessionSvc:     sessSvc,
		ReminderSvc:    remindSvc,
		Validate:       core.NewValidator(translator),
		Translator:     translator,
		DisableReqLogs: true,
	})
	return f
}

// login opens a session and returns its token.
func (f *fixture) login(t *testing.T) string {
	req, rec := newRequest(http.MethodPost, "/v1/session", []byte(`{"access_token": "google-token"}`))
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

// do serves one request and returns the recorder.
func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
