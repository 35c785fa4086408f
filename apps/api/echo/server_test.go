package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/progress"
	"github.com/trezcool/kazi/core/session"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/tracker"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/services/email"
	"github.com/trezcool/kazi/storage/collection"
	"github.com/trezcool/kazi/storage/kv/inmem"
	"github.com/trezcool/kazi/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	wantCode int
	wantData string // JSON; compared when set
}

type fixture struct {
	app Server
	db  *inmem.DB
}

func setup(t *testing.T) fixture {
	ctx := context.Background()
	store, db := testutil.PrepareStore(t)
	testutil.MockNow(t, time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))

	ds, err := collection.BundledDataset()
	require.NoError(t, err)
	_, err = collection.Seed(ctx, store, ds, false)
	require.NoError(t, err)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	logger := testutil.NopLogger()

	usrRepo := collection.NewUserRepository()
	asgRepo := collection.NewAssignmentRepository()
	subRepo := collection.NewSubmissionRepository()
	trk := tracker.New(
		user.NewService(store, usrRepo, validate),
		assignment.NewService(store, asgRepo, usrRepo, validate, emailsvc.NewConsoleServiceMock(testutil.TestConfig())),
		submission.NewService(store, subRepo, asgRepo, 30*time.Second, logger),
		progress.NewService(store, asgRepo, subRepo, usrRepo),
		session.NewHolder(store, collection.NewSessionRepository()),
	)
	t.Cleanup(trk.Close)
	require.NoError(t, trk.Init(ctx))

	app := NewServer(&Options{
		TestMode:       true,
		DisableReqLogs: true,
		Tracker:        trk,
		Validate:       validate,
		Translator:     translator,
		Logger:         logger,
	})
	t.Cleanup(func() { _ = app.Stop(context.Background()) })
	return fixture{app: app, db: db}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f fixture) login(t *testing.T, userID string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/session/login", `{"userId":"`+userID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (f fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != "" {
				assert.JSONEq(t, tt.wantData, rec.Body.String())
			}
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServer_home(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Kazi API!", rec.Body.String())
}

func TestSessionAPI(t *testing.T) {
	f := setup(t)

	f.run(t, []httpTest{
		{name: "no session", method: http.MethodGet, path: "/v1/session", wantCode: http.StatusOK, wantData: `{"user":null}`},
		{name: "users listed", method: http.MethodGet, path: "/v1/users", wantCode: http.StatusOK},
		{
			name: "roles listed", method: http.MethodGet, path: "/v1/roles", wantCode: http.StatusOK,
			wantData: `[{"name":"Student","value":"STUDENT"},{"name":"Instructor","value":"ADMIN"}]`,
		},
		{
			name: "blank user id", method: http.MethodPost, path: "/v1/session/login", body: `{"userId":"  "}`,
			wantCode: http.StatusBadRequest, wantData: `{"userId":"this field cannot be blank"}`,
		},
		{name: "unknown user", method: http.MethodPost, path: "/v1/session/login", body: `{"userId":"nope"}`, wantCode: http.StatusNotFound},
		{name: "protected", method: http.MethodGet, path: "/v1/assignments", wantCode: http.StatusUnauthorized, wantData: `{"error":"no user logged in"}`},
		{
			name: "login", method: http.MethodPost, path: "/v1/session/login", body: `{"userId":"student-1"}`,
			wantCode: http.StatusOK,
			wantData: `{"user":{"id":"student-1","name":"Chloe Mwangi","email":"chloe.mwangi@example.edu","role":"STUDENT"}}`,
		},
		{
			name: "session restored", method: http.MethodGet, path: "/v1/session", wantCode: http.StatusOK,
			wantData: `{"user":{"id":"student-1","name":"Chloe Mwangi","email":"chloe.mwangi@example.edu","role":"STUDENT"}}`,
		},
		{name: "logout", method: http.MethodPost, path: "/v1/session/logout", wantCode: http.StatusOK, wantData: `{"success":"logged out"}`},
		{name: "logged out", method: http.MethodGet, path: "/v1/session", wantCode: http.StatusOK, wantData: `{"user":null}`},
	})
}

func TestSubmissionAPI(t *testing.T) {
	f := setup(t)
	f.login(t, "student-3")

	t.Run("assignments ordered by due date", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/assignments?ordering=-dueDate", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var asgs []assignment.Assignment
		decode(t, rec, &asgs)
		require.Len(t, asgs, 2)
		assert.Equal(t, "assign-3", asgs[0].ID)
		assert.Equal(t, "assign-1", asgs[1].ID)
	})

	f.run(t, []httpTest{
		{name: "students cannot create", method: http.MethodPost, path: "/v1/assignments", body: `{}`, wantCode: http.StatusForbidden},
		{name: "students cannot read rosters", method: http.MethodGet, path: "/v1/assignments/assign-1/roster", wantCode: http.StatusForbidden},
		{name: "not assigned", method: http.MethodPost, path: "/v1/assignments/assign-2/submit", wantCode: http.StatusForbidden},
		{name: "unknown assignment", method: http.MethodPost, path: "/v1/assignments/nope/submit", wantCode: http.StatusNotFound},
	})

	var resp struct {
		Result   submission.Result `json:"result"`
		Info     string            `json:"info"`
		Snapshot tracker.Snapshot  `json:"snapshot"`
	}

	rec := f.do(t, http.MethodPost, "/v1/assignments/assign-3/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &resp)
	assert.Equal(t, submission.OutcomeAwaitingConfirmation, resp.Result.Outcome)
	assert.Len(t, resp.Snapshot.Submissions, 4)
	subID := resp.Result.Submission.ID

	rec = f.do(t, http.MethodPost, "/v1/submissions/"+subID+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &resp)
	assert.Equal(t, submission.OutcomeSubmitted, resp.Result.Outcome)
	require.NotNil(t, resp.Result.Undo)
	assert.Equal(t, subID, resp.Result.Undo.SubmissionID)

	rec = f.do(t, http.MethodPost, "/v1/assignments/assign-3/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp.Info = ""
	decode(t, rec, &resp)
	assert.Equal(t, "this assignment is already submitted", resp.Info)

	f.run(t, []httpTest{
		{name: "progress", method: http.MethodGet, path: "/v1/progress", wantCode: http.StatusOK, wantData: `{"submitted":1,"total":2,"percentage":50}`},
		{name: "assignment progress", method: http.MethodGet, path: "/v1/assignments/assign-3/progress", wantCode: http.StatusOK, wantData: `{"assignmentId":"assign-3","percentage":33}`},
		{name: "undo", method: http.MethodPost, path: "/v1/submissions/" + subID + "/undo", wantCode: http.StatusOK},
		{name: "undo again", method: http.MethodPost, path: "/v1/submissions/" + subID + "/undo", wantCode: http.StatusNotFound},
		{name: "progress after undo", method: http.MethodGet, path: "/v1/progress", wantCode: http.StatusOK, wantData: `{"submitted":0,"total":2,"percentage":0}`},
	})
}

func TestStudentAssignmentsAPI(t *testing.T) {
	f := setup(t)
	f.login(t, "student-1")

	rec := f.do(t, http.MethodGet, "/v1/assignments?ordering=dueDate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var views []progress.StudentAssignment
	decode(t, rec, &views)
	require.Len(t, views, 2)

	assert.Equal(t, "assign-2", views[0].ID)
	assert.Equal(t, "NOT_SUBMITTED", views[0].Status)
	assert.True(t, views[0].Overdue)
	assert.False(t, views[0].SubmittedAt.Valid)

	assert.Equal(t, "assign-1", views[1].ID)
	assert.Equal(t, "SUBMITTED", views[1].Status)
	assert.False(t, views[1].Overdue)
	assert.True(t, views[1].SubmittedAt.Time.Equal(time.Date(2026, 10, 3, 16, 45, 0, 0, time.UTC)))
}

func TestAssignmentAPI(t *testing.T) {
	f := setup(t)
	f.login(t, "admin-1")

	rec := f.do(t, http.MethodPost, "/v1/assignments", `{"title":" ","description":"x","dueDate":"11/05/2026","assignedTo":["student-1"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "dueDate")

	var created struct {
		Result   assignment.Assignment `json:"result"`
		Snapshot tracker.Snapshot      `json:"snapshot"`
	}
	rec = f.do(t, http.MethodPost, "/v1/assignments", `{"title":"Quiz","description":"Short quiz","dueDate":"2026-11-01","assignedTo":["student-1","student-2"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &created)
	assert.Equal(t, "admin-1", created.Result.CreatedBy)
	assert.Len(t, created.Snapshot.Assignments, 4)

	t.Run("instructor sees own", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/assignments?ordering=title", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var asgs []assignment.Assignment
		decode(t, rec, &asgs)
		require.Len(t, asgs, 3)
		assert.Equal(t, []string{"Lab Report: Titration", "Linear Algebra Problem Set 1", "Quiz"},
			[]string{asgs[0].Title, asgs[1].Title, asgs[2].Title})
	})

	t.Run("roster", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/assignments/assign-1/roster", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var roster []progress.RosterEntry
		decode(t, rec, &roster)
		require.Len(t, roster, 3)
		assert.Equal(t, "student-1", roster[0].StudentID)
		assert.True(t, roster[0].Submitted)
	})

	f.run(t, []httpTest{
		{
			name: "update", method: http.MethodPut, path: "/v1/assignments/" + created.Result.ID, body: `{"title":"Quiz 1"}`,
			wantCode: http.StatusOK,
		},
		{
			name: "update blank title", method: http.MethodPut, path: "/v1/assignments/" + created.Result.ID, body: `{"title":""}`,
			wantCode: http.StatusBadRequest, wantData: `{"title":"this field cannot be blank"}`,
		},
		{name: "not the owner", method: http.MethodDelete, path: "/v1/assignments/assign-2", wantCode: http.StatusForbidden},
		{name: "unknown", method: http.MethodDelete, path: "/v1/assignments/nope", wantCode: http.StatusNotFound},
		{name: "instructors cannot submit", method: http.MethodPost, path: "/v1/assignments/assign-1/submit", wantCode: http.StatusForbidden},
		{name: "instructors have no student progress", method: http.MethodGet, path: "/v1/progress", wantCode: http.StatusForbidden},
	})

	var deleted struct {
		Snapshot tracker.Snapshot `json:"snapshot"`
	}
	rec = f.do(t, http.MethodDelete, "/v1/assignments/assign-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &deleted)
	assert.Len(t, deleted.Snapshot.Assignments, 3)
	for _, s := range deleted.Snapshot.Submissions {
		assert.NotEqual(t, "assign-1", s.AssignmentID)
	}
}

func TestServer_storageUnavailable(t *testing.T) {
	f := setup(t)
	f.db.FailWith(assert.AnError)

	rec := f.do(t, http.MethodPost, "/v1/session/login", `{"userId":"student-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var herr httpErr
	decode(t, rec, &herr)
	assert.Equal(t, "storage unavailable", herr.Error)

	f.db.FailWith(nil)
	f.login(t, "student-1")
}

func TestServer_live(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.app)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/live", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, LiveMessage{Type: "connected"}, msg)

	f.login(t, "student-2")
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, LiveMessage{Type: "changed", Event: tracker.EventSession}, msg)

	_ = f.do(t, http.MethodPost, "/v1/assignments/assign-1/submit", "")
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, LiveMessage{Type: "changed", Event: tracker.EventSubmissions}, msg)
}
