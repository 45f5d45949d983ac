package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/aizadzidi/tasmik-windsurf-sub000/apps/api/echo"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
	"github.com/aizadzidi/tasmik-windsurf-sub000/services/logger"
	"github.com/aizadzidi/tasmik-windsurf-sub000/storage/database/inmem"
	"github.com/aizadzidi/tasmik-windsurf-sub000/tests"
)

var (
	teacher = core.Identity{ID: "t1", Name: "Cikgu Farah"}
	other   = core.Identity{ID: "t2", Name: "Cikgu Hafiz"}
	admin   = core.Identity{ID: "a1", Name: "Admin", IsAdmin: true}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testApp struct {
	*Server
	conf  *core.Config
	db    *inmemdb.DB
	sched *session.ManualScheduler
}

func setup(t *testing.T) *testApp {
	conf := testutil.Config()
	db := testutil.OpenDB(t)
	testutil.SeedExam(db)
	sched := session.NewManualScheduler()
	validate, translator := testutil.NewValidator()

	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logsvc.NewDiscardLogger(),
		Repo:           inmemdb.NewExamRepository(db),
		Validate:       validate,
		Translator:     translator,
		Scheduler:      sched,
		DisableReqLogs: true,
	})
	return &testApp{Server: srv, conf: conf, db: db, sched: sched}
}

type httpErr struct {
	Error string `json:"error"`
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

func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, id core.Identity) string {
	token, err := GenerateToken(GetTeacherClaims(id, conf), conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

// openSession opens a dashboard session for `id` and returns its path.
func (app *testApp) openSession(t *testing.T, token string) string {
	rec := app.do(http.MethodPost, "/v1/sessions", token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("openSession(): code = %v; body %s", rec.Code, rec.Body.String())
	}
	var resp OpenSessionResponse
	decode(t, rec, &resp)
	return "/v1/sessions/" + resp.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
