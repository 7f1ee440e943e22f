package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/minerva/apps/api/echo"
	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
	emailsvc "github.com/trezcool/minerva/services/email"
	googlesvc "github.com/trezcool/minerva/services/google"
	sqlxrepos "github.com/trezcool/minerva/storage/database/sqlx"
	"github.com/trezcool/minerva/testutil"
)

const goodGoogleCode = "good-code"

type googleMock struct {
	profile user.GoogleProfile
}

func (g googleMock) Exchange(_ context.Context, code string) (user.GoogleProfile, error) {
	if code != goodGoogleCode {
		return user.GoogleProfile{}, googlesvc.ErrInvalidCode
	}
	return g.profile, nil
}

type testApp struct {
	server    *echoapi.Server
	conf      *core.Config
	usrRepo   user.Repository
	usrSvc    user.ServiceInterface
	courseSvc *course.Service
	mailSvc   *emailsvc.ConsoleServiceMock
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// newTestApp returns a Server backed by a fresh in-memory database.
func newTestApp(t *testing.T, limiter ...*echoapi.RateLimiter) testApp {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator, user.AllRoles)
	user.InitValidators(validate, translator)

	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	courseSvc := course.NewService(db, sqlxrepos.NewCourseRepository(db), usrRepo, mailSvc, conf)
	usrSvc := user.NewServiceMock(db, usrRepo, mailSvc, conf, courseSvc.ReleaseUsers)

	deps := echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		CourseSvc:  courseSvc,
		GoogleAuth: &googleMock{profile: user.GoogleProfile{
			Subject:    "google-42",
			Email:      "Grace@Example.com",
			Name:       "Grace Hopper",
			GivenName:  "Grace",
			FamilyName: "Hopper",
		}},
	}
	if len(limiter) > 0 {
		deps.RateLimiter = limiter[0]
	}

	return testApp{
		server:    echoapi.NewServer(deps),
		conf:      conf,
		usrRepo:   usrRepo,
		usrSvc:    usrSvc,
		courseSvc: courseSvc,
		mailSvc:   mailSvc,
	}
}

func (app testApp) createUser(t *testing.T, uname, role string, pwd ...string) user.User {
	var password string
	if len(pwd) > 0 {
		password = pwd[0]
	}
	return testutil.CreateUser(t, app.usrRepo, uname, uname, uname+"@example.com", password, role, true)
}

func (app testApp) token(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, app.conf), app.conf)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// do sends a request to the server. body is JSON encoded unless it is nil.
func (app testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type httpErr struct {
	Error string `json:"error"`
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	var he httpErr
	decode(t, rec, &he)
	return he.Error
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, rec.Code, rec.Body.String())
}
