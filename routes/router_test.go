package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/models"
	"github.com/cppla/pacts/testutil"
	"github.com/cppla/pacts/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	issuer *utils.TokenIssuer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)
	issuer := utils.NewTokenIssuer("router-test-secret", time.Hour)
	r := SetupRouter(Deps{
		Config: config.AppConfig{
			GinMode:            "test",
			OAuthRedirectBase:  "http://localhost:8080",
			GitHubClientID:     "gh-id",
			GitHubClientSecret: "gh-secret",
			SessionTTLHours:    1,
		},
		DB:     db,
		Issuer: issuer,
	})
	return &testApp{t: t, db: db, router: r, issuer: issuer}
}

func (a *testApp) tokenFor(u *models.User) string {
	a.t.Helper()
	tok, _, err := a.issuer.Issue(u.ID, *u.Username, u.Name, u.Image)
	require.NoError(a.t, err)
	return tok
}

func (a *testApp) do(method, path, token, body string) (int, envelope) {
	a.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

type toggleBody struct {
	CheckInID uint  `json:"check_in_id"`
	PactID    uint  `json:"pact_id"`
	Kudoed    bool  `json:"kudoed"`
	Count     int64 `json:"kudo_count"`
}

func TestKudoToggleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "author")
	alice := testutil.CreateUser(t, app.db, "alice")
	pact := testutil.CreatePact(t, app.db, author)
	ci := testutil.CreateCheckIn(t, app.db, pact, time.Now())
	path := fmt.Sprintf("/api/v1/checkins/%d/kudo", ci.ID)
	aliceToken := app.tokenFor(alice)

	status, env := app.do(http.MethodPost, path, aliceToken, fmt.Sprintf(`{"pact_id": %d}`, pact.ID))
	require.Equal(t, http.StatusOK, status, env.Message)
	var res toggleBody
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, toggleBody{CheckInID: ci.ID, PactID: pact.ID, Kudoed: true, Count: 1}, res)

	// pact page shows the kudo to alice but not to anonymous viewers
	status, env = app.do(http.MethodGet, fmt.Sprintf("/api/v1/pacts/%d", pact.ID), aliceToken, "")
	require.Equal(t, http.StatusOK, status)
	var page struct {
		CheckIns []struct {
			ID        uint  `json:"id"`
			KudoCount int64 `json:"kudo_count"`
			HasKudoed bool  `json:"has_kudoed"`
		} `json:"check_ins"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.CheckIns, 1)
	assert.Equal(t, int64(1), page.CheckIns[0].KudoCount)
	assert.True(t, page.CheckIns[0].HasKudoed)

	_, env = app.do(http.MethodGet, fmt.Sprintf("/api/v1/pacts/%d", pact.ID), "", "")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.False(t, page.CheckIns[0].HasKudoed)

	// no body, pact id in the query
	status, env = app.do(http.MethodPost, fmt.Sprintf("%s?pact_id=%d", path, pact.ID), aliceToken, "")
	require.Equal(t, http.StatusOK, status, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Kudoed)
	assert.Equal(t, int64(0), res.Count)
	assert.Equal(t, int64(0), testutil.CountKudoRows(t, app.db, ci.ID))
}

func TestKudoToggleErrorsOverHTTP(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "author")
	alice := testutil.CreateUser(t, app.db, "alice")
	pact := testutil.CreatePact(t, app.db, author)
	other := testutil.CreatePact(t, app.db, author)
	ci := testutil.CreateCheckIn(t, app.db, pact, time.Now())
	path := fmt.Sprintf("/api/v1/checkins/%d/kudo", ci.ID)

	cases := []struct {
		name   string
		path   string
		token  string
		body   string
		status int
		code   int
	}{
		{"anonymous", path, "", "", http.StatusUnauthorized, 40101},
		{"own check-in", path, app.tokenFor(author), "", http.StatusForbidden, 40301},
		{"unknown check-in", "/api/v1/checkins/99999/kudo", app.tokenFor(alice), "", http.StatusNotFound, 40403},
		{"bad id", "/api/v1/checkins/abc/kudo", app.tokenFor(alice), "", http.StatusBadRequest, 40001},
		{"wrong pact", path, app.tokenFor(alice), fmt.Sprintf(`{"pact_id": %d}`, other.ID), http.StatusBadRequest, 40040},
		{"bad json", path, app.tokenFor(alice), `{"pact_id":`, http.StatusBadRequest, 40030},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := app.do(http.MethodPost, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, env.Code)
		})
	}
	assert.Equal(t, int64(0), testutil.CountKudoRows(t, app.db, ci.ID))
}

func TestPactLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "author")
	stranger := testutil.CreateUser(t, app.db, "stranger")
	token := app.tokenFor(author)

	deadline := time.Now().Add(10 * 24 * time.Hour).Format(time.DateOnly)
	status, env := app.do(http.MethodPost, "/api/v1/pacts", token,
		fmt.Sprintf(`{"title": "Ship the app", "deadline": %q, "tags": "go, launch"}`, deadline))
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created struct {
		ID   uint     `json:"id"`
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, []string{"#go", "#launch"}, created.Tags)

	status, env = app.do(http.MethodPost, "/api/v1/pacts", token, `{"title": "x", "deadline": "2030-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40020, env.Code)

	checkins := fmt.Sprintf("/api/v1/pacts/%d/checkins", created.ID)
	status, _ = app.do(http.MethodPost, checkins, token, `{"content": "day one", "status": "on_track"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, env = app.do(http.MethodPost, checkins, app.tokenFor(stranger), `{"content": "hijack"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 40301, env.Code)

	status, env = app.do(http.MethodPost, "/api/v1/pacts/9999/checkins", token, `{"content": "x"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40402, env.Code)

	status, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/v1/pacts/%d/complete", created.ID), token, "")
	assert.Equal(t, http.StatusOK, status)

	status, env = app.do(http.MethodGet, fmt.Sprintf("/api/v1/pacts/%d", created.ID), "", "")
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Pact struct {
			State string `json:"state"`
		} `json:"pact"`
		CheckIns []json.RawMessage `json:"check_ins"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, "completed", page.Pact.State)
	assert.Len(t, page.CheckIns, 1)

	status, env = app.do(http.MethodGet, "/api/v1/feed", "", "")
	require.Equal(t, http.StatusOK, status)
	var feed struct {
		CheckIns []json.RawMessage `json:"check_ins"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	assert.Len(t, feed.CheckIns, 1)

	status, _ = app.do(http.MethodGet, "/api/v1/users/"+*author.Username, "", "")
	assert.Equal(t, http.StatusOK, status)
	status, env = app.do(http.MethodGet, "/api/v1/users/nobody", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40401, env.Code)

	status, env = app.do(http.MethodGet, "/api/v1/stats", "", "")
	require.Equal(t, http.StatusOK, status)
	var st struct {
		Users    int64 `json:"users"`
		CheckIns int64 `json:"check_ins"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, int64(2), st.Users)
	assert.Equal(t, int64(1), st.CheckIns)
}

func TestSessionEndpoints(t *testing.T) {
	app := newTestApp(t)
	alice := testutil.CreateUser(t, app.db, "alice")
	token := app.tokenFor(alice)

	status, env := app.do(http.MethodGet, "/api/v1/auth/me", token, "")
	require.Equal(t, http.StatusOK, status)
	var me struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, alice.ID, me.ID)

	status, _ = app.do(http.MethodPost, "/api/v1/auth/logout", token, "")
	require.Equal(t, http.StatusOK, status)

	status, env = app.do(http.MethodGet, "/api/v1/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40104, env.Code)
}

func TestOAuthEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, env := app.do(http.MethodGet, "/api/v1/auth/oauth/github/login", "", "")
	require.Equal(t, http.StatusOK, status)
	var login struct {
		URL   string `json:"authorization_url"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Contains(t, login.URL, "github.com")
	assert.Contains(t, login.URL, "state="+login.State)

	status, env = app.do(http.MethodGet, "/api/v1/auth/oauth/google/login", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40004, env.Code)

	status, env = app.do(http.MethodGet, "/api/v1/auth/oauth/github/callback?code=c&state=forged", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40006, env.Code)
}

func TestHealthAndNoRoute(t *testing.T) {
	app := newTestApp(t)

	status, env := app.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)

	status, env = app.do(http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}
