package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/teranos/postpulse/am"
	"github.com/teranos/postpulse/errors"
)

func newService(t *testing.T, cfg am.ServerConfig) *Service {
	t.Helper()
	s, err := NewService(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return s
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestCheckPassword(t *testing.T) {
	plain := newService(t, am.ServerConfig{AdminPassword: "hunter2"})
	assert.True(t, plain.CheckPassword("hunter2"))
	assert.False(t, plain.CheckPassword("hunter"))
	assert.False(t, plain.CheckPassword(""))

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := newService(t, am.ServerConfig{AdminPassword: "ignored", AdminPasswordHash: string(hash)})
	assert.True(t, hashed.CheckPassword("s3cret"))
	assert.False(t, hashed.CheckPassword("ignored"))

	none := newService(t, am.ServerConfig{})
	assert.False(t, none.AdminConfigured())
	assert.False(t, none.CheckPassword(""))
}

func TestCheckCronBearer(t *testing.T) {
	s := newService(t, am.ServerConfig{CronSecret: "tick"})
	assert.True(t, s.CheckCronBearer("Bearer tick"))
	assert.False(t, s.CheckCronBearer("Bearer tock"))
	assert.False(t, s.CheckCronBearer("tick"))

	unset := newService(t, am.ServerConfig{})
	assert.False(t, unset.CheckCronBearer("Bearer "))
	assert.False(t, unset.CheckCronBearer(""))
}

func TestSessionRoundTrip(t *testing.T) {
	s := newService(t, am.ServerConfig{AdminPassword: "pw", SessionTTL: time.Hour})

	token, expires, err := s.IssueSession()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)
	require.NoError(t, s.ValidateSession(token))

	err = s.ValidateSession(token + "x")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	assert.True(t, errors.Is(s.ValidateSession(""), errors.ErrUnauthorized))

	// rotating the password invalidates derived-key sessions
	rotated := newService(t, am.ServerConfig{AdminPassword: "pw2"})
	assert.True(t, errors.Is(rotated.ValidateSession(token), errors.ErrUnauthorized))
}

func TestSessionExpires(t *testing.T) {
	m, err := NewJWTManager("key", "", time.Minute)
	require.NoError(t, err)
	token, _, err := m.Issue()
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Validate(token)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestNewJWTManager_RequiresKey(t *testing.T) {
	_, err := NewJWTManager("", "", time.Hour)
	assert.Error(t, err)

	m, err := NewJWTManager("", "pw", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, m.TTL())
}

func TestRequireAdmin(t *testing.T) {
	s := newService(t, am.ServerConfig{AdminPassword: "pw"})
	h := s.RequireAdmin(ok)
	token, _, err := s.IssueSession()
	require.NoError(t, err)

	t.Run("no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/post-types", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/post-types", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/post-types", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("unconfigured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newService(t, am.ServerConfig{}).RequireAdmin(ok).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/post-types", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"error":"Admin password is not configured."}`, rec.Body.String())
	})
}

func TestRequireCron(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"valid", "tick", "Bearer tick", http.StatusTeapot},
		{"wrong", "tick", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "tick", "", http.StatusUnauthorized},
		{"no secret configured", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, am.ServerConfig{CronSecret: tt.secret})
			req := httptest.NewRequest(http.MethodPost, "/api/cron/run-posting", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.RequireCron(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleLogin_Form(t *testing.T) {
	s := newService(t, am.ServerConfig{AdminPassword: "pw"})

	rec := postForm(s.HandleLogin, url.Values{"password": {"pw"}, "next": {"/admin"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.NoError(t, s.ValidateSession(cookies[0].Value))

	rec = postForm(s.HandleLogin, url.Values{"password": {"bad"}, "next": {"/admin"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?error=1&next=%2Fadmin", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestHandleLogin_RejectsOffsiteNext(t *testing.T) {
	s := newService(t, am.ServerConfig{AdminPassword: "pw"})

	for _, next := range []string{"https://evil.example", "//evil.example", "/\\evil.example", ""} {
		rec := postForm(s.HandleLogin, url.Values{"password": {"pw"}, "next": {next}})
		assert.Equal(t, "/", rec.Header().Get("Location"), next)
	}
}

func TestHandleLogin_JSON(t *testing.T) {
	s := newService(t, am.ServerConfig{AdminPassword: "pw"})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.HandleLogin(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)

	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"no"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.HandleLogin(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogin_Unconfigured(t *testing.T) {
	rec := postForm(newService(t, am.ServerConfig{}).HandleLogin, url.Values{"password": {"x"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLogout(t *testing.T) {
	s := newService(t, am.ServerConfig{AdminPassword: "pw"})
	rec := httptest.NewRecorder()
	s.HandleLogout(rec, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
