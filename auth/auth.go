// Package auth guards the admin UI and the cron endpoints.
//
// Admins log in with a single shared password (plain or bcrypt hash) and
// receive a signed session cookie. Cron callers present the cron secret as a
// bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/teranos/postpulse/am"
	"github.com/teranos/postpulse/errors"
)

// SessionCookie is the cookie that carries the admin session token.
const SessionCookie = "admin_session"

// ErrAdminNotConfigured is returned when no admin credential is set.
var ErrAdminNotConfigured = errors.Mark(errors.New("Admin password is not configured."), errors.ErrServiceUnavailable)

// Service checks admin and cron credentials.
type Service struct {
	password     string
	passwordHash []byte
	cronSecret   string
	jwt          *JWTManager
	secure       bool
	log          *zap.SugaredLogger
}

// NewService builds a Service from the server config. An unconfigured
// admin is not an error; RequireAdmin answers 503 until one is set.
func NewService(cfg am.ServerConfig, log *zap.SugaredLogger) (*Service, error) {
	s := &Service{
		password:     cfg.AdminPassword,
		passwordHash: []byte(cfg.AdminPasswordHash),
		cronSecret:   cfg.CronSecret,
		log:          log,
	}
	if cfg.AdminConfigured() || cfg.JWTSecret != "" {
		fallback := cfg.AdminPasswordHash
		if fallback == "" {
			fallback = cfg.AdminPassword
		}
		m, err := NewJWTManager(cfg.JWTSecret, fallback, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		s.jwt = m
	}
	return s, nil
}

// SetSecureCookies marks the session cookie Secure. Enable behind TLS.
func (s *Service) SetSecureCookies(secure bool) {
	s.secure = secure
}

// AdminConfigured reports whether a password or hash is set.
func (s *Service) AdminConfigured() bool {
	return s.password != "" || len(s.passwordHash) > 0
}

// CronConfigured reports whether a cron secret is set.
func (s *Service) CronConfigured() bool {
	return s.cronSecret != ""
}

// CheckPassword compares a candidate against the configured credential.
// The bcrypt hash wins when both are set.
func (s *Service) CheckPassword(candidate string) bool {
	if len(s.passwordHash) > 0 {
		return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(candidate)) == nil
	}
	if s.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.password)) == 1
}

// CheckCronBearer reports whether the Authorization header carries the
// cron secret. Always false when no secret is configured.
func (s *Service) CheckCronBearer(header string) bool {
	if s.cronSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+s.cronSecret)) == 1
}

// IssueSession signs a new admin session token.
func (s *Service) IssueSession() (string, time.Time, error) {
	if s.jwt == nil || !s.AdminConfigured() {
		return "", time.Time{}, ErrAdminNotConfigured
	}
	return s.jwt.Issue()
}

// ValidateSession checks a session token.
func (s *Service) ValidateSession(token string) error {
	if s.jwt == nil {
		return ErrAdminNotConfigured
	}
	if token == "" {
		return errors.Mark(errors.New("missing session token"), errors.ErrUnauthorized)
	}
	_, err := s.jwt.Validate(token)
	return err
}

// sessionToken reads the token from the session cookie, falling back to a
// bearer Authorization header for API clients.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Authenticated reports whether the request carries a valid admin session.
func (s *Service) Authenticated(r *http.Request) bool {
	return s.ValidateSession(sessionToken(r)) == nil
}

func (s *Service) sessionCookie(token string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	}
	if token == "" {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.Expires = expires
		c.MaxAge = int(time.Until(expires).Seconds())
	}
	return c
}
