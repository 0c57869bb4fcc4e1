package auth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/postpulse/logger"
)

type loginRequest struct {
	Password string `json:"password"`
	Next     string `json:"next"`
}

type loginResponse struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// localPath keeps redirects on this host.
func localPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}

// HandleLogin checks the admin password and sets the session cookie.
// Form posts are redirected to next (or back to /login?error=1); JSON
// callers get a JSON body.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.AdminConfigured() {
		writeError(w, http.StatusServiceUnavailable, ErrAdminNotConfigured.Error())
		return
	}

	var req loginRequest
	jsonBody := isJSON(r)
	if jsonBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Request body must be an object.")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form body.")
			return
		}
		req.Password = r.PostForm.Get("password")
		req.Next = r.PostForm.Get("next")
	}
	next := localPath(req.Next)

	if !s.CheckPassword(req.Password) {
		s.log.Infow("Admin login failed", logger.FieldPath, r.URL.Path)
		if jsonBody {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		q := url.Values{"error": {"1"}, "next": {next}}
		http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
		return
	}

	token, expires, err := s.IssueSession()
	if err != nil {
		s.log.Errorw("Failed to issue admin session", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Failed to create session.")
		return
	}
	http.SetCookie(w, s.sessionCookie(token, expires))

	if jsonBody {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginResponse{OK: true, ExpiresAt: expires.UTC()})
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
func (s *Service) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessionCookie("", time.Time{}))
	if isJSON(r) || r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
