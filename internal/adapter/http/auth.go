package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/auth"
)

func (s *Server) registerAuth(r *mux.Router) {
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/session", s.handleSession).Methods(http.MethodGet)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (s *Server) currentAdmin(r *http.Request) (auth.Session, error) {
	token := bearerToken(r)
	if token == "" {
		return auth.Session{}, auth.ErrNoSession
	}
	return s.deps.Auth.Current(token)
}

// requireAdmin rejects requests without a current admin session and tags the
// request context with the admin's email.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.currentAdmin(r)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(admin.WithActor(r.Context(), sess.Email)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	sess, err := s.deps.Auth.SignIn(req.Email, req.Password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.SignOut(bearerToken(r)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentAdmin(r)
	if err != nil {
		writeJSON(w, http.StatusOK, sessionStatus{})
		return
	}
	writeJSON(w, http.StatusOK, sessionStatus{Authenticated: true, Email: sess.Email, ExpiresAt: &sess.ExpiresAt})
}
