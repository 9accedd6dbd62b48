package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/view"
)

func (s *Server) registerSessions(r *mux.Router) {
	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{sid}/view", s.withSession(s.handleView)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{sid}/filters", s.withSession(s.handleFilters)).Methods(http.MethodPatch)
	r.HandleFunc("/sessions/{sid}/input", s.withSession(s.handleInput)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{sid}/suggestions/{n}", s.withSession(s.handleSelectSuggestion)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{sid}/position", s.withSession(s.handleSetPosition)).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{sid}/position", s.withSession(s.handleClearPosition)).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{sid}/notice", s.withSession(s.handleDismissNotice)).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{sid}/theme", s.withSession(s.handleSetTheme)).Methods(http.MethodPut)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *view.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Views.Get(mux.Vars(r)["sid"])
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		// Privileged sessions live only as long as the admin session that
		// opened them. The registry also closes them on sign-out events.
		if owner := sess.Owner(); owner != "" {
			if _, err := s.deps.Auth.Current(owner); err != nil {
				s.deps.Views.Revoke(owner)
				s.writeErr(w, r, view.ErrSessionNotFound)
				return
			}
		}
		h(w, r, sess)
	}
}

type createSessionRequest struct {
	ClientID string `json:"client_id"`
	Mode     string `json:"mode"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.writeErr(w, r, err)
		return
	}

	mode := domain.ParseMode(req.Mode)
	var owner string
	if mode == domain.ModePrivileged {
		admin, err := s.currentAdmin(r)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		owner = admin.Token
	}

	sess := s.deps.Views.Create(r.Context(), req.ClientID, mode, owner)
	writeJSON(w, http.StatusCreated, sess.Render())
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request, sess *view.Session) {
	writeJSON(w, http.StatusOK, sess.Render())
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request, sess *view.Session) {
	var patch view.FilterPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := sess.UpdateFilters(patch); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Render())
}

type inputRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request, sess *view.Session) {
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	sess.Input(req.Text)
	writeJSON(w, http.StatusAccepted, sess.Render())
}

func (s *Server) handleSelectSuggestion(w http.ResponseWriter, r *http.Request, sess *view.Session) {
	raw := mux.Vars(r)["n"]
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.writeErr(w, r, fmt.Errorf("%w: invalid suggestion index %q", errBadRequest, raw))
		return
	}
	if _, err := sess.SelectSuggestion(n); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Render())
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request, sess *view.Session) {
	var pos domain.Position
	if err := decodeJSON(w, r, &pos); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := sess.SetPosition(pos); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Render())
}

func (s *Server) handleClearPosition(w http.ResponseWriter, _ *http.Request, sess *view.Session) {
	sess.ClearPosition()
	writeJSON(w, http.StatusOK, sess.Render())
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, _ *http.Request, sess *view.Session) {
	sess.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request, sess *view.Session) {
	var req themeBody
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	theme, err := view.ParseTheme(req.Theme)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := sess.SetTheme(r.Context(), theme); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: string(sess.Theme())})
}
