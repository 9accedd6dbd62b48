package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/suggest"
)

func (s *Server) registerPublic(r *mux.Router) {
	r.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/groups", s.handleGroups).Methods(http.MethodGet)
	r.HandleFunc("/geocode/search", s.handleGeocodeSearch).Methods(http.MethodGet)
	r.HandleFunc("/geocode/reverse", s.handleGeocodeReverse).Methods(http.MethodGet)
}

type categoriesResponse struct {
	Categories []domain.Category `json:"categories"`
	Default    string            `json:"default"`
	Days       []string          `json:"days"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories: domain.Categories(),
		Default:    domain.DefaultCategoryID,
		Days:       domain.DayTokens,
	})
}

type groupsResponse struct {
	Total int `json:"total"`
	domain.Presentation
}

// handleGroups is the stateless view: every selector comes from the query
// string. The privileged mode needs an admin session.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := queryPosition(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	mode := domain.ParseMode(q.Get("mode"))
	if mode == domain.ModePrivileged {
		if _, err := s.currentAdmin(r); err != nil {
			s.writeErr(w, r, err)
			return
		}
	}

	groups := s.deps.Groups.Query(domain.FilterState{
		Query:      q.Get("q"),
		CategoryID: q.Get("category"),
		DayToken:   q.Get("day"),
		Position:   pos,
		Mode:       mode,
	})
	writeJSON(w, http.StatusOK, groupsResponse{Total: len(groups), Presentation: domain.Present(groups, mode, pos)})
}

type suggestionsResponse struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
}

func (s *Server) handleGeocodeSearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Suggest.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.logger.Warn("geocode search failed", "error", err)
		writeError(w, http.StatusBadGateway, suggest.NoticeLookupFailed)
		return
	}
	if res == nil {
		res = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: res})
}

func (s *Server) handleGeocodeReverse(w http.ResponseWriter, r *http.Request) {
	pos, err := queryPosition(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if pos == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	res, err := s.deps.Suggest.Reverse(r.Context(), *pos)
	if err != nil {
		s.logger.Warn("reverse geocode failed", "error", err)
		writeError(w, http.StatusBadGateway, suggest.NoticeLookupFailed)
		return
	}
	if res.Label == "" {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
