package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/celulas/locator/internal/store"
)

func (s *Server) registerAdmin(r *mux.Router) {
	r.HandleFunc("/groups", s.handleAdminListGroups).Methods(http.MethodGet)
	r.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	r.HandleFunc("/groups/{id}", s.handleGetGroup).Methods(http.MethodGet)
	r.HandleFunc("/groups/{id}", s.handleUpdateGroup).Methods(http.MethodPut)
	r.HandleFunc("/groups/{id}", s.handleDeleteGroup).Methods(http.MethodDelete)

	r.HandleFunc("/supervisors", s.handleListSupervisors).Methods(http.MethodGet)
	r.HandleFunc("/supervisors", s.handleCreateSupervisor).Methods(http.MethodPost)
	r.HandleFunc("/supervisors/{id}", s.handleUpdateSupervisor).Methods(http.MethodPut)
	r.HandleFunc("/supervisors/{id}", s.handleDeleteSupervisor).Methods(http.MethodDelete)

	r.HandleFunc("/coordinators", s.handleListCoordinators).Methods(http.MethodGet)
	r.HandleFunc("/coordinators", s.handleCreateCoordinator).Methods(http.MethodPost)
	r.HandleFunc("/coordinators/{id}", s.handleUpdateCoordinator).Methods(http.MethodPut)
	r.HandleFunc("/coordinators/{id}", s.handleDeleteCoordinator).Methods(http.MethodDelete)

	r.HandleFunc("/geocode", s.handleAdminGeocode).Methods(http.MethodPost)
	r.HandleFunc("/postal/{cep}", s.handlePostal).Methods(http.MethodGet)
}

func (s *Server) handleAdminListGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.deps.Admin.ListGroups(q.Get("q"), q.Get("category")))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	g, err := s.deps.Admin.GetGroup(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var g store.GroupRecord
	if err := decodeJSON(w, r, &g); err != nil {
		s.writeErr(w, r, err)
		return
	}
	g.ID = 0
	created, err := s.deps.Admin.CreateGroup(r.Context(), g)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var g store.GroupRecord
	if err := decodeJSON(w, r, &g); err != nil {
		s.writeErr(w, r, err)
		return
	}
	g.ID = id
	updated, err := s.deps.Admin.UpdateGroup(r.Context(), g)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.deps.Admin.DeleteGroup)
}

func (s *Server) handleListSupervisors(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Admin.ListSupervisors(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []store.SupervisorRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSupervisor(w http.ResponseWriter, r *http.Request) {
	var rec store.SupervisorRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeErr(w, r, err)
		return
	}
	rec.ID = 0
	created, err := s.deps.Admin.CreateSupervisor(r.Context(), rec)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSupervisor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var rec store.SupervisorRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeErr(w, r, err)
		return
	}
	rec.ID = id
	updated, err := s.deps.Admin.UpdateSupervisor(r.Context(), rec)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSupervisor(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.deps.Admin.DeleteSupervisor)
}

func (s *Server) handleListCoordinators(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Admin.ListCoordinators(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []store.CoordinatorRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCoordinator(w http.ResponseWriter, r *http.Request) {
	var rec store.CoordinatorRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeErr(w, r, err)
		return
	}
	rec.ID = 0
	created, err := s.deps.Admin.CreateCoordinator(r.Context(), rec)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCoordinator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var rec store.CoordinatorRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeErr(w, r, err)
		return
	}
	rec.ID = id
	updated, err := s.deps.Admin.UpdateCoordinator(r.Context(), rec)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCoordinator(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.deps.Admin.DeleteCoordinator)
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, id int64) error) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type geocodeRequest struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
}

func (s *Server) handleAdminGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.Admin.GeocodeAddress(r.Context(), req.Street, req.Number, req.Neighborhood)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePostal(w http.ResponseWriter, r *http.Request) {
	addr, err := s.deps.Admin.LookupPostal(r.Context(), mux.Vars(r)["cep"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}
