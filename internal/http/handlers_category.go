package http

import (
	"encoding/json"
	"net/http"
)

type categoryPayload struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	categories, err := s.svc.Categories(r.Context(), userID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var payload categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeInput(payload.Name)
	if err := s.svc.CreateCategory(r.Context(), userID, name); err != nil {
		serviceError(w, r, err)
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, categoryPayload{Name: name})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	name := sanitizeInput(r.PathValue("name"))
	if err := s.svc.DeleteCategory(r.Context(), userID, name); err != nil {
		serviceError(w, r, err)
		return
	}

	s.invalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}
