package server

import (
	"net/http"

	"smartimmo/pkg/domain"
)

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request, user domain.User) {
	favs, err := s.app.ListFavorites(r.Context(), user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

// handleAddFavorite answers 201 whether or not the favorite already existed.
func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request, user domain.User) {
	fav, _, err := s.app.AddFavorite(r.Context(), user, r.PathValue("propertyID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.RemoveFavorite(r.Context(), user, r.PathValue("propertyID")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
