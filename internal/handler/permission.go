package handler

import "net/http"

// RefreshPermissions handles POST /admin/permissions/refresh.
func (s *Server) RefreshPermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := s.permissions.Refresh(r.Context(), p); err != nil {
		serviceError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
