package httpapi

import "net/http"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "kbatch"})
}

func (s *Server) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":   user.Name,
		"groups": user.Groups,
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Profiles.All())
}
