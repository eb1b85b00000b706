package httpapi

import (
	"net/http"

	batchv1 "k8s.io/api/batch/v1"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	jobs, err := s.app.Client.ListJobs(r.Context(), user.Namespace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsEnvelope{Items: jobsToAny(jobs)})
}

func (s *Server) handleReadJob(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	job, err := s.app.Client.ReadJob(r.Context(), user.Namespace, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := s.app.Client.DeleteJob(r.Context(), user.Namespace, r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

type itemsEnvelope struct {
	Items []interface{} `json:"items"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func jobsToAny(jobs []batchv1.Job) []interface{} {
	out := make([]interface{}, len(jobs))
	for i := range jobs {
		out[i] = &jobs[i]
	}
	return out
}
