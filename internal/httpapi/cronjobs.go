package httpapi

import (
	"net/http"

	batchv1 "k8s.io/api/batch/v1"
)

func (s *Server) handleListCronJobs(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	cronjobs, err := s.app.Client.ListCronJobs(r.Context(), user.Namespace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsEnvelope{Items: cronJobsToAny(cronjobs)})
}

func (s *Server) handleReadCronJob(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	cj, err := s.app.Client.ReadCronJob(r.Context(), user.Namespace, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cj)
}

func (s *Server) handleDeleteCronJob(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := s.app.Client.DeleteCronJob(r.Context(), user.Namespace, r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

func cronJobsToAny(cronjobs []batchv1.CronJob) []interface{} {
	out := make([]interface{}, len(cronjobs))
	for i := range cronjobs {
		out[i] = &cronjobs[i]
	}
	return out
}
