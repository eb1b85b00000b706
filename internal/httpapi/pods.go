package httpapi

import (
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/cluster"
	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
)

func (s *Server) handleListPods(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	opts := cluster.ListOptions{}
	if jobName := r.URL.Query().Get("job_name"); jobName != "" {
		opts.LabelSelector = "job-name=" + jobName
	}

	pods, err := s.app.Client.ListPods(r.Context(), user.Namespace, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsEnvelope{Items: podsToAny(pods)})
}

func (s *Server) handleReadPod(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	pod, err := s.app.Client.ReadPod(r.Context(), user.Namespace, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func podsToAny(pods []corev1.Pod) []interface{} {
	out := make([]interface{}, len(pods))
	for i := range pods {
		out[i] = &pods[i]
	}
	return out
}

// resolveJobPod finds the first pod belonging to job name in namespace,
// using the cluster's standard "job-name" label (spec.md §6: "resolves
// Job → first pod").
func resolveJobPod(r *http.Request, client cluster.Client, namespace, jobName string) (*corev1.Pod, error) {
	pods, err := client.ListPods(r.Context(), namespace, cluster.ListOptions{LabelSelector: "job-name=" + jobName})
	if err != nil {
		return nil, err
	}
	if len(pods) == 0 {
		return nil, kerr.New(kerr.NotFound, fmt.Sprintf("no pod found for job %q", jobName))
	}
	return &pods[0], nil
}
