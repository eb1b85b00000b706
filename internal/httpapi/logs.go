package httpapi

import (
	"io"
	"net/http"
)

// handleJobLogs resolves name to its first pod, then relays its log
// (spec.md §6, §8 P10).
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	pod, err := resolveJobPod(r, s.app.Client, user.Namespace, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	s.relayLogs(w, r, user.Namespace, pod.Name)
}

func (s *Server) handlePodLogs(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	s.relayLogs(w, r, user.Namespace, r.PathValue("name"))
}

// relayLogs writes the named pod's log to w. With stream=false it's a
// single text/plain body; with stream=true it copies chunks to w as they
// arrive, flushing after each one, ending on upstream EOF or client
// disconnect — whichever comes first.
func (s *Server) relayLogs(w http.ResponseWriter, r *http.Request, namespace, podName string) {
	stream := r.URL.Query().Get("stream") == "true"

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if !stream {
		body, err := s.app.Client.ReadPodLog(r.Context(), namespace, podName)
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
		return
	}

	rc, err := s.app.Client.StreamPodLog(r.Context(), namespace, podName)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 4096)
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		n, readErr := rc.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return
		}
	}
}
