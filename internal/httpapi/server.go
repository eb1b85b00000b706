// Package httpapi implements the proxy's HTTP route surface (spec.md §6)
// on a plain net/http.ServeMux, following the teacher's internal/server
// package style: no third-party router, method-aware Go 1.22+ patterns,
// and a single middleware chain for auth, metrics, and error translation.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kbatch-dev/kbatch-proxy/internal/appctx"
)

// Server serves the kbatch-proxy HTTP API out of app.
type Server struct {
	mux *http.ServeMux
	app *appctx.AppContext
}

// NewServer builds a Server with every route from spec.md §6 registered.
func NewServer(app *appctx.AppContext) *Server {
	s := &Server{mux: http.NewServeMux(), app: app}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	prefix := s.app.Config.KbatchPrefix
	mux := s.mux

	mux.HandleFunc("GET "+prefix+"/{$}", s.withMetrics("root", s.handleRoot))
	mux.HandleFunc("GET "+prefix+"/authorized", s.withMetrics("authorized", s.requireAuth(s.handleAuthorized)))
	mux.HandleFunc("GET "+prefix+"/profiles/", s.withMetrics("profiles", s.handleProfiles))

	mux.HandleFunc("POST "+prefix+"/jobs/", s.withMetrics("submit_job", s.requireAuth(s.handleSubmitJob)))
	mux.HandleFunc("GET "+prefix+"/jobs/", s.withMetrics("list_jobs", s.requireAuth(s.handleListJobs)))
	mux.HandleFunc("GET "+prefix+"/jobs/logs/{name}/", s.withMetrics("job_logs", s.requireAuth(s.handleJobLogs)))
	mux.HandleFunc("GET "+prefix+"/jobs/{name}", s.withMetrics("read_job", s.requireAuth(s.handleReadJob)))
	mux.HandleFunc("DELETE "+prefix+"/jobs/{name}", s.withMetrics("delete_job", s.requireAuth(s.handleDeleteJob)))

	mux.HandleFunc("POST "+prefix+"/cronjobs/", s.withMetrics("submit_cronjob", s.requireAuth(s.handleSubmitCronJob)))
	mux.HandleFunc("GET "+prefix+"/cronjobs/", s.withMetrics("list_cronjobs", s.requireAuth(s.handleListCronJobs)))
	mux.HandleFunc("GET "+prefix+"/cronjobs/{name}", s.withMetrics("read_cronjob", s.requireAuth(s.handleReadCronJob)))
	mux.HandleFunc("DELETE "+prefix+"/cronjobs/{name}", s.withMetrics("delete_cronjob", s.requireAuth(s.handleDeleteCronJob)))

	mux.HandleFunc("GET "+prefix+"/pods/", s.withMetrics("list_pods", s.requireAuth(s.handleListPods)))
	mux.HandleFunc("GET "+prefix+"/pods/logs/{name}/", s.withMetrics("pod_logs", s.requireAuth(s.handlePodLogs)))
	mux.HandleFunc("GET "+prefix+"/pods/{name}", s.withMetrics("read_pod", s.requireAuth(s.handleReadPod)))
}

// requireAuth authenticates the inbound request and injects the resolved
// User into the request context, failing closed with the classified error
// (401/403) on any authentication problem.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.app.Authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(contextWithUser(r.Context(), user)))
	}
}

// withMetrics records a request counter and duration histogram for
// operation, if metrics are configured.
func (s *Server) withMetrics(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.app.Metrics == nil {
			next(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.app.Metrics.ObserveRequest(operation, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}

// statusRecorder captures the response status code while still forwarding
// http.Flusher, needed for chunked log streaming (P10).
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
