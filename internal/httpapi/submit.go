package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
	"github.com/kbatch-dev/kbatch-proxy/internal/patcher"
	"github.com/kbatch-dev/kbatch-proxy/internal/submitter"
	"github.com/kbatch-dev/kbatch-proxy/internal/templatemerge"
	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, workload.KindJob)
}

func (s *Server) handleSubmitCronJob(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, workload.KindCronJob)
}

// handleSubmit runs the full materialization-and-submission pipeline
// (spec.md's "core"): parse, merge against the admin template, patch
// identity/namespace/env/secret/code, then submit the ResourceGroup.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, kind workload.Kind) {
	user := userFromContext(r.Context())

	body, err := s.readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, kerr.MalformedWorkloadf("invalid JSON body: %v", err))
		return
	}

	if tpl := s.app.Config.JobTemplate; tpl != nil {
		if jobField, ok := raw["job"]; ok {
			raw["job"] = templatemerge.Merge(jobField, tpl)
		}
	}

	var sub *workload.Submission
	if kind == workload.KindCronJob {
		sub, err = workload.ParseCronJob(raw)
	} else {
		sub, err = workload.ParseJob(raw)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if sub.Code != nil {
		if n := int64(len(sub.Code.BinaryData["code"])); n > s.app.Config.KbatchJobMaxCodeBytes {
			writeError(w, kerr.New(kerr.TooLarge, "code blob exceeds configured maximum"))
			return
		}
	}

	opts := submitter.Options{
		Patcher: patcher.Options{
			Username:                user.Name,
			Namespace:               user.Namespace,
			APIToken:                user.APIToken,
			ExtraEnv:                s.app.Config.KbatchJobExtraEnv,
			TTLSecondsAfterFinished: s.app.Config.KbatchJobTTLSecondsAfterFinished,
		},
		CreateNamespace: s.app.Config.KbatchCreateUserNamespace,
	}

	result, err := submitter.Submit(r.Context(), s.app.Client, sub, opts, s.app.Logger)
	if err != nil {
		if s.app.Metrics != nil {
			s.app.Metrics.ObserveSubmitFailure(kind.String())
		}
		writeError(w, err)
		return
	}

	if kind == workload.KindCronJob {
		writeJSON(w, http.StatusOK, result.CronJob)
	} else {
		writeJSON(w, http.StatusOK, result.Job)
	}
}

// readBody bounds the request body read at roughly twice the configured
// code-blob cap (base64 inflates size by ~4/3) plus slack for JSON
// structure, rejecting oversized submissions with 413 before ever touching
// the cluster (§5).
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	limit := s.app.Config.KbatchJobMaxCodeBytes*2 + 65536

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, kerr.Wrap(kerr.MalformedWorkload, "failed to read request body", err)
	}
	if int64(len(body)) > limit {
		return nil, kerr.New(kerr.TooLarge, "request body exceeds configured maximum")
	}
	return body, nil
}
