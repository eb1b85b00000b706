package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
)

// errorBody is the uniform error response shape (spec.md §6/§7):
// {status, detail}.
type errorBody struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func translate(err error) (int, errorBody) {
	status := kerr.KindOf(err).HTTPStatus()
	return status, errorBody{Status: status, Detail: kerr.MessageOf(err)}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := translate(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
