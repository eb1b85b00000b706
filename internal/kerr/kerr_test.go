package kerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Unauthenticated, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{MalformedWorkload, http.StatusBadRequest},
		{TooLarge, http.StatusRequestEntityTooLarge},
		{Conflict, http.StatusConflict},
		{NotFound, http.StatusNotFound},
		{UpstreamUnavailable, http.StatusBadGateway},
		{Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(UpstreamUnavailable, "create job", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "create job")
}

func TestAs(t *testing.T) {
	base := New(NotFound, "job missing")
	wrapped := fmt.Errorf("handler failed: %w", base)

	found, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, NotFound, found.Kind)

	_, ok = As(errors.New("unrelated"))
	assert.False(t, ok)
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, NotFound, KindOf(New(NotFound, "gone")))
}

func TestMessageOfHidesWrappedCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp 10.0.0.5:443: connection refused")
	err := Wrap(UpstreamUnavailable, "create job", cause)

	assert.Equal(t, "create job", MessageOf(err))
	assert.NotContains(t, MessageOf(err), "10.0.0.5")
}

func TestMessageOfUnclassifiedIsGeneric(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("panic: nil pointer at internal/submitter.go:42")))
}
