package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "nil error has no kind",
			err:  nil,
			want: "",
		},
		{
			name: "classified error",
			err:  E(KindNotFound, "station missing"),
			want: KindNotFound,
		},
		{
			name: "classified error wrapped with fmt",
			err:  fmt.Errorf("lookup: %w", E(KindInvalidInput, "bad latitude")),
			want: KindInvalidInput,
		},
		{
			name: "unclassified error defaults to internal failure",
			err:  errors.New("boom"),
			want: KindInternalFailure,
		},
		{
			name: "wrap preserves outer kind",
			err:  Wrap(KindDependencyUnavailable, errors.New("dial tcp: refused"), "state store"),
			want: KindDependencyUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input maps to 400", E(KindInvalidInput, "x"), http.StatusBadRequest},
		{"not found maps to 404", NotFound("station", "ST_999"), http.StatusNotFound},
		{"dependency unavailable maps to 503", E(KindDependencyUnavailable, "x"), http.StatusServiceUnavailable},
		{"overload maps to 429", E(KindOverload, "x"), http.StatusTooManyRequests},
		{"internal failure maps to 500", E(KindInternalFailure, "x"), http.StatusInternalServerError},
		{"unclassified maps to 500", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestInvalidCarriesFields(t *testing.T) {
	err := Invalid("validation failed", map[string]string{
		"lat":   "must be within [-90, 90]",
		"limit": "must be within [1, 20]",
	})

	assert.Equal(t, KindInvalidInput, KindOf(err))
	fields := FieldsOf(err)
	assert.Len(t, fields, 2)
	assert.Contains(t, fields["lat"], "[-90, 90]")

	// Fields survive fmt wrapping.
	wrapped := fmt.Errorf("recommend: %w", err)
	assert.Equal(t, fields, FieldsOf(wrapped))
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindDependencyUnavailable, cause, "bus publish")

	assert.True(t, errors.Is(err, cause))
	assert.EqualError(t, err, "bus publish: connection reset")
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("recommendation", "req-42")
	assert.EqualError(t, err, `recommendation "req-42" not found`)
}
