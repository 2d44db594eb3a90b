package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(CodeNotFound, "certificate not found")
	assert.Equal(t, "not_found: certificate not found", plain.Error())

	wrapped := Wrap(errors.New("row missing"), CodeNotFound, "certificate not found")
	assert.Equal(t, "not_found: certificate not found: row missing", wrapped.Error())
}

func TestWrapPreservesTheCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "store unreachable")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, CodeUnavailable))
	assert.False(t, Is(err, CodeNotFound))
}

func TestIsSeesThroughWrapping(t *testing.T) {
	inner := New(CodeConflict, "already issued")
	outer := fmt.Errorf("issue certificate: %w", inner)

	assert.True(t, Is(outer, CodeConflict))
	assert.False(t, Is(errors.New("plain"), CodeConflict))
	assert.False(t, Is(nil, CodeConflict))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeBadRequest, CodeOf(New(CodeBadRequest, "nope")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:  http.StatusBadRequest,
		CodeNotFound:    http.StatusNotFound,
		CodeConflict:    http.StatusConflict,
		CodeUnavailable: http.StatusServiceUnavailable,
		CodeInternal:    http.StatusInternalServerError,
		Code("unknown"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
