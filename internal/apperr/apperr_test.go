package apperr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradeduel/match-engine/internal/apperr"
)

func TestKindMatching(t *testing.T) {
	err := apperr.NotFound("match %s not found", "m1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "m1")
}

func TestWrappedCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Persistence(cause, "upsert match")
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.NotFound("missing"), http.StatusNotFound},
		{apperr.Conflict("busy"), http.StatusConflict},
		{apperr.Authorization("nope"), http.StatusForbidden},
		{apperr.InsufficientBalance("broke"), http.StatusUnprocessableEntity},
		{apperr.InsufficientPosition("short"), http.StatusUnprocessableEntity},
		{apperr.Persistence(errors.New("db"), "write"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, apperr.HTTPStatus(c.err), "error: %v", c.err)
	}
}
