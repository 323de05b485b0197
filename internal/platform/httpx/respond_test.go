package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrDuplicateEmail, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", shared.ErrDuplicateUsername), http.StatusBadRequest},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrValidation, http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, tc.status, StatusFor(tc.err))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("sql: password=hunter2"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Empty(t, body.Detail)
	assert.NotContains(t, rr.Body.String(), "hunter2")
}

func TestUnauthorizedSetsChallenge(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.ErrInvalidCredentials)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	assert.Equal(t, "x", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &target), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &target), shared.ErrValidation)
}

func TestFieldErrorsUsesJSONNames(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"full_name" validate:"max=3"`
	}
	v := NewValidator()

	fields := FieldErrors(v, payload{Email: "nope", Name: "toolong"})
	require.Len(t, fields, 2)
	assert.Equal(t, "value is not a valid email address", fields["email"])
	assert.Equal(t, "must be at most 3 characters", fields["full_name"])

	assert.Nil(t, FieldErrors(v, payload{Email: "a@b.co"}))
}
