package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrUnauthorized.WithCause(stderrors.New("db password leaked")))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "leaked")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}

func TestFromErrorUnwrapsAppError(t *testing.T) {
	wrapped := fmt.Errorf("controller: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, FromError(wrapped).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, FromError(stderrors.New("boom")).HTTPStatus)
}

func TestWithDetailCopies(t *testing.T) {
	d := ErrBadRequest.WithDetail("x")
	assert.Equal(t, "x", d.Detail)
	assert.Empty(t, ErrBadRequest.Detail)
}
