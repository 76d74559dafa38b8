package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrInvalidState, "request is not pending approval")
	require.Equal(t, "request is not pending approval", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom: %w", sql.ErrConnDone))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
}

func TestFromErrorFindsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrNotFound, "booking not found"))
	appErr := FromError(wrapped)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "booking not found", appErr.Message)
}
