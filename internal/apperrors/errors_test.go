package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindInvalidInput, KindOf(InvalidInput("bad")))
	require.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	require.Equal(t, KindForbidden, KindOf(Forbidden("nope")))
	require.Equal(t, KindUnavailable, KindOf(Unavailable("down", assert.AnError)))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
	require.Equal(t, KindUnavailable, KindOf(context.DeadlineExceeded))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", Forbidden("not a member"))
	require.Equal(t, KindForbidden, KindOf(err))
	require.Equal(t, "not a member", MessageOf(err))
}

func TestMessageOfHidesInternals(t *testing.T) {
	require.Equal(t, "internal error", MessageOf(errors.New("pq: duplicate key")))
	require.Equal(t, "store message failed", MessageOf(Internal("store message failed", assert.AnError)))
}

func TestFromStoreTimeout(t *testing.T) {
	err := FromStore("mark read", context.DeadlineExceeded)
	require.Equal(t, KindUnavailable, err.Kind)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = FromStore("mark read", assert.AnError)
	require.Equal(t, KindInternal, err.Kind)
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("bad")))
	require.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("missing")))
	require.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("nope")))
	require.Equal(t, http.StatusConflict, HTTPStatus(Conflict("dup")))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Unavailable("down", nil)))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestIsMatchesOnKind(t *testing.T) {
	err := Unavailable("user lookup failed", assert.AnError)
	require.True(t, errors.Is(err, &Error{Kind: KindUnavailable}))
	require.False(t, errors.Is(err, &Error{Kind: KindForbidden}))
}
