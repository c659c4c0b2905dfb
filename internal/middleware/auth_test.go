package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
)

func setupAuthRouter(verifier *mocks.TokenVerifierMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(verifier), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt(UserIDKey)})
	})
	return r
}

func TestAuthMissingHeader(t *testing.T) {
	verifier := new(mocks.TokenVerifierMock)
	router := setupAuthRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	verifier.AssertNotCalled(t, "Verify")
}

func TestAuthMalformedHeader(t *testing.T) {
	verifier := new(mocks.TokenVerifierMock)
	router := setupAuthRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	verifier.AssertNotCalled(t, "Verify")
}

func TestAuthInvalidToken(t *testing.T) {
	verifier := new(mocks.TokenVerifierMock)
	router := setupAuthRouter(verifier)

	verifier.On("Verify", mock.Anything, "bad").Return(0, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	verifier.AssertExpectations(t)
}

func TestAuthSetsUserID(t *testing.T) {
	verifier := new(mocks.TokenVerifierMock)
	router := setupAuthRouter(verifier)

	verifier.On("Verify", mock.Anything, "good").Return(42, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":42`)
	verifier.AssertExpectations(t)
}
