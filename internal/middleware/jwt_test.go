package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type tokenValidatorStub struct{}

func (tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{SchoolID: "school-1", SchoolName: "SMA 1"}, nil
}

func newJWTRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/private", JWT(tokenValidatorStub{}), func(c *gin.Context) {
		c.String(http.StatusOK, SchoolClaims(c).SchoolID)
	})
	return router
}

func TestJWTAcceptsBearerToken(t *testing.T) {
	router := newJWTRouter()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-1", w.Body.String())
}

func TestJWTRejectsMissingOrInvalidToken(t *testing.T) {
	router := newJWTRouter()
	for _, header := range []string{"", "Token good", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}
