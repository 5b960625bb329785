package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/middleware"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// schoolIDFromContext returns the authenticated school id or an unauthorized error.
func schoolIDFromContext(c *gin.Context) (string, error) {
	claims := middleware.SchoolClaims(c)
	if claims == nil || claims.SchoolID == "" {
		return "", appErrors.ErrUnauthorized
	}
	return claims.SchoolID, nil
}
