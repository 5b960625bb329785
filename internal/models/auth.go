package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterSchoolRequest creates a school account with its daily time configuration.
type RegisterSchoolRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Password        string `json:"password" validate:"required,min=6"`
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	LectureDuration int    `json:"lecture_duration" validate:"omitempty,min=1,max=480"`
	BreakStartTime  string `json:"break_start_time"`
	BreakDuration   int    `json:"break_duration" validate:"omitempty,min=0,max=240"`
}

// LoginRequest holds credentials for authenticating a school.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and school info.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int64      `json:"expires_in"`
	School      SchoolInfo `json:"school"`
	IssuedAt    time.Time  `json:"issued_at"`
}

// SchoolInfo describes the authenticated school in responses.
type SchoolInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	SchoolID   string `json:"school_id"`
	SchoolName string `json:"school_name"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}
