package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/timeslot"
)

type authSchoolRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.School, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, school *models.School) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Audience          []string
}

// AuthService registers schools and issues access tokens.
type AuthService struct {
	repo      authSchoolRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authSchoolRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config}
}

// Register creates a school account with its daily time configuration.
func (s *AuthService) Register(ctx context.Context, req models.RegisterSchoolRequest) (*models.SchoolInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	school, err := buildSchool(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsername(ctx, school.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	school.PasswordHash = string(hash)

	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}

	s.logger.Info("school registered", zap.String("school_id", school.ID), zap.String("username", school.Username))
	return &models.SchoolInfo{ID: school.ID, Name: school.Name, Username: school.Username}, nil
}

// Login authenticates a school and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	school, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(school.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}

	accessToken, issuedAt, err := s.generateAccessToken(school)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		School: models.SchoolInfo{
			ID:       school.ID,
			Name:     school.Name,
			Username: school.Username,
		},
	}, nil
}

// ValidateToken parses and validates an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(school *models.School) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		SchoolID:   school.ID,
		SchoolName: school.Name,
		Username:   school.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   school.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}

func buildSchool(req models.RegisterSchoolRequest) (*models.School, error) {
	cfg := timeslot.DailyConfig{
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		LectureMinutes: req.LectureDuration,
		BreakStart:     req.BreakStartTime,
		BreakMinutes:   req.BreakDuration,
	}
	labels, err := timeslot.Labels(cfg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid daily time configuration")
	}
	if len(labels) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "daily time configuration leaves no room for a lecture")
	}

	start, _ := timeslot.Normalize(req.StartTime)
	end, _ := timeslot.Normalize(req.EndTime)
	school := &models.School{
		Name:            strings.TrimSpace(req.Name),
		Username:        strings.TrimSpace(req.Username),
		StartTime:       &start,
		EndTime:         &end,
		LectureDuration: req.LectureDuration,
		BreakDuration:   req.BreakDuration,
	}
	if school.LectureDuration <= 0 {
		school.LectureDuration = 60
	}
	if strings.TrimSpace(req.BreakStartTime) != "" {
		breakStart, _ := timeslot.Normalize(req.BreakStartTime)
		school.BreakStartTime = &breakStart
	}
	return school, nil
}

// DailyConfigOf converts the stored school configuration into a timeslot config.
func DailyConfigOf(school *models.School) timeslot.DailyConfig {
	cfg := timeslot.DailyConfig{
		LectureMinutes: school.LectureDuration,
		BreakMinutes:   school.BreakDuration,
	}
	if school.StartTime != nil {
		cfg.StartTime = *school.StartTime
	}
	if school.EndTime != nil {
		cfg.EndTime = *school.EndTime
	}
	if school.BreakStartTime != nil {
		cfg.BreakStart = *school.BreakStartTime
	}
	return cfg
}
