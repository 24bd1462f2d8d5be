package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/auth"
	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/domain"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// ErrLoginDisabled is returned when no operator password hash is configured.
var ErrLoginDisabled = errors.New("operator login disabled")

// AuthService coordinates the operator login flow.
type AuthService struct {
	tokenMgr     *auth.TokenManager
	username     string
	passwordHash string
	bcryptCost   int
	logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		bcryptCost:   cfg.BcryptCost,
		logger:       logger,
	}
}

// Login authenticates the operator and issues an access token.
func (s *AuthService) Login(_ context.Context, username, password string) (domain.Token, string, error) {
	if s.passwordHash == "" {
		return domain.Token{}, "", apperrors.NewForbidden(ErrLoginDisabled.Error())
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) == 1
	passErr := auth.ComparePassword(s.passwordHash, password)
	if !userOK || passErr != nil {
		s.logger.Warn("operator login rejected", zap.String("username", username))
		return domain.Token{}, "", apperrors.NewUnauthorized("invalid credentials")
	}
	if auth.NeedsRehash(s.passwordHash, s.bcryptCost) {
		s.logger.Info("operator password hash below configured cost", zap.Int("cost", s.bcryptCost))
	}

	meta, token, err := s.tokenMgr.GenerateToken(s.username, domain.SubjectTypeOperator)
	if err != nil {
		return domain.Token{}, "", err
	}
	s.logger.Info("operator logged in", zap.String("username", s.username), zap.String("token_id", meta.ID))
	return meta, token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
