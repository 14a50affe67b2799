package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/server/auth"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
)

// AuthService handles client accounts and sessions:
// - Register: create clients
// - AuthorizeByEmail: verify credentials and mint tokens
// - Refresh: rotate the refresh token and mint a new access token
// - Logout: revoke the refresh token
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authority   *auth.Authority
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, authority *auth.Authority) *AuthService {
	return &AuthService{db: db, repomanager: m, authority: authority}
}

// Register creates a new client account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.Client, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	client, err := s.repomanager.Clients(s.db).Create(ctx, &models.Client{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating client: %w", err)
	}
	return client, nil
}

// AuthorizeByEmail verifies the credentials and, on success, returns a new
// token pair. An unknown email and a wrong password produce the same
// common.ErrorUnauthorized so the response does not reveal which one it was.
func (s *AuthService) AuthorizeByEmail(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	client, err := s.repomanager.Clients(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword(client.PasswordHash, []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}

	return s.authority.IssueClientTokens(ctx, client.UID)
}

// Refresh rotates the refresh token and returns the new pair. Access
// tokens issued earlier stay valid until their own expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	return s.authority.RefreshClientTokens(ctx, refreshToken)
}

// Logout revokes the refresh token, ending the session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.authority.RevokeRefreshToken(ctx, refreshToken)
}

// VerifyAccessToken implements TokenVerifier for co-hosted deployments.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	return s.authority.ValidateAccessToken(ctx, token)
}
