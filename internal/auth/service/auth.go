package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	"github.com/botiquin/botiquin-backend/internal/auth/repository"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *repository.User) error
	GetByUsername(ctx context.Context, username string) (*repository.User, error)
	GetByID(ctx context.Context, id string) (*repository.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// AuthService handles authentication logic
type AuthService struct {
	users      UserStore
	jwtManager *jwt.Manager
	logger     *logger.Logger
	hashCost   int
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		users:      users,
		jwtManager: jwtManager,
		logger:     log,
		hashCost:   bcrypt.DefaultCost,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=80"`
	Password  string  `json:"password" validate:"required,min=6,max=72"`
	Email     *string `json:"email" validate:"omitempty,email"`
	UserType  string  `json:"user_type" validate:"omitempty,oneof=super_admin company_admin"`
	CompanyID *string `json:"company_id" validate:"omitempty,uuid"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
	User        *UserInfo `json:"user"`
}

// UserInfo represents user information
type UserInfo struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email,omitempty"`
	UserType  string  `json:"user_type"`
	CompanyID *string `json:"company_id,omitempty"`
}

func toUserInfo(u *repository.User) *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		UserType:  u.UserType,
		CompanyID: u.CompanyID,
	}
}

// Register creates a user. Anyone may create a plain company admin with no
// company; assigning a company or creating a super admin needs a super
// admin caller.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*UserInfo, error) {
	userType := req.UserType
	if userType == "" {
		userType = actor.TypeCompanyAdmin
	}

	privileged := userType == actor.TypeSuperAdmin || req.CompanyID != nil
	if privileged && !actor.FromContext(ctx).IsSuperAdmin() {
		return nil, errors.Forbidden("only a super admin can assign companies or create super admins")
	}
	if userType == actor.TypeSuperAdmin && req.CompanyID != nil {
		return nil, errors.Validation(map[string]string{"company_id": "super admins do not belong to a company"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	u := &repository.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        req.Email,
		PasswordHash: string(hash),
		UserType:     userType,
		CompanyID:    req.CompanyID,
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", u.ID).
		Str("user_type", u.UserType).
		Msg("user registered")

	return toUserInfo(u), nil
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}
	if !u.Active {
		return nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	tok, err := s.jwtManager.Generate(&jwt.UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		UserType:  u.UserType,
		CompanyID: u.CompanyID,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	if err := s.users.TouchLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("failed to record login")
	}

	return &LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		TokenType:   tok.TokenType,
		User:        toUserInfo(u),
	}, nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context) (*UserInfo, error) {
	a := actor.FromContext(ctx)
	if a == nil {
		return nil, errors.Unauthorized("not authenticated")
	}
	u, err := s.users.GetByID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

// Authenticate turns a bearer token into an actor. The user must still
// exist and be active.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*actor.Actor, error) {
	claims, err := s.jwtManager.Validate(token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.TokenInvalid()
		}
		return nil, err
	}
	if !u.Active {
		return nil, errors.Unauthorized("account disabled")
	}

	return &actor.Actor{
		ID:        u.ID,
		Username:  u.Username,
		UserType:  u.UserType,
		CompanyID: u.CompanyID,
	}, nil
}
