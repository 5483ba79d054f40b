package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
)

const denylistPrefix = "token_denylist:"

// AuthResult carries a user and a freshly issued token pair.
type AuthResult struct {
	User         dto.UserResponse
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	userRepo    repository.UserRepository
	tokens      *TokenIssuer
	redisClient *redis.Client
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenIssuer, redisClient *redis.Client) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, redisClient: redisClient}
}

func (s *AuthService) Tokens() *TokenIssuer { return s.tokens }

func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, apperror.BadRequest("User already exists with this email")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{Name: strings.TrimSpace(req.Name), Email: email, Password: string(hashed)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.BadRequest("User already exists with this email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	return s.issue(ctx, user)
}

// Refresh rotates the token pair. The presented refresh token must be the one
// most recently issued to the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, apperror.Unauthorized("Refresh token is required")
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.RefreshTokenHash == "" {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}
	if subtle.ConstantTimeCompare([]byte(user.RefreshTokenHash), []byte(hashToken(refreshToken))) != 1 {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}
	return s.issue(ctx, user)
}

// Logout forgets the refresh token and revokes the access token for the rest
// of its lifetime.
func (s *AuthService) Logout(ctx context.Context, session *model.Session) error {
	if err := s.userRepo.SetRefreshTokenHash(ctx, session.UserID, ""); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if s.redisClient == nil || session.TokenID == "" {
		return nil
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.redisClient.Set(ctx, denylistPrefix+session.TokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// Authenticate resolves an access token into a session. The admin flag comes
// from the stored user, not from the token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.Session, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid or expired token")
	}

	if s.redisClient != nil && claims.TokenID != "" {
		n, err := s.redisClient.Exists(ctx, denylistPrefix+claims.TokenID).Result()
		if err != nil {
			return nil, fmt.Errorf("check token denylist: %w", err)
		}
		if n > 0 {
			return nil, apperror.Unauthorized("Invalid or expired token")
		}
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("User no longer exists")
	}
	return &model.Session{
		UserID:    user.ID,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("User not found")
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("User not found")
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}
	if req.Address != nil {
		user.Address = &model.Address{
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			ZipCode: req.Address.ZipCode,
			Country: req.Address.Country,
		}
		if user.Address.Country == "" {
			user.Address.Country = defaultCountry
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetRefreshTokenHash(ctx, user.ID, hashToken(refresh)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &AuthResult{User: toUserResponse(user), AccessToken: access, RefreshToken: refresh}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		Phone:     user.Phone,
		Avatar:    user.Avatar,
		Address:   user.Address,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
