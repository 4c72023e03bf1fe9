package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dinehub/leaderboard-backend/internal/apperrors"
	"github.com/dinehub/leaderboard-backend/internal/config"
	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/repositories"
	"github.com/dinehub/leaderboard-backend/internal/utils"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure AuthServiceImpl implements AuthService
var _ AuthService = (*AuthServiceImpl)(nil)

// AuthServiceImpl handles admin authentication
type AuthServiceImpl struct {
	adminRepo repositories.AdminUserRepository
	cfg       *config.Config
}

// NewAuthService creates a new AuthServiceImpl
func NewAuthService(adminRepo repositories.AdminUserRepository, cfg *config.Config) *AuthServiceImpl {
	return &AuthServiceImpl{adminRepo: adminRepo, cfg: cfg}
}

// Register creates a new admin account
func (s *AuthServiceImpl) Register(ctx context.Context, req *models.RegisterRequest) (*models.AdminUser, error) {
	existing, err := s.adminRepo.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		slog.Error("Failed to check for existing admin", "error", err)
		return nil, fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Validation("an account with this email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.AdminUser{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashed),
		Role:      "admin",
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		slog.Error("Failed to create admin user", "error", err)
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	admin.Password = ""
	slog.Info("Admin registered", "adminId", admin.ID, "email", admin.Email)
	return admin, nil
}

// Login verifies credentials and returns a signed JWT
func (s *AuthServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (string, error) {
	admin, err := s.adminRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", apperrors.Validation("invalid credentials")
		}
		slog.Error("Failed to look up admin", "error", err)
		return "", fmt.Errorf("failed to look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		return "", apperrors.Validation("invalid credentials")
	}

	token, err := utils.GenerateJWT(admin.ID.Hex(), admin.Role, s.cfg)
	if err != nil {
		slog.Error("Failed to sign JWT", "error", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
