package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/plan"
	"cosnap-backend/internal/repository"
)

const tokenExpDays = 365

// ProfileService handles profile bootstrap and bearer-token
// verification. Identity itself is the external provider's problem;
// tokens are verified against a shared secret.
type ProfileService struct {
	profiles  *repository.ProfileRepository
	jwtSecret string
}

// NewProfileService creates a new profile service
func NewProfileService(profiles *repository.ProfileRepository, jwtSecret string) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		jwtSecret: jwtSecret,
	}
}

// Create creates a new free-tier profile and issues its bearer token.
func (s *ProfileService) Create(ctx context.Context) (*models.Profile, error) {
	profileID := uuid.New().String()

	token, err := s.signToken(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	profile := &models.Profile{
		ID:        profileID,
		Token:     token,
		PlanTier:  string(plan.TierFree),
		CreatedAt: time.Now(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// Tier returns the profile's current plan tier.
func (s *ProfileService) Tier(ctx context.Context, profileID string) (plan.Tier, error) {
	tier, err := s.profiles.GetTier(ctx, profileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return plan.TierFree, ErrNotFound
		}
		return plan.TierFree, fmt.Errorf("%w: reading plan tier: %v", ErrDependency, err)
	}
	return tier, nil
}

// RegisterPushToken stores a device token for APNs delivery.
func (s *ProfileService) RegisterPushToken(ctx context.Context, profileID, pushToken string) error {
	if pushToken == "" {
		return fmt.Errorf("%w: push token is required", ErrValidation)
	}
	if err := s.profiles.SetPushToken(ctx, profileID, pushToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: storing push token: %v", ErrDependency, err)
	}
	return nil
}

func (s *ProfileService) signToken(profileID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": profileID,
		"exp":     time.Now().AddDate(0, 0, tokenExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateToken verifies a bearer token and returns the user ID.
func (s *ProfileService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}
	return userID, nil
}
