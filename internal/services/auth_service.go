package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-chat-api/internal/models"
	apperrors "ai-chat-api/internal/pkg/errors"
	"ai-chat-api/internal/repository"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const UserContextKey contextKey = "user"

var (
	ErrEmailTaken        = errors.New("Email already registered")
	ErrUsernameTaken     = errors.New("Username already registered")
	ErrUserNotFound      = errors.New("User not found")
	ErrIncorrectPassword = errors.New("Incorrect password")
	ErrInvalidToken      = errors.New("Could not validate credentials")
)

type RegisterInput struct {
	Email    string
	Username string
	Name     string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (string, *models.User, error)
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	taken, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	taken, err = s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        email,
		Username:     input.Username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, s.duplicateError(ctx, email)
		}
		return nil, err
	}

	return user, nil
}

// duplicateError names the taken field after a concurrent signup won the
// unique index between the existence checks and the insert.
func (s *authService) duplicateError(ctx context.Context, email string) error {
	if taken, err := s.userRepo.ExistsByEmail(ctx, email); err == nil && taken {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}

// Login accepts either an email or a username and returns a signed token.
func (s *authService) Login(ctx context.Context, login, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrIncorrectPassword
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.Email,
		"exp": time.Now().Add(s.tokenTTL).Unix(),
	})

	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

// VerifyToken checks signature and expiry, then resolves the subject with a
// fresh lookup. A valid token for a deleted user yields ErrUserNotFound.
func (s *authService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if _, hasExp := claims["exp"]; !hasExp {
		return nil, ErrInvalidToken
	}

	email, ok := claims["sub"].(string)
	if !ok || email == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// Helper function to add user to context
func WithUserContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// Helper function to get user from context
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}
