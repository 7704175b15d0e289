package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/services"

	"github.com/sirupsen/logrus"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService services.AuthService
	recaptcha   services.RecaptchaVerifier
}

func NewAuthHandler(authService services.AuthService, recaptcha services.RecaptchaVerifier) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		recaptcha:   recaptcha,
	}
}

// registrationRequest represents the structure of a registration request
type registrationRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Username       string `json:"username" validate:"required,min=3,max=64"`
	Name           string `json:"name" validate:"required,max=255"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type registrationResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// loginRequest accepts an email or a username in Login
type loginRequest struct {
	Login          string `json:"login" validate:"required"`
	Password       string `json:"password" validate:"required"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

// Register creates an account after reCAPTCHA and uniqueness checks.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	if !h.verifyRecaptcha(w, r, req.RecaptchaToken) {
		return
	}

	user, err := h.authService.Register(r.Context(), services.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrUsernameTaken):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			logger.LogEvent(logrus.ErrorLevel, "Failed to register user", logrus.Fields{"error": err.Error()})
			respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
		}
		return
	}

	logger.LogEvent(logrus.InfoLevel, "User registered", logrus.Fields{"user_id": user.ID})
	respondWithJSON(w, http.StatusCreated, registrationResponse{
		Message: "User created successfully",
		User:    user,
	})
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	if !h.verifyRecaptcha(w, r, req.RecaptchaToken) {
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrIncorrectPassword):
			respondWithError(w, http.StatusForbidden, err.Error())
		default:
			logger.LogEvent(logrus.ErrorLevel, "Login failed", logrus.Fields{"error": err.Error()})
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

// Me returns the authenticated user, including current usage.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) verifyRecaptcha(w http.ResponseWriter, r *http.Request, token string) bool {
	err := h.recaptcha.Verify(r.Context(), token)
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, services.ErrRecaptchaMissing), errors.Is(err, services.ErrRecaptchaFailed):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.LogEvent(logrus.ErrorLevel, "reCAPTCHA verification error", logrus.Fields{"error": err.Error()})
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
	return false
}
