package auth

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/acqboard/pkg/models"
)

// Handlers serves signup, login, refresh, and logout.
type Handlers struct {
	db     *sql.DB
	tokens *TokenService
}

func NewHandlers(db *sql.DB, tokens *TokenService) *Handlers {
	return &Handlers{db: db, tokens: tokens}
}

func (h *Handlers) Register(g *echo.Group) {
	g.POST("/auth/signup", h.Signup)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/refresh", h.Refresh)
	g.POST("/auth/logout", h.Logout, RequireAuth(h.tokens))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type authResponse struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) Signup(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "A valid email is required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Password must be at least 8 characters"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to process password"})
	}

	user := &models.User{Email: email, IsActive: true}
	if name := strings.TrimSpace(req.FullName); name != "" {
		user.FullName = &name
	}

	err = h.db.QueryRow(`
		INSERT INTO users (email, password_hash, full_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, email, string(hashed), user.FullName).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return c.JSON(http.StatusConflict, errorResponse{Error: "An account with this email already exists"})
		}
		log.Error().Err(err).Msg("signup insert failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to create account"})
	}

	tokens, err := h.tokens.CreateTokenPair(user, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed after signup")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Account created but login failed, please sign in"})
	}
	return c.JSON(http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

func (h *Handlers) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user := &models.User{}
	var passwordHash string
	err := h.db.QueryRow(`
		SELECT id, email, password_hash, full_name, is_active, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &passwordHash, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid email or password"})
	}
	if err != nil {
		log.Error().Err(err).Msg("login lookup failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Login failed"})
	}

	if !user.IsActive {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Account is disabled"})
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid email or password"})
	}

	if _, err := h.db.Exec(`UPDATE users SET last_login_at = NOW() WHERE id = $1`, user.ID); err != nil {
		log.Warn().Err(err).Msg("failed to record last login")
	}

	tokens, err := h.tokens.CreateTokenPair(user, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Login failed"})
	}
	return c.JSON(http.StatusOK, authResponse{User: user, Tokens: tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handlers) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "refresh_token is required"})
	}

	tokens, err := h.tokens.RefreshAccessToken(req.RefreshToken, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid or expired refresh token"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tokens": tokens})
}

func (h *Handlers) Logout(c echo.Context) error {
	user := CurrentUser(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
	}
	if err := h.tokens.RevokeAllForUser(user.ID); err != nil {
		log.Error().Err(err).Msg("logout revocation failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Logout failed"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
