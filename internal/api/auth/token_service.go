package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/acqboard/pkg/models"
)

// TokenService issues and validates JWT access tokens. Every issued
// token also has a hashed row in auth_tokens, so revocation works by
// deleting the row even though the JWT itself is stateless.
type TokenService struct {
	db        *sql.DB
	secretKey []byte

	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// JWTClaims are the claims in our access tokens.
type JWTClaims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	TokenHash string `json:"token_hash"`
	jwt.RegisteredClaims
}

func NewTokenService(db *sql.DB, secretKey string) *TokenService {
	return &TokenService{
		db:                   db,
		secretKey:            []byte(secretKey),
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 30 * 24 * time.Hour,
	}
}

func (ts *TokenService) generateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (ts *TokenService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CreateTokenPair issues both access and refresh tokens for a user.
func (ts *TokenService) CreateTokenPair(user *models.User, userAgent, ipAddress string) (*TokenPair, error) {
	refreshToken, err := ts.generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshExpiresAt := time.Now().Add(ts.RefreshTokenDuration)

	_, err = ts.db.Exec(`
		INSERT INTO auth_tokens (user_id, token_hash, token_type, expires_at, user_agent, ip_address)
		VALUES ($1, $2, 'refresh', $3, $4, $5)
	`, user.ID, ts.hashToken(refreshToken), refreshExpiresAt, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	accessToken, err := ts.generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	accessTokenHash := ts.hashToken(accessToken)
	accessExpiresAt := time.Now().Add(ts.AccessTokenDuration)

	_, err = ts.db.Exec(`
		INSERT INTO auth_tokens (user_id, token_hash, token_type, expires_at, user_agent, ip_address)
		VALUES ($1, $2, 'session', $3, $4, $5)
	`, user.ID, accessTokenHash, accessExpiresAt, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	claims := &JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: accessTokenHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "acqboard",
			Subject:   fmt.Sprintf("user_%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

// ValidateAccessToken checks signature, expiry, and the backing
// auth_tokens row, then loads the user.
func (ts *TokenService) ValidateAccessToken(tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	var count int
	err = ts.db.QueryRow(`
		SELECT COUNT(*) FROM auth_tokens
		WHERE user_id = $1 AND token_hash = $2 AND token_type = 'session' AND expires_at > NOW()
	`, claims.UserID, claims.TokenHash).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("token revoked or expired")
	}

	user := &models.User{}
	err = ts.db.QueryRow(`
		SELECT id, email, full_name, is_active, created_at, updated_at
		FROM users WHERE id = $1 AND is_active
	`, claims.UserID).Scan(&user.ID, &user.Email, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

// RefreshAccessToken exchanges a valid refresh token for a new pair.
// The old refresh token is consumed.
func (ts *TokenService) RefreshAccessToken(refreshToken, userAgent, ipAddress string) (*TokenPair, error) {
	tokenHash := ts.hashToken(refreshToken)

	var userID int64
	err := ts.db.QueryRow(`
		SELECT user_id FROM auth_tokens
		WHERE token_hash = $1 AND token_type = 'refresh' AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invalid or expired refresh token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if _, err := ts.db.Exec(`DELETE FROM auth_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	user := &models.User{}
	err = ts.db.QueryRow(`
		SELECT id, email, full_name, is_active, created_at, updated_at
		FROM users WHERE id = $1 AND is_active
	`, userID).Scan(&user.ID, &user.Email, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	return ts.CreateTokenPair(user, userAgent, ipAddress)
}

// RevokeAllForUser logs a user out everywhere.
func (ts *TokenService) RevokeAllForUser(userID int64) error {
	_, err := ts.db.Exec(`DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	return err
}
