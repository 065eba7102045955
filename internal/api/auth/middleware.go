package auth

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/acqboard/pkg/models"
)

// ContextKey represents keys for context values.
type ContextKey string

const (
	UserContextKey       ContextKey = "user"
	MembershipContextKey ContextKey = "membership"
)

// RequireAuth validates the Bearer token and puts the user on the echo
// context.
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			user, err := tokenService.ValidateAccessToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(string(UserContextKey), user)
			return next(c)
		}
	}
}

// RequireWorkspace resolves the :workspaceId path parameter, verifies
// the authenticated user's membership, and puts the membership on the
// context. Must run after RequireAuth.
func RequireWorkspace(db *sql.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			workspaceID, err := strconv.ParseInt(c.Param("workspaceId"), 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid workspace id")
			}

			membership, err := LookupMembership(db, user.ID, workspaceID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check workspace access")
			}
			if membership == nil {
				return echo.NewHTTPError(http.StatusForbidden, "No access to this workspace")
			}

			c.Set(string(MembershipContextKey), membership)
			return next(c)
		}
	}
}

// RequireElevated rejects setters. Must run after RequireWorkspace.
func RequireElevated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m := CurrentMembership(c)
			if m == nil || !models.IsElevated(m.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "Owner or coach role required")
			}
			return next(c)
		}
	}
}

// LookupMembership loads one user's membership row, nil when absent.
func LookupMembership(db *sql.DB, userID, workspaceID int64) (*models.Membership, error) {
	m := &models.Membership{}
	err := db.QueryRow(`
		SELECT user_id, workspace_id, role, created_at
		FROM workspace_members
		WHERE user_id = $1 AND workspace_id = $2
	`, userID, workspaceID).Scan(&m.UserID, &m.WorkspaceID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CurrentUser returns the authenticated user from the context, nil if
// unauthenticated.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(string(UserContextKey)).(*models.User)
	return user
}

// CurrentMembership returns the resolved workspace membership, nil if
// the workspace middleware has not run.
func CurrentMembership(c echo.Context) *models.Membership {
	m, _ := c.Get(string(MembershipContextKey)).(*models.Membership)
	return m
}
