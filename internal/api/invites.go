package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/pkg/models"
)

const inviteTTL = 7 * 24 * time.Hour

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// createInvite issues a workspace invitation. The raw token is returned
// once; only its bcrypt hash is stored.
func (s *Server) createInvite(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A valid email is required"})
	}
	switch req.Role {
	case models.RoleOwner, models.RoleCoach, models.RoleSetter:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Role must be owner, coach, or setter"})
	}

	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create invite"})
	}

	invite := models.Invite{
		WorkspaceID: membership.WorkspaceID,
		Email:       email,
		Role:        req.Role,
		ExpiresAt:   time.Now().Add(inviteTTL),
	}
	err = s.deps.DB.QueryRowContext(c.Request().Context(), `
		INSERT INTO invites (workspace_id, email, role, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`, invite.WorkspaceID, invite.Email, invite.Role, string(hash), invite.ExpiresAt).
		Scan(&invite.ID, &invite.CreatedAt)
	if err != nil {
		log.Error().Err(err).Msg("invite insert failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create invite"})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"invite": invite,
		"token":  token,
	})
}

func (s *Server) listInvites(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	rows, err := s.deps.DB.QueryContext(c.Request().Context(), `
		SELECT id, workspace_id, email, role, expires_at, accepted_at, created_at
		FROM invites
		WHERE workspace_id = $1 AND accepted_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`, membership.WorkspaceID)
	if err != nil {
		log.Error().Err(err).Msg("invite list failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list invites"})
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list invites"})
		}
		invites = append(invites, inv)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invites": invites})
}

type acceptInviteRequest struct {
	InviteID int64  `json:"inviteId"`
	Token    string `json:"token"`
}

// acceptInvite redeems an invitation for the authenticated user. The
// token is checked against the stored bcrypt hash and the invite email
// must match the caller's account.
func (s *Server) acceptInvite(c echo.Context) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	var req acceptInviteRequest
	if err := c.Bind(&req); err != nil || req.InviteID == 0 || req.Token == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "inviteId and token are required"})
	}

	var invite models.Invite
	err := s.deps.DB.QueryRowContext(c.Request().Context(), `
		SELECT id, workspace_id, email, role, token_hash, expires_at, accepted_at, created_at
		FROM invites
		WHERE id = $1 AND accepted_at IS NULL AND expires_at > NOW()
	`, req.InviteID).Scan(&invite.ID, &invite.WorkspaceID, &invite.Email, &invite.Role,
		&invite.TokenHash, &invite.ExpiresAt, &invite.AcceptedAt, &invite.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Invite not found or expired"})
	}

	if !strings.EqualFold(invite.Email, user.Email) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "This invite was issued for a different email"})
	}
	if bcrypt.CompareHashAndPassword([]byte(invite.TokenHash), []byte(req.Token)) != nil {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Invalid invite token"})
	}

	tx, err := s.deps.DB.BeginTx(c.Request().Context(), nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to accept invite"})
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO workspace_members (user_id, workspace_id, role, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, workspace_id) DO UPDATE SET role = EXCLUDED.role
	`, user.ID, invite.WorkspaceID, invite.Role)
	if err != nil {
		log.Error().Err(err).Msg("membership insert failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to accept invite"})
	}

	if _, err := tx.Exec(`UPDATE invites SET accepted_at = NOW() WHERE id = $1`, invite.ID); err != nil {
		log.Error().Err(err).Msg("invite update failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to accept invite"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to accept invite"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"workspace_id": invite.WorkspaceID,
		"role":         invite.Role,
	})
}
