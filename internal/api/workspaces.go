package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/pkg/models"
)

func (s *Server) createWorkspace(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Workspace name is required"})
	}

	tx, err := s.deps.DB.BeginTx(c.Request().Context(), nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create workspace"})
	}
	defer tx.Rollback()

	ws := &models.Workspace{Name: strings.TrimSpace(req.Name), IsActive: true, CreatedByUserID: &user.ID}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		ws.Description = &desc
	}

	err = tx.QueryRow(`
		INSERT INTO workspaces (name, description, is_active, created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, ws.Name, ws.Description, user.ID).Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Msg("workspace insert failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create workspace"})
	}

	_, err = tx.Exec(`
		INSERT INTO workspace_members (user_id, workspace_id, role, created_at)
		VALUES ($1, $2, $3, NOW())
	`, user.ID, ws.ID, models.RoleOwner)
	if err != nil {
		log.Error().Err(err).Msg("owner membership insert failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create workspace"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create workspace"})
	}
	return c.JSON(http.StatusCreated, ws)
}

func (s *Server) listWorkspaces(c echo.Context) error {
	user := auth.CurrentUser(c)

	rows, err := s.deps.DB.QueryContext(c.Request().Context(), `
		SELECT w.id, w.name, w.description, w.is_active, w.created_at, w.updated_at, m.role
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND w.is_active
		ORDER BY w.created_at
	`, user.ID)
	if err != nil {
		log.Error().Err(err).Msg("workspace list failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list workspaces"})
	}
	defer rows.Close()

	type workspaceWithRole struct {
		models.Workspace
		Role string `json:"role"`
	}
	out := []workspaceWithRole{}
	for rows.Next() {
		var w workspaceWithRole
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.IsActive, &w.CreatedAt, &w.UpdatedAt, &w.Role); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list workspaces"})
		}
		out = append(out, w)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workspaces": out})
}
