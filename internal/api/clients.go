package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/pkg/models"
)

type clientRequest struct {
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
	Handle *string `json:"handle,omitempty"`
	Status string  `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (s *Server) listClients(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	rows, err := s.deps.DB.QueryContext(c.Request().Context(), `
		SELECT id, workspace_id, name, email, handle, status, notes, started_at, created_at, updated_at
		FROM clients
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`, membership.WorkspaceID)
	if err != nil {
		log.Error().Err(err).Msg("client list failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list clients"})
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var cl models.Client
		if err := rows.Scan(&cl.ID, &cl.WorkspaceID, &cl.Name, &cl.Email, &cl.Handle, &cl.Status, &cl.Notes, &cl.StartedAt, &cl.CreatedAt, &cl.UpdatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list clients"})
		}
		clients = append(clients, cl)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"clients": clients})
}

func (s *Server) createClient(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	var req clientRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Client name is required"})
	}
	status := req.Status
	if status == "" {
		status = "active"
	}

	cl := models.Client{WorkspaceID: membership.WorkspaceID, Name: strings.TrimSpace(req.Name), Email: req.Email, Handle: req.Handle, Status: status, Notes: req.Notes}
	err := s.deps.DB.QueryRowContext(c.Request().Context(), `
		INSERT INTO clients (workspace_id, name, email, handle, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, cl.WorkspaceID, cl.Name, cl.Email, cl.Handle, cl.Status, cl.Notes).Scan(&cl.ID, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Msg("client insert failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create client"})
	}
	return c.JSON(http.StatusCreated, cl)
}

func (s *Server) updateClient(c echo.Context) error {
	membership := auth.CurrentMembership(c)
	clientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid client id"})
	}

	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	var cl models.Client
	err = s.deps.DB.QueryRowContext(c.Request().Context(), `
		UPDATE clients SET
			name = COALESCE(NULLIF($1, ''), name),
			email = COALESCE($2, email),
			handle = COALESCE($3, handle),
			status = COALESCE(NULLIF($4, ''), status),
			notes = COALESCE($5, notes),
			updated_at = NOW()
		WHERE workspace_id = $6 AND id = $7
		RETURNING id, workspace_id, name, email, handle, status, notes, started_at, created_at, updated_at
	`, req.Name, req.Email, req.Handle, req.Status, req.Notes, membership.WorkspaceID, clientID).
		Scan(&cl.ID, &cl.WorkspaceID, &cl.Name, &cl.Email, &cl.Handle, &cl.Status, &cl.Notes, &cl.StartedAt, &cl.CreatedAt, &cl.UpdatedAt)
	if err == sql.ErrNoRows {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Client not found"})
	}
	if err != nil {
		log.Error().Err(err).Msg("client update failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update client"})
	}
	return c.JSON(http.StatusOK, cl)
}

func (s *Server) deleteClient(c echo.Context) error {
	membership := auth.CurrentMembership(c)
	clientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid client id"})
	}

	result, err := s.deps.DB.ExecContext(c.Request().Context(),
		`DELETE FROM clients WHERE workspace_id = $1 AND id = $2`,
		membership.WorkspaceID, clientID)
	if err != nil {
		log.Error().Err(err).Msg("client delete failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete client"})
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Client not found"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
