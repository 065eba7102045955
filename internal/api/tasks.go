package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/pkg/models"
)

type taskRequest struct {
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Status       string     `json:"status,omitempty"`
	AssignedToID *int64     `json:"assigned_to_id,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
}

func (s *Server) listTasks(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	rows, err := s.deps.DB.QueryContext(c.Request().Context(), `
		SELECT id, workspace_id, title, description, status, assigned_to_id, due_at, created_at, updated_at
		FROM tasks
		WHERE workspace_id = $1
		ORDER BY due_at ASC NULLS LAST, created_at DESC
	`, membership.WorkspaceID)
	if err != nil {
		log.Error().Err(err).Msg("task list failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list tasks"})
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status, &t.AssignedToID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list tasks"})
		}
		tasks = append(tasks, t)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) createTask(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	var req taskRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Task title is required"})
	}
	status := req.Status
	if status == "" {
		status = "open"
	}

	t := models.Task{WorkspaceID: membership.WorkspaceID, Title: strings.TrimSpace(req.Title), Description: req.Description, Status: status, AssignedToID: req.AssignedToID, DueAt: req.DueAt}
	err := s.deps.DB.QueryRowContext(c.Request().Context(), `
		INSERT INTO tasks (workspace_id, title, description, status, assigned_to_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, t.WorkspaceID, t.Title, t.Description, t.Status, t.AssignedToID, t.DueAt).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Msg("task insert failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create task"})
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) updateTask(c echo.Context) error {
	membership := auth.CurrentMembership(c)
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid task id"})
	}

	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	var t models.Task
	err = s.deps.DB.QueryRowContext(c.Request().Context(), `
		UPDATE tasks SET
			title = COALESCE(NULLIF($1, ''), title),
			description = COALESCE($2, description),
			status = COALESCE(NULLIF($3, ''), status),
			assigned_to_id = COALESCE($4, assigned_to_id),
			due_at = COALESCE($5, due_at),
			updated_at = NOW()
		WHERE workspace_id = $6 AND id = $7
		RETURNING id, workspace_id, title, description, status, assigned_to_id, due_at, created_at, updated_at
	`, req.Title, req.Description, req.Status, req.AssignedToID, req.DueAt, membership.WorkspaceID, taskID).
		Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status, &t.AssignedToID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Task not found"})
	}
	if err != nil {
		log.Error().Err(err).Msg("task update failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update task"})
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTask(c echo.Context) error {
	membership := auth.CurrentMembership(c)
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid task id"})
	}

	result, err := s.deps.DB.ExecContext(c.Request().Context(),
		`DELETE FROM tasks WHERE workspace_id = $1 AND id = $2`,
		membership.WorkspaceID, taskID)
	if err != nil {
		log.Error().Err(err).Msg("task delete failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete task"})
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Task not found"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
