package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/internal/inbox"
)

type contentRequest struct {
	Action      string `json:"action"`
	PhaseFilter string `json:"phaseFilter,omitempty"`
	IdeaID      int64  `json:"ideaId,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// handleContent dispatches the content-ai actions: the weekly batch
// and the per-idea follow-on generations.
func (s *Server) handleContent(c echo.Context) error {
	membership := auth.CurrentMembership(c)

	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	switch req.Action {
	case "generate-weekly-ideas":
		result := s.deps.Ideas.GenerateWeekly(c.Request().Context(), membership.WorkspaceID, req.PhaseFilter)
		if !result.Success {
			// Hard failure with no cached fallback. The envelope
			// carries the error; the status stays meaningful for
			// the UI.
			return c.JSON(http.StatusBadGateway, result)
		}
		return c.JSON(http.StatusOK, result)

	case "generate-idea-piece":
		if req.IdeaID == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "ideaId is required"})
		}
		idea, err := s.deps.Ideas.GeneratePiece(c.Request().Context(), membership.WorkspaceID, req.IdeaID, req.Kind)
		if err != nil {
			log.Error().Err(err).Int64("idea_id", req.IdeaID).Str("kind", req.Kind).Msg("piece generation failed")
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "idea": idea})

	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown action: " + req.Action})
	}
}

// getSnapshot exposes the inbox snapshot for the dashboard and for
// debugging rankings without burning a chat turn.
func (s *Server) getSnapshot(c echo.Context) error {
	user := auth.CurrentUser(c)
	membership := auth.CurrentMembership(c)

	snap, err := s.deps.Inbox.Build(c.Request().Context(), inbox.Request{
		WorkspaceID: membership.WorkspaceID,
		ActorID:     user.ID,
		Role:        membership.Role,
		Question:    c.QueryParam("question"),
	})
	if err != nil {
		log.Error().Err(err).Msg("snapshot build failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build snapshot"})
	}
	return c.JSON(http.StatusOK, snap)
}

// syncYouTube refreshes the workspace's channel data from the API.
func (s *Server) syncYouTube(c echo.Context) error {
	if s.deps.Syncer == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "YouTube integration is not configured"})
	}
	membership := auth.CurrentMembership(c)

	var req struct {
		ChannelID string `json:"channelId"`
	}
	if err := c.Bind(&req); err != nil || req.ChannelID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "channelId is required"})
	}

	signals, err := s.deps.Syncer.Sync(c.Request().Context(), membership.WorkspaceID, req.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", req.ChannelID).Msg("youtube sync failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": providerErrorMessage(err)})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "signals": signals})
}

func providerErrorMessage(err error) string {
	msg := err.Error()
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}
