package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rutvikswami/Intellidocs/internal/rag"
	"github.com/rutvikswami/Intellidocs/internal/session"
	"github.com/rutvikswami/Intellidocs/internal/store"
)

type ChatHandler struct {
	Service  *rag.Service
	Sessions *session.Registry
	Store    *store.Store // optional, history needs it
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.ask)
	g.GET("/history", h.history)
}

func (h *ChatHandler) ask(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question required")
	}
	sessionID := h.Sessions.Ensure(c.Request().Context(), req.SessionID)

	ans, err := h.Service.Ask(c.Request().Context(), sessionID, req.Question, req.TopK)
	if err != nil {
		if errors.Is(err, rag.ErrGeneration) {
			return echo.NewHTTPError(http.StatusBadGateway, rag.GenerationFallbackMessage)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, ChatResponse{
		Answer:    ans.Text,
		Sources:   ans.Sources,
		ChunkIDs:  ans.ChunkIDs,
		LatencyMS: ans.Latency.Milliseconds(),
		SessionID: sessionID,
	})
}

func (h *ChatHandler) history(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "chat history requires postgres")
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	logs, err := h.Store.RecentChatLogs(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logs)
}
