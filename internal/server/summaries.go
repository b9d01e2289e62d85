package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rutvikswami/Intellidocs/internal/rag"
	"github.com/rutvikswami/Intellidocs/internal/session"
)

// SummariesHandler owns the cross-document generation route.
type SummariesHandler struct {
	Service  *rag.Service
	Sessions *session.Registry
}

func (h *SummariesHandler) Register(g *echo.Group) {
	g.POST("/compare", h.compare)
}

func (h *SummariesHandler) compare(c echo.Context) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Document1 == "" || req.Document2 == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document1 and document2 required")
	}
	sessionID := h.Sessions.Ensure(c.Request().Context(), req.SessionID)
	out, err := h.Service.Compare(c.Request().Context(), sessionID, req.Document1, req.Document2)
	if err != nil {
		return documentError(err)
	}
	return c.JSON(http.StatusOK, GeneratedTextResponse{Text: out})
}
