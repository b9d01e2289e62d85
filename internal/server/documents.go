package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rutvikswami/Intellidocs/internal/document"
	"github.com/rutvikswami/Intellidocs/internal/rag"
	"github.com/rutvikswami/Intellidocs/internal/session"
)

type DocumentsHandler struct {
	Service        *rag.Service
	Sessions       *session.Registry
	MaxUploadBytes int64
}

func (h *DocumentsHandler) Register(g *echo.Group) {
	g.POST("", h.upload)
	g.POST("/url", h.ingestURL)
	g.GET("", h.list)
	g.GET("/:name/preview", h.preview)
	g.POST("/:name/summary", h.summary)
	g.POST("/:name/faq", h.faq)
	g.DELETE("", h.clear)
	g.DELETE("/:name", h.remove)
}

func (h *DocumentsHandler) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		// Advisory only: large files slow ingestion but are not rejected.
		log.Printf("[DOCS] upload %s exceeds advisory limit (%d > %d bytes)", fh.Filename, fh.Size, h.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sessionID := h.Sessions.Ensure(c.Request().Context(), c.FormValue("session_id"))
	result, err := h.Service.Ingest(c.Request().Context(), sessionID, fh.Filename, data)
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *DocumentsHandler) ingestURL(c echo.Context) error {
	var req IngestURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url required")
	}
	sessionID := h.Sessions.Ensure(c.Request().Context(), req.SessionID)
	result, err := h.Service.IngestURL(c.Request().Context(), sessionID, req.URL)
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *DocumentsHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Service.Documents())
}

func (h *DocumentsHandler) preview(c echo.Context) error {
	preview, err := h.Service.Preview(c.Param("name"), 2000)
	if err != nil {
		return documentError(err)
	}
	return c.JSON(http.StatusOK, GeneratedTextResponse{Document: c.Param("name"), Text: preview})
}

func (h *DocumentsHandler) summary(c echo.Context) error {
	sessionID := h.Sessions.Ensure(c.Request().Context(), c.QueryParam("session_id"))
	out, err := h.Service.Summarize(c.Request().Context(), sessionID, c.Param("name"))
	if err != nil {
		return documentError(err)
	}
	return c.JSON(http.StatusOK, GeneratedTextResponse{Document: c.Param("name"), Text: out})
}

func (h *DocumentsHandler) faq(c echo.Context) error {
	sessionID := h.Sessions.Ensure(c.Request().Context(), c.QueryParam("session_id"))
	out, err := h.Service.FAQ(c.Request().Context(), sessionID, c.Param("name"))
	if err != nil {
		return documentError(err)
	}
	return c.JSON(http.StatusOK, GeneratedTextResponse{Document: c.Param("name"), Text: out})
}

func (h *DocumentsHandler) clear(c echo.Context) error {
	if err := h.Service.Clear(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DocumentsHandler) remove(c echo.Context) error {
	if err := h.Service.Delete(c.Request().Context(), c.Param("name")); err != nil {
		return documentError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ingestError maps pipeline failures: bad input is the client's fault, an
// unreachable external API is a bad gateway.
func ingestError(err error) error {
	switch {
	case errors.Is(err, document.ErrUnsupported), errors.Is(err, document.ErrEmpty):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}

func documentError(err error) error {
	switch {
	case errors.Is(err, rag.ErrDocumentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, rag.ErrGeneration):
		return echo.NewHTTPError(http.StatusBadGateway, rag.GenerationFallbackMessage)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
