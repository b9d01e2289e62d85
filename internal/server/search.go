package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rutvikswami/Intellidocs/internal/rag"
)

// SearchHandler serves keyword search over the bleve index.
type SearchHandler struct {
	Service *rag.Service
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.GET("", h.search)
}

func (h *SearchHandler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k := 10
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid k")
		}
		k = n
	}
	hits, err := h.Service.LexicalSearch(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SearchResultItem, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchResultItem{
			ChunkID:  hit.Chunk.ID,
			Document: hit.Chunk.Document,
			Text:     hit.Chunk.Text,
			Score:    hit.Score,
		})
	}
	return c.JSON(http.StatusOK, out)
}
