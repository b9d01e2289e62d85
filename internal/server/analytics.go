package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutvikswami/Intellidocs/internal/session"
	"github.com/rutvikswami/Intellidocs/internal/store"
)

// AnalyticsHandler serves the usage dashboard. Routes sit behind auth.
type AnalyticsHandler struct {
	Store    *store.Store
	Sessions *session.Registry
}

type DashboardResponse struct {
	RecentChats  []store.ChatLog    `json:"recent_chats"`
	UploadStats  []store.UploadStat `json:"upload_stats"`
	DailyUsage   []store.DailyUsage `json:"daily_usage"`
	LiveSessions int                `json:"live_sessions"`
}

func (h *AnalyticsHandler) Register(g *echo.Group) {
	g.GET("/dashboard", h.dashboard)
}

func (h *AnalyticsHandler) dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	chats, err := h.Store.RecentChatLogs(ctx, 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	uploads, err := h.Store.UploadStats(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	usage, err := h.Store.DailyUsageSince(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	live, err := h.Sessions.Live(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, DashboardResponse{
		RecentChats:  chats,
		UploadStats:  uploads,
		DailyUsage:   usage,
		LiveSessions: live,
	})
}
