package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/fieldline/internal/version"
)

// PingHandler serves liveness probes.
type PingHandler struct{}

func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.Health)
}

// PingResponse reports liveness and the running build.
type PingResponse struct {
	Status string       `json:"status"`
	Build  version.Info `json:"build"`
}

// Ping godoc
// @Summary Liveness
// @Tags system
// @Success 200 {object} PingResponse
// @Router /ping [get]
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, PingResponse{Status: "ok", Build: version.Get()})
}

func (h *PingHandler) Health(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
