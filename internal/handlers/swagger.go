package handlers

// @title Fieldline Inbox API
// @version 1.0.0
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// The document is written to docs/ and embedded by package docs.
//go:generate go run github.com/swaggo/swag/cmd/swag@latest init -g swagger.go -o ../../docs --outputTypes json --parseDependency --parseInternal

// SwaggerHandler serves the OpenAPI document and a UI for it.
type SwaggerHandler struct {
	doc    []byte
	logger *slog.Logger
}

func NewSwaggerHandler(log *slog.Logger, doc []byte) *SwaggerHandler {
	h := &SwaggerHandler{doc: doc, logger: log.With(slog.String("handler", "swagger"))}
	if len(doc) == 0 {
		h.logger.Warn("api document is empty; run go generate ./internal/handlers")
	}
	return h
}

func (h *SwaggerHandler) Register(e *echo.Echo) {
	e.GET("/api/swagger.json", h.Spec)
	e.GET("/api/docs", h.UI)
	e.GET("/api/docs/", h.UI)
}

func (h *SwaggerHandler) Spec(c echo.Context) error {
	if len(h.doc) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "api document not generated")
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, h.doc)
}

func (h *SwaggerHandler) UI(c echo.Context) error {
	return c.HTML(http.StatusOK, swaggerUIHTML)
}

const swaggerUIHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Fieldline API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({ url: '/api/swagger.json', dom_id: '#swagger-ui', persistAuthorization: true });
      };
    </script>
  </body>
</html>`
