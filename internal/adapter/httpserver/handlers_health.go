package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleHealthCheck answers 200 with an empty body whenever the server is routing requests.
func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
