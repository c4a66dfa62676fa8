package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/report"
)

type HealthGroup struct {
	routerGroup *echo.Group
	service     *report.Service
}

func NewHealthGroup(g *echo.Group, service *report.Service) *HealthGroup {
	group := &HealthGroup{routerGroup: g, service: service}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"templates": len(h.service.ListTemplates()),
	})
}
