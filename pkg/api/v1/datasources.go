package apiv1

import (
	"github.com/labstack/echo/v4"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/report"
)

type DataSourcesGroup struct {
	routerGroup *echo.Group
	service     *report.Service
}

type DataSourcesResponse struct {
	Names   []string `json:"names"`
	Default string   `json:"default,omitempty"`
}

type DataSourceTestResponse struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

func NewDataSourcesGroup(routerGroup *echo.Group, service *report.Service) *DataSourcesGroup {
	g := &DataSourcesGroup{
		routerGroup: routerGroup,
		service:     service,
	}
	g.registerRoutes()
	return g
}

func (g *DataSourcesGroup) registerRoutes() {
	g.routerGroup.GET("", g.ListDataSources)
	g.routerGroup.GET("/:name/test", g.TestDataSource)
}

// ListDataSources returns the configured names and the form default
func (g *DataSourcesGroup) ListDataSources(c echo.Context) error {
	return SuccessResponse(c, DataSourcesResponse{
		Names:   g.service.ListDataSourceNames(),
		Default: g.service.DefaultDataSourceName(),
	})
}

// TestDataSource checks out a connection and pings it, reporting a
// boolean rather than an error; an unknown name simply tests false.
func (g *DataSourcesGroup) TestDataSource(c echo.Context) error {
	name := c.Param("name")
	return SuccessResponse(c, DataSourceTestResponse{
		Name: name,
		OK:   g.service.TestDataSource(name),
	})
}
