package apiv1

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/engine"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/report"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// Query parameters with transport meaning; everything else on a
// generate request is treated as a report parameter.
const (
	queryParamDataSource = "dataSource"
	queryParamFormat     = "format"
)

const maxUploadBytes = 4 << 20 // 4 MiB is generous for an XML definition

type ReportsGroup struct {
	routerGroup *echo.Group
	service     *report.Service
}

type ParameterResponse struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required"`
	InputHint   string `json:"input_hint"`
}

type TemplateResponse struct {
	Key         string              `json:"key"`
	FileName    string              `json:"file_name"`
	DisplayName string              `json:"display_name"`
	Origin      string              `json:"origin"`
	Parameters  []ParameterResponse `json:"parameters"`
}

type UploadInfoResponse struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

func NewReportsGroup(routerGroup *echo.Group, service *report.Service) *ReportsGroup {
	g := &ReportsGroup{
		routerGroup: routerGroup,
		service:     service,
	}
	g.registerRoutes()
	return g
}

func (g *ReportsGroup) registerRoutes() {
	g.routerGroup.GET("", g.ListReports)
	g.routerGroup.POST("", g.UploadReport)
	g.routerGroup.POST("/rescan", g.Rescan)
	g.routerGroup.GET("/upload-info", g.UploadInfo)
	g.routerGroup.GET("/:key", g.GetReport)
	g.routerGroup.DELETE("/:key", g.DeleteReport)
	g.routerGroup.GET("/:key/generate", g.GenerateReport)
	g.routerGroup.POST("/:key/generate", g.GenerateReport)
}

// ListReports returns every known template, sorted by display name
func (g *ReportsGroup) ListReports(c echo.Context) error {
	descriptors := g.service.ListTemplates()

	templates := make([]TemplateResponse, 0, len(descriptors))
	for _, d := range descriptors {
		templates = append(templates, templateToResponse(d))
	}

	return SuccessResponse(c, templates)
}

// GetReport returns a single template with its full parameter contract
func (g *ReportsGroup) GetReport(c echo.Context) error {
	d, err := g.service.GetTemplate(c.Param("key"))
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	return SuccessResponse(c, templateToResponse(d))
}

// GenerateReport runs the full pipeline and streams the rendered
// document. Report parameters arrive as query parameters (GET) or form
// fields (POST); dataSource and format are reserved names.
func (g *ReportsGroup) GenerateReport(c echo.Context) error {
	key := c.Param("key")

	var format engine.Format
	if raw := c.QueryParam(queryParamFormat); raw != "" {
		parsed, err := engine.ParseFormat(raw)
		if err != nil {
			return ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		format = parsed
	}
	if format == "" {
		format = g.service.DefaultFormat()
	}

	dataSourceName := c.QueryParam(queryParamDataSource)
	if dataSourceName == "" {
		dataSourceName = g.service.DefaultDataSourceName()
	}

	raw := g.collectParameters(c)

	out, err := g.service.Generate(c.Request().Context(), key, dataSourceName, raw, format)
	if err != nil {
		log.Error().Err(err).Str("template", key).Msg("report generation failed")
		return DomainErrorResponse(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("inline; filename=%q", key+"."+string(format)))
	return c.Blob(http.StatusOK, format.ContentType(), out)
}

func (g *ReportsGroup) collectParameters(c echo.Context) map[string]string {
	raw := make(map[string]string)

	for name, values := range c.QueryParams() {
		if name == queryParamDataSource || name == queryParamFormat || len(values) == 0 {
			continue
		}
		raw[name] = values[0]
	}

	// form fields override query parameters on POST
	if form, err := c.FormParams(); err == nil {
		for name, values := range form {
			if name == queryParamDataSource || name == queryParamFormat || len(values) == 0 {
				continue
			}
			raw[name] = values[0]
		}
	}

	return raw
}

// Rescan triggers a synchronous catalog scan
func (g *ReportsGroup) Rescan(c echo.Context) error {
	count := g.service.Rescan()
	return SuccessResponse(c, map[string]int{"templates": count})
}

// UploadInfo reports whether uploads are enabled and where they land
func (g *ReportsGroup) UploadInfo(c echo.Context) error {
	return SuccessResponse(c, UploadInfoResponse{
		Enabled: g.service.UploadEnabled(),
		Path:    g.service.WritableDirectoryPath(),
	})
}

// UploadReport stores a template definition in the writable location.
// Accepts a multipart "file" part or a raw body with X-File-Name.
func (g *ReportsGroup) UploadReport(c echo.Context) error {
	if !g.service.UploadEnabled() {
		return ErrorResponse(c, http.StatusForbidden, "template uploads are disabled")
	}

	fileName, content, err := readUpload(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}

	if err := g.service.SaveTemplate(fileName, content); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}

	return SuccessResponse(c, map[string]string{
		"key": types.TemplateKey(fileName),
	})
}

// DeleteReport removes a template from the writable location by key
func (g *ReportsGroup) DeleteReport(c echo.Context) error {
	d, err := g.service.GetTemplate(c.Param("key"))
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	if err := g.service.DeleteTemplate(d.FileName); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}

	return SuccessResponse(c, map[string]string{"deleted": d.Key})
}

func readUpload(c echo.Context) (string, []byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		if file.Size > maxUploadBytes {
			return "", nil, fmt.Errorf("template exceeds the %d byte upload limit", maxUploadBytes)
		}
		src, err := file.Open()
		if err != nil {
			return "", nil, err
		}
		defer src.Close()

		content, err := io.ReadAll(io.LimitReader(src, maxUploadBytes))
		if err != nil {
			return "", nil, err
		}
		return file.Filename, content, nil
	}

	fileName := c.Request().Header.Get("X-File-Name")
	if fileName == "" {
		return "", nil, fmt.Errorf("missing multipart file part and X-File-Name header")
	}

	content, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUploadBytes))
	if err != nil {
		return "", nil, err
	}
	return fileName, content, nil
}

func templateToResponse(d *types.TemplateDescriptor) TemplateResponse {
	params := make([]ParameterResponse, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		params = append(params, ParameterResponse{
			Name:        p.Name,
			Type:        string(p.Type),
			Description: p.Description,
			Default:     p.Default,
			Required:    p.Required,
			InputHint:   p.InputHint(),
		})
	}

	return TemplateResponse{
		Key:         d.Key,
		FileName:    d.FileName,
		DisplayName: d.DisplayName,
		Origin:      string(d.Origin),
		Parameters:  params,
	}
}
