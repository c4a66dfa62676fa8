package apiv1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

const (
	HttpServerBaseRoute string = "/api/v1"
	HttpServerRootRoute string = ""
)

// Response is a standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse returns a successful response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse returns an error response
func ErrorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{
		Success: false,
		Error:   message,
	})
}

// DomainErrorResponse maps the service error taxonomy onto HTTP status
// codes. A missing template or data source is the caller's mistake, a
// broken definition is unprocessable, an unreachable database is a bad
// gateway, and everything else is on us.
func DomainErrorResponse(c echo.Context, err error) error {
	var notFound *types.ErrTemplateNotFound
	if errors.As(err, &notFound) {
		return ErrorResponse(c, http.StatusNotFound, err.Error())
	}

	var unknownDS *types.ErrUnknownDataSource
	if errors.As(err, &unknownDS) {
		return ErrorResponse(c, http.StatusNotFound, err.Error())
	}

	var compileErr *types.CompileError
	if errors.As(err, &compileErr) {
		return ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
	}

	var connErr *types.ConnectionError
	if errors.As(err, &connErr) {
		return ErrorResponse(c, http.StatusBadGateway, err.Error())
	}

	return ErrorResponse(c, http.StatusInternalServerError, err.Error())
}
