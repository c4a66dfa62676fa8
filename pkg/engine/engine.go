// Package engine defines the boundary to the report render engine: an
// opaque compile step and a fill/export step that runs against a pooled
// database connection. The caching and pooling layers treat the engine
// as a black box; a reference SQL engine ships in this package so the
// pipeline runs end to end without a JVM sidecar.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Format selects the export encoding for a filled report
type Format string

const (
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat validates a caller-supplied format, defaulting to CSV
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatHTML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Result is a filled report prior to export
type Result struct {
	Title       string
	Columns     []string
	Rows        [][]any
	Parameters  map[string]any
	GeneratedAt time.Time
}

// Engine is the external compile/render collaborator. Compile returns
// an opaque program; Fill executes it over a connection the caller owns
// and releases; Export encodes the filled result.
type Engine interface {
	Compile(ctx context.Context, source []byte) (any, error)
	Fill(ctx context.Context, program any, params map[string]any, conn *sql.Conn) (*Result, error)
	Export(result *Result, format Format) ([]byte, error)
}
