package engine

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// paramRef matches $P{Name} references inside a template query
var paramRef = regexp.MustCompile(`\$P\{([^}]+)\}`)

// program is the compiled representation produced by the SQL engine:
// the template's query with parameter references rewritten to ordinal
// placeholders, plus the argument order and declared field names.
type program struct {
	Name    string
	Query   string
	Args    []string // parameter name per placeholder position
	Columns []string // declared fields; empty means use result columns
}

// SQLEngine is the reference engine: it compiles a template definition
// down to its embedded query and fills it by executing that query over
// the checked-out connection. Placeholders are rewritten to $1..$n, so
// targets must accept PostgreSQL-style ordinals.
type SQLEngine struct{}

func NewSQLEngine() *SQLEngine {
	return &SQLEngine{}
}

// Compile parses the definition and rewrites its query. Fails on
// malformed XML, a DOCTYPE declaration, or a missing query.
func (e *SQLEngine) Compile(ctx context.Context, source []byte) (any, error) {
	name, query, fields, err := parseDefinition(source)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("template has no query")
	}

	var args []string
	rewritten := paramRef.ReplaceAllStringFunc(query, func(match string) string {
		ref := paramRef.FindStringSubmatch(match)[1]
		args = append(args, ref)
		return fmt.Sprintf("$%d", len(args))
	})

	return &program{
		Name:    name,
		Query:   rewritten,
		Args:    args,
		Columns: fields,
	}, nil
}

// Fill executes the compiled query with the typed parameter set. A
// declared parameter with no value binds as NULL. The connection is
// used but never closed here; release is the caller's responsibility.
func (e *SQLEngine) Fill(ctx context.Context, prog any, params map[string]any, conn *sql.Conn) (*Result, error) {
	p, ok := prog.(*program)
	if !ok {
		return nil, fmt.Errorf("unexpected program type %T", prog)
	}

	args := make([]any, len(p.Args))
	for i, name := range p.Args {
		if v, ok := params[name]; ok {
			args[i] = v
		}
	}

	rows, err := conn.QueryContext(ctx, p.Query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute report query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	log.Debug().Str("report", p.Name).Int("rows", len(out)).Msg("report filled")

	return &Result{
		Title:       p.Name,
		Columns:     columns,
		Rows:        out,
		Parameters:  params,
		GeneratedAt: time.Now(),
	}, nil
}

// Export encodes a filled result as CSV or HTML
func (e *SQLEngine) Export(result *Result, format Format) ([]byte, error) {
	switch format {
	case FormatHTML:
		return exportHTML(result)
	case FormatCSV, "":
		return exportCSV(result)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportCSV(result *Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(result.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = cellString(row[i])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var htmlReport = template.Must(template.New("report").
	Funcs(template.FuncMap{"cell": cellString}).
	Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
<table border="1" cellspacing="0" cellpadding="4">
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{cell .}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

func exportHTML(result *Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format(time.RFC3339)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// parseDefinition pulls the root name, query text, and field names out
// of a template definition, rejecting DOCTYPE input the same way the
// metadata extractor does.
func parseDefinition(source []byte) (name, query string, fields []string, err error) {
	decoder := xml.NewDecoder(bytes.NewReader(source))
	decoder.Strict = true

	rootSeen := false
	inQuery := false
	var queryBuf strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", nil, err
		}

		switch t := tok.(type) {
		case xml.Directive:
			if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(string(t))), "DOCTYPE") {
				return "", "", nil, errors.New("template definition contains a DOCTYPE declaration")
			}
		case xml.StartElement:
			if !rootSeen {
				rootSeen = true
				for _, a := range t.Attr {
					if a.Name.Local == "name" {
						name = a.Value
					}
				}
				continue
			}
			switch t.Name.Local {
			case "queryString":
				inQuery = true
				queryBuf.Reset()
			case "field":
				for _, a := range t.Attr {
					if a.Name.Local == "name" {
						fields = append(fields, a.Value)
					}
				}
			}
		case xml.CharData:
			if inQuery {
				queryBuf.Write(t)
			}
		case xml.EndElement:
			if inQuery && t.Name.Local == "queryString" {
				inQuery = false
				query = strings.TrimSpace(queryBuf.String())
			}
		}
	}

	if !rootSeen {
		return "", "", nil, errors.New("empty template definition")
	}
	return name, query, fields, nil
}
