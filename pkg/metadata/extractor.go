// Package metadata turns a template definition into its parameter
// contract: display name plus the ordered set of user-fillable
// parameters, with built-in engine parameters filtered out.
package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// builtInParameters are reserved names injected by the render engine.
// They must never surface as user-fillable inputs.
var builtInParameters = map[string]struct{}{
	"REPORT_CONNECTION":          {},
	"REPORT_DATA_SOURCE":         {},
	"REPORT_PARAMETERS_MAP":      {},
	"REPORT_LOCALE":              {},
	"REPORT_RESOURCE_BUNDLE":     {},
	"REPORT_TIME_ZONE":           {},
	"REPORT_VIRTUALIZER":         {},
	"REPORT_CLASS_LOADER":        {},
	"REPORT_URL_HANDLER_FACTORY": {},
	"REPORT_FILE_RESOLVER":       {},
	"REPORT_SCRIPTLET":           {},
	"REPORT_MAX_COUNT":           {},
	"IS_IGNORE_PAGINATION":       {},
	"REPORT_FORMAT_FACTORY":      {},
	"REPORT_TEMPLATES":           {},
	"REPORT_CONTEXT":             {},
	"JASPER_REPORTS_CONTEXT":     {},
	"FILTER":                     {},
}

// ErrDoctypeNotAllowed is returned for definitions carrying a DOCTYPE
// declaration. Entity expansion and DOCTYPE processing are rejected
// outright; this is a security contract, not an optimization.
var ErrDoctypeNotAllowed = errors.New("template definition contains a DOCTYPE declaration")

// Extract parses a template definition and returns its display name and
// ordered parameter contract. It is a pure function of the source bytes.
//
// On any parse error the returned display name falls back to the file's
// base name and the parameter list is empty; callers log the error and
// continue, a broken definition never aborts a scan.
func Extract(fileName string, source []byte) (string, []types.ParameterDescriptor, error) {
	fallback := types.DisplayNameFromFile(fileName)

	decoder := xml.NewDecoder(bytes.NewReader(source))
	decoder.Strict = true
	// decoder.Entity stays nil: only the predefined XML entities resolve,
	// custom entity references fail the parse in strict mode.

	displayName := ""
	rootSeen := false
	var params []types.ParameterDescriptor

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fallback, nil, err
		}

		switch t := tok.(type) {
		case xml.Directive:
			if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(string(t))), "DOCTYPE") {
				return fallback, nil, ErrDoctypeNotAllowed
			}
		case xml.StartElement:
			if !rootSeen {
				rootSeen = true
				displayName = attrValue(t, "name")
				continue
			}
			if t.Name.Local == "parameter" {
				param, keep, err := parseParameter(decoder, t)
				if err != nil {
					return fallback, nil, err
				}
				if keep {
					params = append(params, param)
				}
			}
		}
	}

	if !rootSeen {
		return fallback, nil, errors.New("empty template definition")
	}
	if displayName == "" {
		displayName = fallback
	}
	return displayName, params, nil
}

// parseParameter consumes one <parameter> subtree. keep is false for
// parameters that are filtered: unnamed, built-in, or marked not for
// prompting.
func parseParameter(decoder *xml.Decoder, start xml.StartElement) (types.ParameterDescriptor, bool, error) {
	name := attrValue(start, "name")
	paramType := types.ParamTypeFromClass(attrValue(start, "class"))
	forPrompting := attrValue(start, "isForPrompting")

	description := ""
	defaultExpr := ""
	hasDefault := false

	depth := 0
	child := ""
	var text strings.Builder

	for {
		tok, err := decoder.Token()
		if err != nil {
			return types.ParameterDescriptor{}, false, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				child = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 && child != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				// closing </parameter>
				if name == "" || !promptable(name, forPrompting) {
					return types.ParameterDescriptor{}, false, nil
				}
				param := types.ParameterDescriptor{
					Name:        name,
					Type:        paramType,
					Description: description,
					Required:    !hasDefault,
				}
				if hasDefault {
					param.Default = interpretLiteral(defaultExpr, paramType)
				}
				return param, true, nil
			}
			if depth == 1 {
				content := strings.TrimSpace(text.String())
				switch child {
				case "parameterDescription":
					description = content
				case "defaultValueExpression":
					defaultExpr = content
					hasDefault = true
				}
				child = ""
			}
			depth--
		}
	}
}

func promptable(name, forPrompting string) bool {
	if _, builtin := builtInParameters[name]; builtin {
		return false
	}
	return !strings.EqualFold(forPrompting, "false")
}

var (
	integerLiteral = regexp.MustCompile(`^-?\d+$`)
	numericLiteral = regexp.MustCompile(`^-?\d+\.?\d*[dDfF]?$`)
	typeSuffix     = regexp.MustCompile(`[dDfF]$`)
)

// interpretLiteral reduces a default-value expression to a plain literal
// of the declared type where possible. Expressions that are not simple
// literals are kept verbatim; conversion at generation time decides
// whether they are usable.
func interpretLiteral(expression string, paramType types.ParamType) string {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return ""
	}

	switch paramType {
	case types.ParamInteger, types.ParamLong, types.ParamShort:
		if integerLiteral.MatchString(trimmed) {
			return trimmed
		}
	case types.ParamBoolean:
		if strings.EqualFold(trimmed, "true") || strings.EqualFold(trimmed, "false") {
			return strings.ToLower(trimmed)
		}
	case types.ParamString:
		if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
			return trimmed[1 : len(trimmed)-1]
		}
	case types.ParamFloat, types.ParamDouble, types.ParamDecimal:
		if numericLiteral.MatchString(trimmed) {
			return typeSuffix.ReplaceAllString(trimmed, "")
		}
	}

	return trimmed
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
