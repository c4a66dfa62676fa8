package types

import (
	"path/filepath"
	"strings"
	"time"
)

// TemplateExtension is the file extension for report template definitions
const TemplateExtension = ".jrxml"

// ParamType is the closed set of parameter types a template may declare.
// Unknown declared types fall back to ParamString.
type ParamType string

const (
	ParamString    ParamType = "string"
	ParamInteger   ParamType = "integer"
	ParamLong      ParamType = "long"
	ParamShort     ParamType = "short"
	ParamFloat     ParamType = "float"
	ParamDouble    ParamType = "double"
	ParamDecimal   ParamType = "decimal"
	ParamBoolean   ParamType = "boolean"
	ParamDate      ParamType = "date"
	ParamTimestamp ParamType = "timestamp"
)

// paramTypesByClass maps declared class names (JasperReports Java class
// names and bare aliases) to the closed ParamType set.
var paramTypesByClass = map[string]ParamType{
	"java.lang.string":     ParamString,
	"string":               ParamString,
	"java.lang.integer":    ParamInteger,
	"integer":              ParamInteger,
	"int":                  ParamInteger,
	"java.lang.long":       ParamLong,
	"long":                 ParamLong,
	"java.lang.short":      ParamShort,
	"short":                ParamShort,
	"java.lang.float":      ParamFloat,
	"float":                ParamFloat,
	"java.lang.double":     ParamDouble,
	"double":               ParamDouble,
	"java.math.bigdecimal": ParamDecimal,
	"decimal":              ParamDecimal,
	"java.lang.boolean":    ParamBoolean,
	"boolean":              ParamBoolean,
	"java.util.date":       ParamDate,
	"java.sql.date":        ParamDate,
	"date":                 ParamDate,
	"java.sql.timestamp":   ParamTimestamp,
	"timestamp":            ParamTimestamp,
	"datetime":             ParamTimestamp,
}

// ParamTypeFromClass resolves a declared type tag to a ParamType.
// Unknown or empty values default to ParamString.
func ParamTypeFromClass(class string) ParamType {
	if t, ok := paramTypesByClass[strings.ToLower(strings.TrimSpace(class))]; ok {
		return t
	}
	return ParamString
}

// inputHints maps each ParamType to the HTML input type used by form renderers
var inputHints = map[ParamType]string{
	ParamString:    "text",
	ParamInteger:   "number",
	ParamLong:      "number",
	ParamShort:     "number",
	ParamFloat:     "number",
	ParamDouble:    "number",
	ParamDecimal:   "number",
	ParamBoolean:   "checkbox",
	ParamDate:      "date",
	ParamTimestamp: "datetime-local",
}

// InputHint returns the HTML input type for this parameter type
func (t ParamType) InputHint() string {
	if hint, ok := inputHints[t]; ok {
		return hint
	}
	return "text"
}

// IsNumeric reports whether values of this type parse as numbers
func (t ParamType) IsNumeric() bool {
	switch t {
	case ParamInteger, ParamLong, ParamShort, ParamFloat, ParamDouble, ParamDecimal:
		return true
	}
	return false
}

// ParameterDescriptor describes one user-fillable template parameter.
// Immutable once extracted.
type ParameterDescriptor struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Default     string    `json:"default,omitempty"` // literal text, interpreted lazily at generation time
	Required    bool      `json:"required"`
}

// InputHint returns the HTML input type for form rendering
func (p ParameterDescriptor) InputHint() string {
	return p.Type.InputHint()
}

// SourceOrigin identifies where a template definition was discovered
type SourceOrigin string

const (
	OriginFilesystem SourceOrigin = "filesystem" // writable location (development or uploads)
	OriginBundle     SourceOrigin = "bundle"     // read-only bundled location
)

// TemplateDescriptor holds the extracted metadata for one template.
// Descriptors are replaced wholesale on every rescan that detects a
// change and are never mutated in place.
type TemplateDescriptor struct {
	Key         string                `json:"id"`
	FileName    string                `json:"file_name"`
	DisplayName string                `json:"display_name"`
	Origin      SourceOrigin          `json:"origin"`
	Path        string                `json:"path"`
	Parameters  []ParameterDescriptor `json:"parameters"`
	Fingerprint int64                 `json:"-"` // source mtime, UnixNano; 0 for bundled entries
	ExtractedAt time.Time             `json:"extracted_at"`
}

// TemplateKey derives the stable identity for a template from its file
// name: extension stripped, spaces replaced with dashes.
func TemplateKey(fileName string) string {
	name := filepath.Base(fileName)
	name = strings.TrimSuffix(name, TemplateExtension)
	return strings.ReplaceAll(name, " ", "-")
}

// DisplayNameFromFile derives a fallback display name from a file name
func DisplayNameFromFile(fileName string) string {
	return strings.TrimSuffix(filepath.Base(fileName), TemplateExtension)
}

// CompiledArtifact pairs an opaque compiled representation with the
// fingerprint of the source it was compiled from. An artifact is valid
// exactly while its fingerprint matches the descriptor's current one.
type CompiledArtifact struct {
	Key         string
	Fingerprint int64
	Program     any // opaque, owned by the render engine
	CompiledAt  time.Time
}
