package types

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned when no template exists for a key
type ErrTemplateNotFound struct {
	Key string
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template not found: %s", e.Key)
}

// From checks if the given error is an ErrTemplateNotFound
func (e *ErrTemplateNotFound) From(err error) bool {
	var notFound *ErrTemplateNotFound
	return errors.As(err, &notFound)
}

// ErrUnknownDataSource is returned when no data source is configured under a name
type ErrUnknownDataSource struct {
	Name string
}

func (e *ErrUnknownDataSource) Error() string {
	return fmt.Sprintf("unknown data source: %s", e.Name)
}

// From checks if the given error is an ErrUnknownDataSource
func (e *ErrUnknownDataSource) From(err error) bool {
	var unknown *ErrUnknownDataSource
	return errors.As(err, &unknown)
}

// CompileError is returned when the external compile step fails for a template
type CompileError struct {
	Key   string
	Cause error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile failed for template %s: %v", e.Key, e.Cause)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// ConnectionError is returned when pool creation or connection acquisition fails.
// The message never contains credentials; callers log redacted URLs only.
type ConnectionError struct {
	Name  string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed for data source %s: %v", e.Name, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// FillError is returned when the external fill/export step fails
type FillError struct {
	Key   string
	Cause error
}

func (e *FillError) Error() string {
	return fmt.Sprintf("fill failed for template %s: %v", e.Key, e.Cause)
}

func (e *FillError) Unwrap() error {
	return e.Cause
}

// ConversionError describes a single parameter value that could not be
// converted to its declared type. It is logged and the parameter omitted,
// never surfaced to the caller of Generate.
type ConversionError struct {
	Parameter string
	Value     string
	Type      ParamType
	Cause     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert parameter %s value %q to %s: %v", e.Parameter, e.Value, e.Type, e.Cause)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}
