// Package catalog owns template discovery: the descriptor store, the
// source scanner with hot-reload fingerprinting, and the writable
// location used for uploads.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// Catalog bundles the descriptor store and scanner and implements the
// template management operations exposed to the controller layer.
type Catalog struct {
	Store   *Store
	Scanner *Scanner

	writableDir string
}

// New creates a catalog over an optional writable directory and an
// optional bundled template filesystem. The writable directory is
// created if it does not exist.
func New(writableDir string, bundle fs.FS) (*Catalog, error) {
	if writableDir != "" {
		if err := os.MkdirAll(writableDir, 0755); err != nil {
			return nil, fmt.Errorf("create writable template directory: %w", err)
		}
	}

	store := NewStore()
	return &Catalog{
		Store:       store,
		Scanner:     NewScanner(store, writableDir, bundle),
		writableDir: writableDir,
	}, nil
}

// Rescan runs a scan pass and returns the number of known templates
func (c *Catalog) Rescan() int {
	c.Scanner.Scan()
	return c.Store.Len()
}

// UploadEnabled reports whether a writable location is configured
func (c *Catalog) UploadEnabled() bool {
	return c.writableDir != ""
}

// WritableDirectoryPath returns the writable location for display
// purposes, or "bundle" when only bundled templates are served.
func (c *Catalog) WritableDirectoryPath() string {
	if c.writableDir == "" {
		return "bundle"
	}
	return c.writableDir
}

// SaveTemplate writes an uploaded definition into the writable location
// and rescans so it is immediately listed. The file name is reduced to
// its base name before any filesystem access; a traversal attempt like
// ../../etc/x.jrxml lands in the writable directory or nowhere.
func (c *Catalog) SaveTemplate(fileName string, content []byte) error {
	if c.writableDir == "" {
		return fmt.Errorf("no writable template directory configured")
	}
	if !strings.HasSuffix(fileName, types.TemplateExtension) {
		return fmt.Errorf("template file must have the %s extension", types.TemplateExtension)
	}

	name := filepath.Base(filepath.Clean(fileName))
	if name == "." || name == string(filepath.Separator) || !strings.HasSuffix(name, types.TemplateExtension) {
		return fmt.Errorf("invalid template file name")
	}

	target := filepath.Join(c.writableDir, name)
	tmp := fmt.Sprintf("%s.%s.tmp", target, uuid.New().String()[:8])

	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write template: %w", err)
	}

	log.Info().Str("file", name).Msg("template saved")
	c.Scanner.Scan()
	return nil
}

// DeleteTemplate removes a definition from the writable location and
// rescans. A bundled template with the same key reappears on the next
// scan; only writable files can be deleted.
func (c *Catalog) DeleteTemplate(fileName string) error {
	if c.writableDir == "" {
		return fmt.Errorf("no writable template directory configured")
	}

	name := filepath.Base(filepath.Clean(fileName))
	target := filepath.Join(c.writableDir, name)

	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("template %s not found in writable directory", name)
		}
		return fmt.Errorf("stat template: %w", err)
	}

	if err := os.Remove(target); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	log.Info().Str("file", name).Msg("template deleted")
	c.Scanner.Scan()
	return nil
}
