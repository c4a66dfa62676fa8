// Package report is the generation orchestrator: it ties the template
// catalog, the compiled artifact cache, the connection pool manager,
// and the render engine into the operations exposed to the controller
// layer.
package report

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/catalog"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/compiler"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/datasource"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/engine"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

type Service struct {
	catalog       *catalog.Catalog
	cache         *compiler.Cache
	pools         *datasource.Manager
	engine        engine.Engine
	defaultFormat engine.Format
}

func NewService(cat *catalog.Catalog, cache *compiler.Cache, pools *datasource.Manager, eng engine.Engine, defaultFormat engine.Format) *Service {
	if defaultFormat == "" {
		defaultFormat = engine.FormatCSV
	}
	return &Service{
		catalog:       cat,
		cache:         cache,
		pools:         pools,
		engine:        eng,
		defaultFormat: defaultFormat,
	}
}

// ListTemplates returns all known templates sorted by display name
func (s *Service) ListTemplates() []*types.TemplateDescriptor {
	return s.catalog.Store.List()
}

// GetTemplate resolves a template by key
func (s *Service) GetTemplate(key string) (*types.TemplateDescriptor, error) {
	d, ok := s.catalog.Store.Get(key)
	if !ok {
		return nil, &types.ErrTemplateNotFound{Key: key}
	}
	return d, nil
}

// Generate renders a report: resolve the descriptor, get the compiled
// artifact, convert raw parameters against the contract, check out a
// connection, fill, export. The connection is released on every exit
// path.
func (s *Service) Generate(ctx context.Context, key, dataSourceName string, raw map[string]string, format engine.Format) ([]byte, error) {
	d, err := s.GetTemplate(key)
	if err != nil {
		return nil, err
	}

	artifact, err := s.cache.Get(ctx, d)
	if err != nil {
		return nil, err
	}

	typed := s.typedParameters(d, raw)

	conn, err := s.pools.Acquire(ctx, dataSourceName)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result, err := s.engine.Fill(ctx, artifact.Program, typed, conn)
	if err != nil {
		return nil, &types.FillError{Key: key, Cause: err}
	}

	if format == "" {
		format = s.defaultFormat
	}
	out, err := s.engine.Export(result, format)
	if err != nil {
		return nil, &types.FillError{Key: key, Cause: err}
	}

	log.Info().
		Str("template", key).
		Str("datasource", dataSourceName).
		Str("format", string(format)).
		Msg("report generated")

	return out, nil
}

// typedParameters applies the parameter contract: caller value, else
// default literal, else skip; a value that fails conversion is logged
// and omitted, it never aborts the call.
func (s *Service) typedParameters(d *types.TemplateDescriptor, raw map[string]string) map[string]any {
	typed := make(map[string]any, len(d.Parameters))

	for _, p := range d.Parameters {
		value := raw[p.Name]
		if value == "" {
			value = p.Default
		}
		if value == "" {
			continue
		}

		v, err := Convert(value, p.Type)
		if err != nil {
			convErr := &types.ConversionError{Parameter: p.Name, Value: value, Type: p.Type, Cause: err}
			log.Warn().Err(convErr).Str("template", d.Key).Msg("parameter omitted")
			continue
		}
		typed[p.Name] = v
	}

	return typed
}

// DefaultFormat returns the export format used when none is requested
func (s *Service) DefaultFormat() engine.Format {
	return s.defaultFormat
}

// ListDataSourceNames returns the configured data source names, sorted
func (s *Service) ListDataSourceNames() []string {
	return s.pools.Names()
}

// DefaultDataSourceName returns the preferred data source for forms
func (s *Service) DefaultDataSourceName() string {
	return s.pools.DefaultName()
}

// TestDataSource validates connectivity, reporting a boolean
func (s *Service) TestDataSource(name string) bool {
	return s.pools.TestConnection(name)
}

// Rescan triggers a synchronous scan and returns the template count
func (s *Service) Rescan() int {
	return s.catalog.Rescan()
}

// SaveTemplate stores an uploaded definition in the writable location
func (s *Service) SaveTemplate(fileName string, content []byte) error {
	return s.catalog.SaveTemplate(fileName, content)
}

// DeleteTemplate removes a definition from the writable location
func (s *Service) DeleteTemplate(fileName string) error {
	return s.catalog.DeleteTemplate(fileName)
}

// UploadEnabled reports whether a writable location is configured
func (s *Service) UploadEnabled() bool {
	return s.catalog.UploadEnabled()
}

// WritableDirectoryPath returns the writable location for display
func (s *Service) WritableDirectoryPath() string {
	return s.catalog.WritableDirectoryPath()
}
