package report

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/catalog"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/common"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/compiler"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/datasource"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/engine"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

const borrowerDefinition = `<?xml version="1.0" encoding="UTF-8"?>
<jasperReport name="Borrower Statement">
	<parameter name="BorrowerKey" class="java.lang.Integer">
		<defaultValueExpression><![CDATA[0]]></defaultValueExpression>
	</parameter>
	<parameter name="Region" class="java.lang.String"/>
	<queryString><![CDATA[SELECT 1 AS one]]></queryString>
</jasperReport>`

// fakeEngine records the typed parameter set handed to Fill
type fakeEngine struct {
	mu         sync.Mutex
	fillParams map[string]any
}

func (f *fakeEngine) Compile(_ context.Context, source []byte) (any, error) {
	return string(source), nil
}

func (f *fakeEngine) Fill(_ context.Context, _ any, params map[string]any, _ *sql.Conn) (*engine.Result, error) {
	f.mu.Lock()
	f.fillParams = params
	f.mu.Unlock()
	return &engine.Result{Title: "t", Columns: []string{"one"}, Rows: [][]any{{int64(1)}}}, nil
}

func (f *fakeEngine) Export(*engine.Result, engine.Format) ([]byte, error) {
	return []byte("rendered"), nil
}

type fixture struct {
	svc    *Service
	eng    *fakeEngine
	cat    *catalog.Catalog
	dir    string
	cache  *compiler.Cache
}

func newFixture(t *testing.T, dataSources map[string]types.DataSourceConfig) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "borrower_statement.jrxml"), []byte(borrowerDefinition), 0644))

	cat, err := catalog.New(dir, nil)
	require.NoError(t, err)

	eng := &fakeEngine{}
	cache := compiler.NewCache(16, cat.Scanner, eng.Compile)
	cat.Scanner.OnEvict(cache.Remove)
	cat.Rescan()

	pools := datasource.NewManager(dataSources, common.NewResolver(nil))
	t.Cleanup(pools.Close)

	return &fixture{
		svc:   NewService(cat, cache, pools, eng, engine.FormatCSV),
		eng:   eng,
		cat:   cat,
		dir:   dir,
		cache: cache,
	}
}

func sqliteDataSources() map[string]types.DataSourceConfig {
	return map[string]types.DataSourceConfig{
		"demo": {URL: ":memory:", Username: "reports", Driver: "sqlite3"},
	}
}

func TestGenerate_UsesDefaultLiteral(t *testing.T) {
	f := newFixture(t, sqliteDataSources())

	out, err := f.svc.Generate(context.Background(), "borrower_statement", "demo", map[string]string{}, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered"), out)

	// BorrowerKey falls back to its default literal; Region has no value
	// from either source and is skipped entirely.
	assert.Equal(t, map[string]any{"BorrowerKey": int(0)}, f.eng.fillParams)
}

func TestGenerate_CallerValueBeatsDefault(t *testing.T) {
	f := newFixture(t, sqliteDataSources())

	_, err := f.svc.Generate(context.Background(), "borrower_statement", "demo",
		map[string]string{"BorrowerKey": "77", "Region": "WEST"}, "")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"BorrowerKey": int(77), "Region": "WEST"}, f.eng.fillParams)
}

func TestGenerate_BadValueIsOmittedNotFatal(t *testing.T) {
	f := newFixture(t, sqliteDataSources())

	_, err := f.svc.Generate(context.Background(), "borrower_statement", "demo",
		map[string]string{"BorrowerKey": "not-a-number"}, "")
	require.NoError(t, err)

	// unparseable caller value is dropped, and the default does not
	// resurrect it because the caller did supply a value
	_, present := f.eng.fillParams["BorrowerKey"]
	assert.False(t, present)
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	f := newFixture(t, sqliteDataSources())

	_, err := f.svc.Generate(context.Background(), "nope", "demo", nil, "")

	var notFound *types.ErrTemplateNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestGenerate_UnknownDataSource(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Generate(context.Background(), "borrower_statement", "demo", nil, "")

	var unknown *types.ErrUnknownDataSource
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "demo", unknown.Name)

	var compileErr *types.CompileError
	assert.False(t, errors.As(err, &compileErr), "must not be a compile error")
	var connErr *types.ConnectionError
	assert.False(t, errors.As(err, &connErr), "must not be a connection error")
}

func TestGenerate_DeletedTemplateDisappears(t *testing.T) {
	f := newFixture(t, sqliteDataSources())

	_, err := f.svc.Generate(context.Background(), "borrower_statement", "demo", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	require.NoError(t, os.Remove(filepath.Join(f.dir, "borrower_statement.jrxml")))
	assert.Equal(t, 0, f.svc.Rescan())

	assert.Empty(t, f.svc.ListTemplates())
	assert.Equal(t, 0, f.cache.Len())

	_, err = f.svc.Generate(context.Background(), "borrower_statement", "demo", nil, "")
	var notFound *types.ErrTemplateNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestListTemplates_SortedByDisplayName(t *testing.T) {
	f := newFixture(t, nil)

	zebra := `<jasperReport name="Zebra"><queryString><![CDATA[SELECT 1]]></queryString></jasperReport>`
	alpha := `<jasperReport name="Alpha"><queryString><![CDATA[SELECT 1]]></queryString></jasperReport>`
	require.NoError(t, f.svc.SaveTemplate("zebra.jrxml", []byte(zebra)))
	require.NoError(t, f.svc.SaveTemplate("alpha.jrxml", []byte(alpha)))

	list := f.svc.ListTemplates()
	require.Len(t, list, 3)
	assert.Equal(t, "Alpha", list[0].DisplayName)
	assert.Equal(t, "Borrower Statement", list[1].DisplayName)
	assert.Equal(t, "Zebra", list[2].DisplayName)
}
