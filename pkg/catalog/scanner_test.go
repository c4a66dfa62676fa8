package catalog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

func definition(name string) string {
	return `<jasperReport name="` + name + `"><queryString><![CDATA[SELECT 1]]></queryString></jasperReport>`
}

func bundleFS(files map[string]string) fstest.MapFS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}

// evictRecorder captures artifact eviction callbacks
type evictRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *evictRecorder) record(key string) {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
}

func (r *evictRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func TestScanner_WritableShadowsBundle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "monthly_summary.jrxml"),
		[]byte(definition("Writable Copy")), 0644))

	bundle := bundleFS(map[string]string{
		"monthly_summary.jrxml": definition("Bundled Copy"),
		"audit_trail.jrxml":     definition("Audit Trail"),
	})

	store := NewStore()
	NewScanner(store, dir, bundle).Scan()

	require.Equal(t, 2, store.Len())

	d, ok := store.Get("monthly_summary")
	require.True(t, ok)
	assert.Equal(t, "Writable Copy", d.DisplayName)
	assert.Equal(t, types.OriginFilesystem, d.Origin)

	d, ok = store.Get("audit_trail")
	require.True(t, ok)
	assert.Equal(t, types.OriginBundle, d.Origin)
}

func TestScanner_ModificationReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.jrxml")
	require.NoError(t, os.WriteFile(path, []byte(definition("Before")), 0644))

	store := NewStore()
	scanner := NewScanner(store, dir, nil)
	recorder := &evictRecorder{}
	scanner.OnEvict(recorder.record)

	scanner.Scan()
	loads := recorder.count()
	assert.Equal(t, 1, loads)

	// unchanged file is not re-extracted
	scanner.Scan()
	assert.Equal(t, loads, recorder.count())

	require.NoError(t, os.WriteFile(path, []byte(definition("After")), 0644))
	// bump the mtime past filesystem timestamp granularity
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	scanner.Scan()
	assert.Equal(t, loads+1, recorder.count())

	d, ok := store.Get("report")
	require.True(t, ok)
	assert.Equal(t, "After", d.DisplayName)
}

func TestScanner_RemovedSourceDropsEverywhere(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transient.jrxml")
	require.NoError(t, os.WriteFile(path, []byte(definition("Transient")), 0644))

	store := NewStore()
	scanner := NewScanner(store, dir, nil)
	recorder := &evictRecorder{}
	scanner.OnEvict(recorder.record)

	scanner.Scan()
	require.Equal(t, 1, store.Len())

	require.NoError(t, os.Remove(path))
	evictionsBefore := recorder.count()
	scanner.Scan()

	assert.Equal(t, 0, store.Len())
	assert.Greater(t, recorder.count(), evictionsBefore)

	// and a fresh file with the same name loads again from scratch
	require.NoError(t, os.WriteFile(path, []byte(definition("Transient")), 0644))
	scanner.Scan()
	assert.Equal(t, 1, store.Len())
}

func TestScanner_BundleLoadsOnce(t *testing.T) {
	bundle := bundleFS(map[string]string{"fixed.jrxml": definition("Fixed")})

	store := NewStore()
	scanner := NewScanner(store, "", bundle)
	recorder := &evictRecorder{}
	scanner.OnEvict(recorder.record)

	scanner.Scan()
	scanner.Scan()
	scanner.Scan()

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, recorder.count())
}

func TestScanner_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jrxml"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.jrxml"), []byte(definition("Real")), 0644))

	store := NewStore()
	NewScanner(store, dir, nil).Scan()

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("real")
	assert.True(t, ok)
}

func TestScanner_SourceForPrecedence(t *testing.T) {
	dir := t.TempDir()
	bundle := bundleFS(map[string]string{"shared.jrxml": definition("Bundled")})

	store := NewStore()
	scanner := NewScanner(store, dir, bundle)
	scanner.Scan()

	d, ok := store.Get("shared")
	require.True(t, ok)

	source, err := scanner.SourceFor(d)
	require.NoError(t, err)
	assert.Contains(t, string(source), "Bundled")

	// a writable file with the same name wins from now on
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.jrxml"),
		[]byte(definition("Overridden")), 0644))

	source, err = scanner.SourceFor(d)
	require.NoError(t, err)
	assert.Contains(t, string(source), "Overridden")
}
