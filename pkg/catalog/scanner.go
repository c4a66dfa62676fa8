package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/metadata"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// Scanner discovers template definitions in the writable filesystem
// location and the read-only bundle, tracking modification fingerprints
// to drive hot-reload. A writable entry shadows a bundled entry with the
// same key; this precedence is deliberate and documented policy, not an
// accident of iteration order.
type Scanner struct {
	store       *Store
	writableDir string // empty when no writable location is configured
	bundle      fs.FS  // nil when no bundle is configured

	scanMu sync.Mutex // serializes scan passes

	fpMu         sync.RWMutex
	fingerprints map[string]int64

	evictMu sync.RWMutex
	evict   func(key string) // invalidates cached compiled artifacts
}

func NewScanner(store *Store, writableDir string, bundle fs.FS) *Scanner {
	return &Scanner{
		store:        store,
		writableDir:  writableDir,
		bundle:       bundle,
		fingerprints: make(map[string]int64),
	}
}

// OnEvict registers the callback invoked whenever a template is reloaded
// or removed, so stale compiled artifacts never outlive a fingerprint
// change.
func (s *Scanner) OnEvict(fn func(key string)) {
	s.evictMu.Lock()
	s.evict = fn
	s.evictMu.Unlock()
}

// Scan enumerates both source locations and reconciles the descriptor
// store: new or modified entries are re-extracted, entries whose backing
// source disappeared are removed everywhere. Safe to call concurrently
// with in-flight generation requests. Returns the set of current keys.
func (s *Scanner) Scan() map[string]struct{} {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	found := make(map[string]struct{})

	if s.writableDir != "" {
		s.scanWritable(found)
	}
	if s.bundle != nil {
		s.scanBundle(found)
	}

	for _, key := range s.store.RemoveAbsent(found) {
		s.dropFingerprint(key)
		s.evictArtifact(key)
		log.Info().Str("template", key).Msg("template removed, source disappeared")
	}

	log.Debug().Int("count", s.store.Len()).Msg("template scan complete")
	return found
}

func (s *Scanner) scanWritable(found map[string]struct{}) {
	entries, err := os.ReadDir(s.writableDir)
	if err != nil {
		log.Error().Err(err).Str("dir", s.writableDir).Msg("cannot read writable template directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), types.TemplateExtension) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable template entry")
			continue
		}

		key := types.TemplateKey(entry.Name())
		found[key] = struct{}{}

		fingerprint := info.ModTime().UnixNano()
		if current, ok := s.fingerprint(key); ok && current == fingerprint {
			continue
		}

		path := filepath.Join(s.writableDir, entry.Name())
		source, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable template entry")
			delete(found, key)
			continue
		}

		s.load(key, entry.Name(), path, types.OriginFilesystem, fingerprint, source)
	}
}

func (s *Scanner) scanBundle(found map[string]struct{}) {
	entries, err := fs.ReadDir(s.bundle, ".")
	if err != nil {
		log.Error().Err(err).Msg("cannot read bundled template location")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), types.TemplateExtension) {
			continue
		}

		key := types.TemplateKey(entry.Name())
		if _, shadowed := found[key]; shadowed {
			// writable location takes precedence on name collision
			continue
		}
		found[key] = struct{}{}

		// Bundled sources are immutable; embedded files carry a zero
		// mtime, so the fingerprint is constant and each bundle entry
		// loads exactly once per process.
		var fingerprint int64
		if info, err := entry.Info(); err == nil {
			fingerprint = info.ModTime().UnixNano()
		}

		if current, ok := s.fingerprint(key); ok && current == fingerprint {
			continue
		}

		source, err := fs.ReadFile(s.bundle, entry.Name())
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable bundled template")
			delete(found, key)
			continue
		}

		s.load(key, entry.Name(), "bundle:"+entry.Name(), types.OriginBundle, fingerprint, source)
	}
}

// load extracts metadata and replaces the store entry, evicting any
// cached artifact so the next generation recompiles.
func (s *Scanner) load(key, fileName, path string, origin types.SourceOrigin, fingerprint int64, source []byte) {
	displayName, params, err := metadata.Extract(fileName, source)
	if err != nil {
		// Broken definitions still get listed under their file name with
		// no parameters; generation will surface the compile failure.
		log.Warn().Err(err).Str("file", fileName).Msg("template metadata extraction failed")
	}

	s.store.Put(&types.TemplateDescriptor{
		Key:         key,
		FileName:    fileName,
		DisplayName: displayName,
		Origin:      origin,
		Path:        path,
		Parameters:  params,
		Fingerprint: fingerprint,
		ExtractedAt: time.Now(),
	})
	s.setFingerprint(key, fingerprint)
	s.evictArtifact(key)

	log.Info().Str("template", key).Str("origin", string(origin)).Msg("template loaded")
}

// SourceFor resolves the current source bytes for a descriptor, checking
// the writable location first and falling back to the bundle, the same
// precedence the scan applies.
func (s *Scanner) SourceFor(d *types.TemplateDescriptor) ([]byte, error) {
	if s.writableDir != "" {
		path := filepath.Join(s.writableDir, d.FileName)
		if source, err := os.ReadFile(path); err == nil {
			return source, nil
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read template source %s: %w", d.FileName, err)
		}
	}

	if s.bundle != nil {
		if source, err := fs.ReadFile(s.bundle, d.FileName); err == nil {
			return source, nil
		}
	}

	return nil, fmt.Errorf("template source %s no longer exists", d.FileName)
}

func (s *Scanner) fingerprint(key string) (int64, bool) {
	s.fpMu.RLock()
	defer s.fpMu.RUnlock()
	fp, ok := s.fingerprints[key]
	return fp, ok
}

func (s *Scanner) setFingerprint(key string, fp int64) {
	s.fpMu.Lock()
	s.fingerprints[key] = fp
	s.fpMu.Unlock()
}

func (s *Scanner) dropFingerprint(key string) {
	s.fpMu.Lock()
	delete(s.fingerprints, key)
	s.fpMu.Unlock()
}

func (s *Scanner) evictArtifact(key string) {
	s.evictMu.RLock()
	fn := s.evict
	s.evictMu.RUnlock()
	if fn != nil {
		fn(key)
	}
}
