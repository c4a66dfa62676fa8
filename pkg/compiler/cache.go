// Package compiler memoizes the expensive compile-from-source step.
// The compiler itself is an external black box; this package owns the
// fingerprint-checked cache and the single-flight guarantee around it.
package compiler

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

const defaultCacheSize = 128

// CompileFunc is the external compile step: source bytes in, opaque
// compiled representation out. Potentially slow and fallible.
type CompileFunc func(ctx context.Context, source []byte) (any, error)

// SourceResolver resolves the current source bytes for a descriptor,
// applying the same writable-then-bundled precedence as the scanner.
type SourceResolver interface {
	SourceFor(d *types.TemplateDescriptor) ([]byte, error)
}

// Cache memoizes compiled artifacts keyed by template key. An artifact
// is served only while its fingerprint matches the descriptor's current
// one; concurrent misses for the same key and fingerprint pay for
// exactly one compile. No cache-wide lock is held across the compile.
type Cache struct {
	resolver  SourceResolver
	compile   CompileFunc
	artifacts *lru.Cache[string, *types.CompiledArtifact]
	group     singleflight.Group
}

func NewCache(size int, resolver SourceResolver, compile CompileFunc) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	artifacts, _ := lru.New[string, *types.CompiledArtifact](size)
	return &Cache{
		resolver:  resolver,
		compile:   compile,
		artifacts: artifacts,
	}
}

// Get returns the compiled artifact for the descriptor, compiling on a
// miss or a fingerprint mismatch. A request that acquired an artifact
// just before a scan invalidated it may still use it; the next request
// sees the refreshed descriptor and recompiles.
func (c *Cache) Get(ctx context.Context, d *types.TemplateDescriptor) (*types.CompiledArtifact, error) {
	if artifact, ok := c.artifacts.Get(d.Key); ok && artifact.Fingerprint == d.Fingerprint {
		return artifact, nil
	}

	// The flight key includes the fingerprint so callers racing a reload
	// never share a stale compile result.
	flightKey := fmt.Sprintf("%s@%d", d.Key, d.Fingerprint)

	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		if artifact, ok := c.artifacts.Get(d.Key); ok && artifact.Fingerprint == d.Fingerprint {
			return artifact, nil
		}

		source, err := c.resolver.SourceFor(d)
		if err != nil {
			// Source disappeared between descriptor lookup and compile;
			// fatal for this call only, the next scan removes the entry.
			return nil, &types.CompileError{Key: d.Key, Cause: err}
		}

		start := time.Now()
		program, err := c.compile(ctx, source)
		if err != nil {
			return nil, &types.CompileError{Key: d.Key, Cause: err}
		}

		artifact := &types.CompiledArtifact{
			Key:         d.Key,
			Fingerprint: d.Fingerprint,
			Program:     program,
			CompiledAt:  time.Now(),
		}
		c.artifacts.Add(d.Key, artifact)

		log.Info().
			Str("template", d.Key).
			Dur("duration", time.Since(start)).
			Msg("template compiled")

		return artifact, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*types.CompiledArtifact), nil
}

// Remove evicts the artifact for a key. Called by the scanner on reload
// and removal.
func (c *Cache) Remove(key string) {
	c.artifacts.Remove(key)
}

// Len returns the number of cached artifacts
func (c *Cache) Len() int {
	return c.artifacts.Len()
}
