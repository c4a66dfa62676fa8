package compiler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

type fakeResolver struct {
	source []byte
	err    error
}

func (r *fakeResolver) SourceFor(*types.TemplateDescriptor) ([]byte, error) {
	return r.source, r.err
}

func countingCompiler(count *atomic.Int64, block chan struct{}) CompileFunc {
	return func(ctx context.Context, source []byte) (any, error) {
		count.Add(1)
		if block != nil {
			<-block
		}
		return string(source), nil
	}
}

func descriptor(fp int64) *types.TemplateDescriptor {
	return &types.TemplateDescriptor{Key: "loan-portfolio", FileName: "loan-portfolio.jrxml", Fingerprint: fp}
}

func TestCache_SecondCallHitsCache(t *testing.T) {
	var compiles atomic.Int64
	cache := NewCache(8, &fakeResolver{source: []byte("src")}, countingCompiler(&compiles, nil))

	d := descriptor(100)

	first, err := cache.Get(context.Background(), d)
	require.NoError(t, err)

	second, err := cache.Get(context.Background(), d)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), compiles.Load())
}

func TestCache_FingerprintChangeForcesOneRecompile(t *testing.T) {
	var compiles atomic.Int64
	cache := NewCache(8, &fakeResolver{source: []byte("src")}, countingCompiler(&compiles, nil))

	_, err := cache.Get(context.Background(), descriptor(100))
	require.NoError(t, err)

	changed := descriptor(200)
	artifact, err := cache.Get(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, int64(200), artifact.Fingerprint)
	assert.Equal(t, int64(2), compiles.Load())

	// unchanged fingerprint stays cached
	_, err = cache.Get(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), compiles.Load())
}

func TestCache_SingleFlight(t *testing.T) {
	var compiles atomic.Int64
	block := make(chan struct{})
	cache := NewCache(8, &fakeResolver{source: []byte("src")}, countingCompiler(&compiles, block))

	d := descriptor(100)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*types.CompiledArtifact, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			artifact, err := cache.Get(context.Background(), d)
			assert.NoError(t, err)
			results[i] = artifact
		}(i)
	}

	close(block)
	wg.Wait()

	assert.Equal(t, int64(1), compiles.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestCache_MissingSourceIsCompileError(t *testing.T) {
	cache := NewCache(8, &fakeResolver{err: errors.New("gone")}, func(context.Context, []byte) (any, error) {
		t.Fatal("compile must not run when source is missing")
		return nil, nil
	})

	_, err := cache.Get(context.Background(), descriptor(100))

	var compileErr *types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "loan-portfolio", compileErr.Key)
}

func TestCache_RemoveForcesRecompile(t *testing.T) {
	var compiles atomic.Int64
	cache := NewCache(8, &fakeResolver{source: []byte("src")}, countingCompiler(&compiles, nil))

	d := descriptor(100)
	_, err := cache.Get(context.Background(), d)
	require.NoError(t, err)

	cache.Remove(d.Key)

	_, err = cache.Get(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(2), compiles.Load())
}

func TestCache_CompileFailureSurfaces(t *testing.T) {
	boom := errors.New("bad template")
	cache := NewCache(8, &fakeResolver{source: []byte("src")}, func(context.Context, []byte) (any, error) {
		return nil, boom
	})

	_, err := cache.Get(context.Background(), descriptor(100))

	var compileErr *types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.ErrorIs(t, err, boom)
}
