package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_ConfigTakesPriority(t *testing.T) {
	t.Setenv("RESOLVER_TEST_FOO", "from-env")

	r := NewResolver(func(name string) (string, bool) {
		if name == "RESOLVER_TEST_FOO" {
			return "from-config", true
		}
		return "", false
	})

	assert.Equal(t, "from-config", r.Resolve("${RESOLVER_TEST_FOO:bar}"))
}

func TestResolver_EnvBeforeDefault(t *testing.T) {
	t.Setenv("RESOLVER_TEST_FOO", "from-env")

	r := NewResolver(nil)
	assert.Equal(t, "from-env", r.Resolve("${RESOLVER_TEST_FOO:bar}"))
}

func TestResolver_InlineDefault(t *testing.T) {
	r := NewResolver(func(string) (string, bool) { return "", false })
	assert.Equal(t, "bar", r.Resolve("${RESOLVER_TEST_UNSET:bar}"))
}

func TestResolver_UnsetWithoutDefaultIsEmpty(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, "", r.Resolve("${RESOLVER_TEST_UNSET}"))
}

func TestResolver_MultiplePlaceholders(t *testing.T) {
	t.Setenv("RESOLVER_TEST_HOST", "db.internal")

	r := NewResolver(nil)
	got := r.Resolve("postgres://${RESOLVER_TEST_HOST}:${RESOLVER_TEST_PORT:5432}/loans")
	assert.Equal(t, "postgres://db.internal:5432/loans", got)
}

func TestResolver_PlainValueUntouched(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, "plain-password", r.Resolve("plain-password"))
}
