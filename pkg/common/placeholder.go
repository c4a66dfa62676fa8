package common

import (
	"os"
	"regexp"
)

// placeholderPattern matches ${VAR} and ${VAR:default}
var placeholderPattern = regexp.MustCompile(`\$\{([^:}]+)(?::([^}]*))?\}`)

// Resolver substitutes ${VAR} / ${VAR:default} placeholders in credential
// values. Resolution order per placeholder: the configuration lookup, the
// process environment, the inline default, empty string. Multiple
// placeholders in one value resolve independently.
type Resolver struct {
	lookup func(string) (string, bool)
}

// NewResolver creates a resolver backed by a configuration lookup.
// A nil lookup skips straight to the process environment.
func NewResolver(lookup func(string) (string, bool)) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve substitutes every placeholder in value
func (r *Resolver) Resolve(value string) string {
	return placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[2]

		if r.lookup != nil {
			if v, ok := r.lookup(name); ok {
				return v
			}
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return fallback
	})
}
