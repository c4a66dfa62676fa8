package catalog

import (
	"sort"
	"sync"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// Store is the in-memory descriptor store: template key -> extracted
// metadata. Entries are replaced wholesale by the scanner and never
// mutated in place, so readers can hold returned descriptors without
// copying.
type Store struct {
	mu        sync.RWMutex
	templates map[string]*types.TemplateDescriptor
}

func NewStore() *Store {
	return &Store{templates: make(map[string]*types.TemplateDescriptor)}
}

// Get returns the descriptor for a key
func (s *Store) Get(key string) (*types.TemplateDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.templates[key]
	return d, ok
}

// Put replaces the descriptor for its key
func (s *Store) Put(d *types.TemplateDescriptor) {
	s.mu.Lock()
	s.templates[d.Key] = d
	s.mu.Unlock()
}

// Remove deletes the descriptor for a key
func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.templates, key)
	s.mu.Unlock()
}

// List returns a snapshot of all descriptors sorted by display name
func (s *Store) List() []*types.TemplateDescriptor {
	s.mu.RLock()
	out := make([]*types.TemplateDescriptor, 0, len(s.templates))
	for _, d := range s.templates {
		out = append(out, d)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// Len returns the number of known templates
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// RemoveAbsent drops every key not present in found and returns the
// removed keys. Used by the scanner to handle deleted sources.
func (s *Store) RemoveAbsent(found map[string]struct{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for key := range s.templates {
		if _, ok := found[key]; !ok {
			delete(s.templates, key)
			removed = append(removed, key)
		}
	}
	return removed
}
