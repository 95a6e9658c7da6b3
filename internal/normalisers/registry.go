// Package normalisers canonicalizes extracted field values before they are
// persisted: dates to ISO form, identifiers to their standard punctuation,
// names to consistent casing.
package normalisers

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry implements NormaliserRegistry with priority-based selection.
// When multiple normalisers match a field name, the highest priority one is
// used.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.FieldNormaliser
}

// NewRegistry creates a new normaliser registry.
func NewRegistry() *Registry {
	return &Registry{
		normalisers: make([]driven.FieldNormaliser, 0),
	}
}

// Register registers a normaliser.
func (r *Registry) Register(n driven.FieldNormaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, n)
}

// Get retrieves the best-matching normaliser for a field name.
// Returns nil if none is registered for the field.
func (r *Registry) Get(fieldName string) driven.FieldNormaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []driven.FieldNormaliser
	for _, n := range r.normalisers {
		if matchesField(n.FieldNames(), fieldName) {
			matches = append(matches, n)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches[0]
}

// Normalise applies the registered normaliser for fieldName, falling back
// to whitespace cleanup when none is registered.
func (r *Registry) Normalise(fieldName, value string) string {
	if n := r.Get(fieldName); n != nil {
		return n.Normalise(value)
	}
	return cleanWhitespace(value)
}

func matchesField(names []string, fieldName string) bool {
	fieldName = strings.ToLower(strings.TrimSpace(fieldName))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == fieldName || name == "*" {
			return true
		}
	}
	return false
}

// DefaultRegistry creates a registry with all field normalisers
// pre-registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&WhitespaceNormaliser{})
	r.Register(&DateNormaliser{})
	r.Register(&NationalIDNormaliser{})
	r.Register(&PhysicianRegistrationNormaliser{})
	r.Register(&PhoneNormaliser{})
	r.Register(&PersonNameNormaliser{})

	return r
}

// cleanWhitespace collapses runs of whitespace to single spaces and trims.
func cleanWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// WhitespaceNormaliser is the fallback for fields without a dedicated
// normaliser.
type WhitespaceNormaliser struct{}

func (n *WhitespaceNormaliser) Normalise(value string) string {
	return cleanWhitespace(value)
}

func (n *WhitespaceNormaliser) FieldNames() []string {
	return []string{"*"}
}

func (n *WhitespaceNormaliser) Priority() int {
	return 1 // Lowest priority - fallback
}
