package personality

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry is the in-memory personality lookup: canonical names plus a
// case-insensitive alias index. It is replaced wholesale on reload (file
// watcher or store refresh), so readers never see a half-updated index.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Personality
	byAlias map[string]*Personality // lowercased alias → personality
	aliases []string                // lowercased, sorted longest-first for mention matching
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Personality),
		byAlias: make(map[string]*Personality),
	}
}

// Replace swaps the registry contents. Display names and canonical names
// are indexed as implicit aliases.
func (r *Registry) Replace(list []Personality) {
	byName := make(map[string]*Personality, len(list))
	byAlias := make(map[string]*Personality)

	for i := range list {
		p := &list[i]
		byName[p.Name] = p

		for _, alias := range p.Aliases {
			indexAlias(byAlias, alias, p)
		}
		indexAlias(byAlias, p.Name, p)
		indexAlias(byAlias, p.DisplayName, p)
	}

	aliases := make([]string, 0, len(byAlias))
	for a := range byAlias {
		aliases = append(aliases, a)
	}
	// Longest first so multi-word aliases win over their prefixes.
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})

	r.mu.Lock()
	r.byName = byName
	r.byAlias = byAlias
	r.aliases = aliases
	r.mu.Unlock()

	slog.Info("personality registry loaded", "personalities", len(byName), "aliases", len(byAlias))
}

func indexAlias(idx map[string]*Personality, alias string, p *Personality) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return
	}
	if _, taken := idx[alias]; !taken {
		idx[alias] = p
	}
}

// Get returns a personality by canonical name.
func (r *Registry) Get(name string) (Personality, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return Personality{}, false
	}
	return *p, true
}

// ResolveAlias looks up an exact alias (case-insensitive).
func (r *Registry) ResolveAlias(alias string) (Personality, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byAlias[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return Personality{}, false
	}
	return *p, true
}

// MatchPrefix finds the longest alias that text begins with, requiring the
// match to end at a word boundary ("@Cold storage" must not match alias
// "Cold s"). Returns the personality and the alias as matched.
func (r *Registry) MatchPrefix(text string) (Personality, string, bool) {
	lower := strings.ToLower(text)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, alias := range r.aliases {
		if !strings.HasPrefix(lower, alias) {
			continue
		}
		if len(lower) > len(alias) && !isBoundary(lower[len(alias)]) {
			continue
		}
		return *r.byAlias[alias], text[:len(alias)], true
	}
	return Personality{}, "", false
}

// Names returns all canonical names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered personalities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', ',', '.', '!', '?', ':', ';', ')':
		return true
	}
	return false
}
