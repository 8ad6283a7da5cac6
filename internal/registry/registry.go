package registry

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Registry is the gateway's concurrent tool catalog. Every registered tool is
// reachable by its namespaced name; a bare (un-namespaced) alias additionally
// resolves whenever exactly one backend owns that original name.
type Registry struct {
	mu sync.RWMutex

	// tools maps a resolvable name (namespaced or bare) to its entry.
	tools map[string]Entry
	// backendTools tracks which names belong to which backend, for removal.
	backendTools map[string]map[string]struct{}
	// bareNameOwners tracks every backend that has ever claimed an original
	// name, in registration order, so collisions can be detected and resolved.
	bareNameOwners map[string][]owner

	// aliases are user-defined shortcuts resolved after a direct miss.
	aliases map[string]string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		tools:          make(map[string]Entry),
		backendTools:   make(map[string]map[string]struct{}),
		bareNameOwners: make(map[string][]owner),
		aliases:        make(map[string]string),
	}
}

// toolSpec is what callers supply when registering a backend's catalog.
type toolSpec struct {
	OriginalName string
	Description  string
	InputSchema  map[string]any
	Tags         []string
}

// ToolSpec is the public constructor form of toolSpec.
type ToolSpec = toolSpec

// Register replaces any prior registration for backend and adds its current
// tool set under namespace ns. Re-registering the same backend never produces
// a false collision against its own prior entries.
func (r *Registry) Register(backendName, ns string, specs []ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(backendName)

	owned := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		namespaced := namespacedName(ns, spec.OriginalName)
		entry := Entry{
			Name:         namespaced,
			OriginalName: spec.OriginalName,
			Description:  spec.Description,
			BackendName:  backendName,
			InputSchema:  spec.InputSchema,
			Tags:         spec.Tags,
		}
		r.tools[namespaced] = entry
		owned[namespaced] = struct{}{}

		owners := append(r.bareNameOwners[spec.OriginalName], owner{backend: backendName, namespace: ns})
		r.bareNameOwners[spec.OriginalName] = owners
		switch len(owners) {
		case 1:
			bareEntry := entry
			bareEntry.Name = spec.OriginalName
			r.tools[spec.OriginalName] = bareEntry
			owned[spec.OriginalName] = struct{}{}
		case 2:
			delete(r.tools, spec.OriginalName)
		default:
			// more than two owners: bare name stays retired
		}
	}
	r.backendTools[backendName] = owned
}

// Remove drops every entry belonging to backendName and restores any bare
// alias whose collision has now resolved down to a single remaining owner.
func (r *Registry) Remove(backendName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(backendName)
}

func (r *Registry) removeLocked(backendName string) {
	owned, ok := r.backendTools[backendName]
	if !ok {
		return
	}

	// Collect original names this backend owned before mutating bareNameOwners.
	originalNames := make(map[string]struct{})
	for name, entry := range r.tools {
		if entry.BackendName == backendName && name == entry.OriginalName {
			originalNames[entry.OriginalName] = struct{}{}
		}
	}
	for name := range owned {
		if entry, ok := r.tools[name]; ok && name != entry.OriginalName {
			originalNames[entry.OriginalName] = struct{}{}
		}
	}

	for name := range owned {
		delete(r.tools, name)
	}
	delete(r.backendTools, backendName)

	for orig := range originalNames {
		owners := r.bareNameOwners[orig]
		hadCollision := len(owners) > 1
		remaining := owners[:0:0]
		for _, o := range owners {
			if o.backend != backendName {
				remaining = append(remaining, o)
			}
		}
		if len(remaining) == 0 {
			delete(r.bareNameOwners, orig)
			continue
		}
		r.bareNameOwners[orig] = remaining
		if hadCollision && len(remaining) == 1 {
			survivor := remaining[0]
			if entry, ok := r.tools[namespacedName(survivor.namespace, orig)]; ok {
				bareEntry := entry
				bareEntry.Name = orig
				r.tools[orig] = bareEntry
			}
		}
	}
}

// Get resolves name: a direct (namespaced or bare) lookup first, then a
// one-level alias lookup so aliases can never shadow a real tool.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.tools[name]; ok {
		return entry, true
	}
	if target, ok := r.aliases[name]; ok {
		if entry, ok := r.tools[target]; ok {
			return entry, true
		}
	}
	return Entry{}, false
}

// GetAll returns every resolvable entry, sorted by name.
func (r *Registry) GetAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetByBackend returns every entry owned by backendName.
func (r *Registry) GetByBackend(backendName string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owned := r.backendTools[backendName]
	out := make([]Entry, 0, len(owned))
	for name := range owned {
		if e, ok := r.tools[name]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolCount returns the number of resolvable names currently registered.
func (r *Registry) ToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// BackendCount returns the number of backends with at least one tool.
func (r *Registry) BackendCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backendTools)
}

// SetAliases replaces the user-defined alias table wholesale.
func (r *Registry) SetAliases(aliases map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := make(map[string]string, len(aliases))
	for k, v := range aliases {
		clone[k] = v
	}
	r.aliases = clone
}

// FindEquivalentTool returns the namespaced name under which backendName
// registered originalName, if any.
func (r *Registry) FindEquivalentTool(backendName, originalName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.bareNameOwners[originalName] {
		if o.backend == backendName {
			return namespacedName(o.namespace, originalName), true
		}
	}
	return "", false
}

func namespacedName(ns, original string) string {
	if ns == "" {
		return original
	}
	return ns + "." + original
}

// tokenize lowercases s and splits on runs of non-alphanumeric characters.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type scored struct {
	entry Entry
	score float64
}

// UsageSource supplies per-tool call counts used for the optional usage boost.
type UsageSource interface {
	UsageCount(name string) uint64
}

// Search ranks the catalog against query using BM25 over a per-tool document
// built from its name (weighted twice) and description. Entries scoring zero
// are dropped. filterTags, when non-empty, additionally requires at least one
// tag overlap. tracker, when non-nil, applies a bounded logarithmic usage
// boost on top of the raw BM25 score.
func (r *Registry) Search(query string, limit int, filterTags []string, tracker UsageSource) []Entry {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	r.mu.RLock()
	entries := make([]Entry, 0, len(r.tools))
	seen := make(map[string]struct{}, len(r.tools))
	for _, e := range r.tools {
		key := e.BackendName + "\x00" + e.OriginalName
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	if len(filterTags) > 0 {
		filtered := entries[:0:0]
		for _, e := range entries {
			if hasAnyTag(e.Tags, filterTags) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	docs := make([][]string, len(entries))
	docFreq := make(map[string]int)
	var totalLen int
	for i, e := range entries {
		nameTokens := tokenize(e.OriginalName)
		descTokens := tokenize(e.Description)
		doc := make([]string, 0, 2*len(nameTokens)+len(descTokens))
		doc = append(doc, nameTokens...)
		doc = append(doc, nameTokens...)
		doc = append(doc, descTokens...)
		docs[i] = doc
		totalLen += len(doc)

		counted := make(map[string]struct{}, len(doc))
		for _, t := range doc {
			if _, ok := counted[t]; ok {
				continue
			}
			counted[t] = struct{}{}
			docFreq[t]++
		}
	}
	if len(entries) == 0 {
		return nil
	}
	avgDocLen := float64(totalLen) / float64(len(entries))
	n := float64(len(entries))

	results := make([]scored, 0, len(entries))
	for i, e := range entries {
		doc := docs[i]
		termFreq := make(map[string]int, len(doc))
		for _, t := range doc {
			termFreq[t]++
		}
		dl := float64(len(doc))

		var score float64
		for _, qt := range queryTerms {
			tf := float64(termFreq[qt])
			if tf == 0 {
				continue
			}
			df := float64(docFreq[qt])
			idf := math.Log((n-df+0.5)/(df+0.5) + 1)
			norm := (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*dl/avgDocLen))
			score += idf * norm
		}
		if score <= 0 {
			continue
		}
		if tracker != nil {
			usage := tracker.UsageCount(e.Name)
			score *= 1 + 0.3*math.Log(1+float64(usage))
		}
		results = append(results, scored{entry: e, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].entry.Name < results[j].entry.Name
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]Entry, len(results))
	for i, s := range results {
		out[i] = s.entry
	}
	return out
}

func hasAnyTag(tags, filter []string) bool {
	set := make(map[string]struct{}, len(filter))
	for _, t := range filter {
		set[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Snapshot returns, per backend, the deduplicated entries worth persisting to
// the cache: bare aliases are omitted whenever a namespaced sibling for the
// same (backend, original name) pair also exists, since Register recreates
// bare aliases on load.
func (r *Registry) Snapshot() map[string][]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct{ backend, original string }
	hasNamespaced := make(map[key]bool)
	for name, e := range r.tools {
		if name != e.OriginalName {
			hasNamespaced[key{e.BackendName, e.OriginalName}] = true
		}
	}

	out := make(map[string][]Entry)
	for name, e := range r.tools {
		if name == e.OriginalName && hasNamespaced[key{e.BackendName, e.OriginalName}] {
			continue
		}
		out[e.BackendName] = append(out[e.BackendName], e)
	}
	for backend := range out {
		sort.Slice(out[backend], func(i, j int) bool { return out[backend][i].Name < out[backend][j].Name })
	}
	return out
}
