// Package optmap implements the option-map registry (C6, spec.md §4.5):
// fixed tables mapping a textual mount-option name to a numeric id and a
// mask describing how the option behaves when folded into flag words or
// emitted for different audiences (kernel, helpers, mtab).
package optmap

// Mask bits describing flag behavior for one MapEntry.
const (
	// Invert means the option's presence clears Id rather than setting it
	// (e.g. "rw" clears the read-only bit that "ro" sets).
	Invert uint32 = 1 << iota
	// NoHelpers means this entry is omitted when emitting an option string
	// for external mount helpers.
	NoHelpers
	// NoMtab means this entry is omitted when emitting the persistent
	// mount-record (utab) string.
	NoMtab
	// SepNoData means this entry must never be passed in the kernel data
	// argument (it's parsed and consumed, not forwarded verbatim).
	SepNoData
	// ExternalOnly marks an entry as userspace-only; it never contributes
	// to a kernel flag word. Runtime-switchable per spec.md §4.5.
	ExternalOnly
)

// TypeHint describes what shape of value (if any) a name expects.
type TypeHint int

const (
	NoValue TypeHint = iota
	StringValue
	NumericValue
)

// MapEntry is one {name, id, mask, type_hint} row of an OptionMap.
type MapEntry struct {
	Name     string
	ID       uint64
	Mask     uint32
	TypeHint TypeHint
}

func (e MapEntry) HasMask(m uint32) bool { return e.Mask&m != 0 }

// Map is a fixed, named table of MapEntry, looked up by name or id.
type Map struct {
	Name    string
	entries []MapEntry
	byName  map[string]int
}

// New builds a Map named name from entries. Entry order is preserved for
// iteration (used by suggestion diagnostics and get_optstr rebuilding).
func New(name string, entries []MapEntry) *Map {
	m := &Map{Name: name, entries: entries, byName: make(map[string]int, len(entries))}
	for i, e := range entries {
		m.byName[e.Name] = i
	}
	return m
}

// Lookup returns the entry named name (exact match) and whether it was
// found. Value-taking names are looked up by their bare name — callers
// split off "=value" before calling Lookup.
func (m *Map) Lookup(name string) (MapEntry, bool) {
	i, ok := m.byName[name]
	if !ok {
		return MapEntry{}, false
	}
	return m.entries[i], true
}

// Entries returns every entry, in declaration order.
func (m *Map) Entries() []MapEntry { return m.entries }

// Registry is an ordered collection of Maps an OptionList searches, in
// registration order, when resolving an unqualified option name.
type Registry struct {
	maps []*Map
}

// NewRegistry builds a Registry pre-populated with maps, in order.
func NewRegistry(maps ...*Map) *Registry {
	return &Registry{maps: append([]*Map(nil), maps...)}
}

// Register appends m to the registry.
func (r *Registry) Register(m *Map) { r.maps = append(r.maps, m) }

// Maps returns every registered map, in registration order.
func (r *Registry) Maps() []*Map { return r.maps }

// Resolve searches preferred (if non-nil) first, then every registered
// map in order, for an entry named name. It returns the owning Map, the
// entry, and whether a match was found.
func (r *Registry) Resolve(preferred *Map, name string) (*Map, MapEntry, bool) {
	if preferred != nil {
		if e, ok := preferred.Lookup(name); ok {
			return preferred, e, true
		}
	}
	for _, m := range r.maps {
		if preferred != nil && m == preferred {
			continue
		}
		if e, ok := m.Lookup(name); ok {
			return m, e, true
		}
	}
	return nil, MapEntry{}, false
}

// Names returns every entry name across every registered map, used as the
// candidate pool for "did you mean" suggestions (spec.md §4.5 [ADD]).
func (r *Registry) Names() []string {
	var out []string
	for _, m := range r.maps {
		for _, e := range m.entries {
			out = append(out, e.Name)
		}
	}
	return out
}
