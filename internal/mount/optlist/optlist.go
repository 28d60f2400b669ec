package optlist

import (
	"fmt"
	"strings"

	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

// Aggregate ids recognized for the O(1) aggregate-bit bookkeeping
// (spec.md §4.6 "Aggregate-bit maintenance").
const (
	idRemount = optmap.IDRemount
	idBind    = optmap.IDBind
	idRec     = optmap.IDRec
	idRdonly  = optmap.IDReadOnly
	idMove    = optmap.IDMove
	idSilent  = optmap.IDSilent
)

const propagationMask = optmap.IDShared | optmap.IDSlave | optmap.IDPrivate | optmap.IDUnbindable

type cacheKey struct {
	filter Filter
	scope  string
}

type cacheEntry struct {
	flags  uint64
	optstr string
}

// OptionList is the container of Option (spec.md §3; it carries no
// reference count): fixed
// registry of searchable OptionMaps, derived aggregate bits, a monotonic
// age counter, and a per-(filter,map) cache.
type OptionList struct {
	registry *optmap.Registry
	opts     []Option
	merged   bool
	age      uint64
	cache    map[cacheKey]cacheEntry

	isRemount   bool
	isBind      bool
	isRBind     bool
	isRdonly    bool
	isMove      bool
	isSilent    bool
	isRecursive bool
	propagation uint64

	lastSuggestion string
}

// New builds an empty OptionList searching registry for unqualified
// option names.
func New(registry *optmap.Registry) *OptionList {
	return &OptionList{registry: registry, cache: make(map[cacheKey]cacheEntry)}
}

// Age returns the monotonic mutation counter.
func (l *OptionList) Age() uint64 { return l.age }

// LastSuggestion returns the most recent "did you mean" diagnostic
// computed for an unrecognized token, or "" if none has been produced.
func (l *OptionList) LastSuggestion() string { return l.lastSuggestion }

func (l *OptionList) bump() {
	l.age++
	l.cache = make(map[cacheKey]cacheEntry)
}

// Options returns every option, in insertion order.
func (l *OptionList) Options() []Option { return append([]Option(nil), l.opts...) }

// AppendFromString tokenizes s by ',', trims quotes, parses name[=value],
// and attributes each token to preferred (tried first) then every
// registered map. Unknown tokens are preserved with a nil Map.
func (l *OptionList) AppendFromString(s string, preferred *optmap.Map) error {
	if s == "" {
		return nil
	}
	for _, tok := range splitTopLevelComma(s) {
		if tok == "" {
			continue
		}
		quoted := false
		name, value, hasValue := tok, "", false
		if i := strings.IndexByte(tok, '='); i >= 0 {
			name, value, hasValue = tok[:i], tok[i+1:], true
			if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
				value = value[1 : len(value)-1]
				quoted = true
			}
		}

		m, entry, ok := l.registry.Resolve(preferred, name)
		o := Option{
			Name: name, Value: value, HasValue: hasValue,
			Source: FromString, Quoted: quoted,
		}
		if ok {
			o.Map = m
			o.Entry = entry
			o.External = entry.HasMask(optmap.ExternalOnly)
			o.IsLinuxVFS = m.Name == "linux-vfs"
			o.Recursive = entry.ID&idRec != 0
		} else {
			suggestion := suggestFor(name, l.registry.Names())
			l.lastSuggestion = suggestion
			logUnknownOption(name, suggestion)
		}
		l.appendRaw(o)
	}
	l.bump()
	return nil
}

// AppendFromFlags creates one Option per m entry whose id bits are
// entirely set in flags, skipping Invert-masked and zero-id entries. The
// recursive modifier (MS_REC) is folded into whichever entry carries it,
// regardless of whether that entry also carries other bits.
func (l *OptionList) AppendFromFlags(flags uint64, m *optmap.Map) error {
	if m == nil {
		return errkind.New(errkind.Option, "optlist.AppendFromFlags", fmt.Errorf("nil map"))
	}
	for _, e := range m.Entries() {
		if e.HasMask(optmap.Invert) || e.ID == 0 {
			continue
		}
		if e.TypeHint != optmap.NoValue {
			continue
		}
		if flags&e.ID != e.ID {
			continue
		}
		o := Option{
			Name: e.Name, Source: FromFlag, Map: m, Entry: e,
			External:   e.HasMask(optmap.ExternalOnly),
			IsLinuxVFS: m.Name == "linux-vfs",
			Recursive:  e.ID&idRec != 0,
		}
		l.appendRaw(o)
	}
	l.bump()
	return nil
}

// SetFromString drops all existing FromString entries (or, in merged
// mode, all entries of preferred's map) before appending.
func (l *OptionList) SetFromString(s string, preferred *optmap.Map) error {
	l.dropExisting(FromString, preferred)
	return l.AppendFromString(s, preferred)
}

// SetFromFlags drops all existing FromFlag entries of m before appending.
func (l *OptionList) SetFromFlags(flags uint64, m *optmap.Map) error {
	l.dropExisting(FromFlag, m)
	return l.AppendFromFlags(flags, m)
}

func (l *OptionList) dropExisting(source Source, m *optmap.Map) {
	out := l.opts[:0]
	for _, o := range l.opts {
		if l.merged && m != nil {
			if o.Map == m {
				l.applyAggregateDelta(o, -1)
				continue
			}
		} else if o.Source == source {
			l.applyAggregateDelta(o, -1)
			continue
		}
		out = append(out, o)
	}
	l.opts = out
}

// InsertFlags inserts the entries AppendFromFlags would create, but
// positioned immediately after the option matching (afterMap, afterID).
// The anchor must already exist.
func (l *OptionList) InsertFlags(flags uint64, m *optmap.Map, afterID uint64, afterMap *optmap.Map) error {
	anchor := -1
	for i, o := range l.opts {
		if o.Map == afterMap && o.Entry.ID == afterID {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return errkind.New(errkind.Option, "optlist.InsertFlags", fmt.Errorf("anchor option not found"))
	}

	var toInsert []Option
	for _, e := range m.Entries() {
		if e.HasMask(optmap.Invert) || e.ID == 0 || e.TypeHint != optmap.NoValue {
			continue
		}
		if flags&e.ID != e.ID {
			continue
		}
		o := Option{Name: e.Name, Source: FromFlag, Map: m, Entry: e,
			External: e.HasMask(optmap.ExternalOnly), IsLinuxVFS: m.Name == "linux-vfs",
			Recursive: e.ID&idRec != 0}
		toInsert = append(toInsert, o)
	}

	out := append([]Option(nil), l.opts[:anchor+1]...)
	out = append(out, toInsert...)
	out = append(out, l.opts[anchor+1:]...)
	l.opts = out
	for _, o := range toInsert {
		l.applyAggregateDelta(o, +1)
	}
	l.bump()
	return nil
}

// UpdateValue rewrites the value of the option at idx in place (used by
// uid=/gid= fixup, which resolves a symbolic value without changing the
// option's identity or position).
func (l *OptionList) UpdateValue(idx int, value string) error {
	if idx < 0 || idx >= len(l.opts) {
		return errkind.New(errkind.Option, "optlist.UpdateValue", fmt.Errorf("index %d out of range", idx))
	}
	l.opts[idx].Value = value
	l.bump()
	return nil
}

// RemoveOpt removes the option at idx.
func (l *OptionList) RemoveOpt(idx int) error {
	if idx < 0 || idx >= len(l.opts) {
		return errkind.New(errkind.Option, "optlist.RemoveOpt", fmt.Errorf("index %d out of range", idx))
	}
	o := l.opts[idx]
	l.opts = append(l.opts[:idx], l.opts[idx+1:]...)
	l.applyAggregateDelta(o, -1)
	l.bump()
	return nil
}

// RemoveFlags removes every option of m whose id is a (non-zero) subset
// of flags.
func (l *OptionList) RemoveFlags(flags uint64, m *optmap.Map) {
	out := l.opts[:0]
	for _, o := range l.opts {
		if o.Map == m && o.Entry.ID != 0 && flags&o.Entry.ID == o.Entry.ID {
			l.applyAggregateDelta(o, -1)
			continue
		}
		out = append(out, o)
	}
	l.opts = out
	l.bump()
}

// RemoveNamed removes every option named name, optionally scoped to m.
func (l *OptionList) RemoveNamed(name string, m *optmap.Map) {
	out := l.opts[:0]
	for _, o := range l.opts {
		if o.Name == name && (m == nil || o.Map == m) {
			l.applyAggregateDelta(o, -1)
			continue
		}
		out = append(out, o)
	}
	l.opts = out
	l.bump()
}

// Merge sets "merged" mode and deduplicates entries from the back,
// keeping the last occurrence of each (map, id) pair — this collapses
// both literal duplicates and inversely-cancelling pairs (e.g. "rw,ro"
// collapses to whichever came last), per spec.md §3's invariant.
func (l *OptionList) Merge() {
	l.merged = true
	seen := make(map[struct {
		m  *optmap.Map
		id uint64
	}]bool)
	out := make([]Option, 0, len(l.opts))
	for i := len(l.opts) - 1; i >= 0; i-- {
		o := l.opts[i]
		if o.Map != nil && o.Entry.ID != 0 {
			key := struct {
				m  *optmap.Map
				id uint64
			}{o.Map, o.Entry.ID}
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, o)
	}
	// reverse back into original relative order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	l.opts = out
	l.bump()
}

func (l *OptionList) appendRaw(o Option) {
	l.opts = append(l.opts, o)
	l.applyAggregateDelta(o, +1)
}

// applyAggregateDelta keeps the aggregate bits coherent with live entries
// (spec.md §4.6's named id set: REMOUNT, BIND, REC+BIND, RDONLY, MOVE,
// SILENT, MS_REC, and the propagation block).
func (l *OptionList) applyAggregateDelta(o Option, delta int) {
	if !o.IsLinuxVFS || o.Entry.ID == 0 || o.Entry.HasMask(optmap.Invert) {
		return
	}
	id := o.Entry.ID
	set := delta > 0
	switch {
	case id == idRemount:
		l.isRemount = set
	case id == idBind:
		l.isBind = set
	case id == (idBind | idRec):
		l.isBind = set
		l.isRBind = set
		l.isRecursive = set
	case id == idRdonly:
		l.isRdonly = set
	case id == idMove:
		l.isMove = set
	case id == idSilent:
		l.isSilent = set
	}
	if id&idRec != 0 {
		l.isRecursive = set
	}
	if id&propagationMask != 0 {
		if set {
			l.propagation = id &^ idRec
		} else if l.propagation == id&^idRec {
			l.propagation = 0
		}
	}
}

func (l *OptionList) IsRemount() bool      { return l.isRemount }
func (l *OptionList) IsBind() bool         { return l.isBind }
func (l *OptionList) IsRBind() bool        { return l.isRBind }
func (l *OptionList) IsRdonly() bool       { return l.isRdonly }
func (l *OptionList) IsMove() bool         { return l.isMove }
func (l *OptionList) IsSilent() bool       { return l.isSilent }
func (l *OptionList) IsRecursive() bool    { return l.isRecursive }
func (l *OptionList) Propagation() uint64  { return l.propagation }
func (l *OptionList) PropagationOnly() bool {
	if l.propagation == 0 {
		return false
	}
	for _, o := range l.opts {
		if !o.IsLinuxVFS {
			continue
		}
		id := o.Entry.ID
		if id == l.propagation || id&propagationMask != 0 || id == idSilent || id&idRec != 0 {
			continue
		}
		if id != 0 {
			return false
		}
	}
	return true
}

// GetFlags ORs/ANDs together the ids of every live option belonging to m,
// honoring filter's inclusion rule and Invert masks.
func (l *OptionList) GetFlags(m *optmap.Map, filter Filter) uint64 {
	key := cacheKey{filter: filter, scope: mapName(m)}
	if ce, ok := l.cache[key]; ok {
		return ce.flags
	}
	var flags uint64
	for _, o := range l.opts {
		if o.Map != m || o.Entry.ID == 0 {
			continue
		}
		if !l.includeInOptstr(o, filter, m) {
			continue
		}
		if o.Entry.HasMask(optmap.Invert) {
			flags &^= o.Entry.ID
		} else {
			flags |= o.Entry.ID
		}
	}
	ce := l.cache[key]
	ce.flags = flags
	l.cache[key] = ce
	return flags
}

// GetOptstr rebuilds (or returns the cached) comma-separated option
// string for scope/filter.
func (l *OptionList) GetOptstr(scope *optmap.Map, filter Filter) string {
	key := cacheKey{filter: filter, scope: mapName(scope)}
	if ce, ok := l.cache[key]; ok && ce.optstr != "" {
		return ce.optstr
	}

	addsRwPrefix := (filter == FilterDefault || filter == FilterAll || filter == FilterHelpers) &&
		(scope == nil || scope.Name != "userspace")

	var parts []string
	for _, o := range l.opts {
		if !l.includeInOptstr(o, filter, scope) {
			continue
		}
		// The leading rw/ro token below already carries this option's
		// information; listing the bare "ro"/"rw" name again would
		// duplicate it.
		if addsRwPrefix && o.IsLinuxVFS && (o.Name == "ro" || o.Name == "rw") {
			continue
		}
		if o.HasValue {
			v := o.Value
			if o.Quoted {
				v = `"` + v + `"`
			}
			parts = append(parts, o.Name+"="+v)
		} else {
			parts = append(parts, o.Name)
		}
	}
	str := strings.Join(parts, ",")

	if addsRwPrefix {
		rw := "rw"
		if l.isRdonly {
			rw = "ro"
		}
		if str == "" {
			str = rw
		} else {
			str = rw + "," + str
		}
	}

	ce := l.cache[key]
	ce.optstr = str
	l.cache[key] = ce
	return str
}

func (l *OptionList) includeInOptstr(o Option, filter Filter, scope *optmap.Map) bool {
	switch filter {
	case FilterDefault:
		if scope != nil && o.Map != scope {
			return false
		}
		return !o.External
	case FilterAll:
		return true
	case FilterUnknown:
		return o.Map == nil && !o.External
	case FilterHelpers:
		return !(o.known() && o.Entry.HasMask(optmap.NoHelpers))
	case FilterMtab:
		return !(o.known() && o.Entry.HasMask(optmap.NoMtab))
	default:
		return true
	}
}

func mapName(m *optmap.Map) string {
	if m == nil {
		return ""
	}
	return m.Name
}

// splitTopLevelComma splits s on ',' but not inside a double-quoted
// span, matching the classic mount(8) option-string grammar.
func splitTopLevelComma(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}
