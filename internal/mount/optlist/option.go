// Package optlist implements the option list (C7, spec.md §4.6): storing,
// transforming, and emitting the options of a single mount request.
package optlist

import "github.com/blkcore/blkmount/internal/mount/optmap"

// Source records how an Option entered the list.
type Source int

const (
	FromString Source = iota
	FromFlag
)

// Filter selects which options get_optstr/get_flags considers.
type Filter int

const (
	// FilterDefault is map-scoped with external options hidden.
	FilterDefault Filter = iota
	// FilterAll includes every option, known or not, external or not.
	FilterAll
	// FilterUnknown includes only options with no matching map and not
	// marked external.
	FilterUnknown
	// FilterHelpers excludes NoHelpers-masked entries.
	FilterHelpers
	// FilterMtab excludes NoMtab-masked entries.
	FilterMtab
)

// Option is one parsed or flag-derived mount option (spec.md §3).
type Option struct {
	Name       string
	Value      string
	HasValue   bool
	Source     Source
	Map        *optmap.Map // nil when no registered map claims this name
	Entry      optmap.MapEntry
	External   bool
	Recursive  bool
	Quoted     bool
	IsLinuxVFS bool
}

func (o Option) known() bool { return o.Map != nil }
