package partition

import "github.com/blkcore/blkmount/internal/sector"

// Result is a prober's tri-valued outcome (spec.md §4.3.4 / §7): OK means
// the scheme was recognized and List has been populated; None means "not
// this scheme, try the next one, or give up" and is never an error; a
// non-nil error is reserved for I/O failures and allocation failures,
// which must propagate verbatim rather than being swallowed as None.
type Result int

const (
	ProbeNone Result = iota
	ProbeOK
)

// Magic is one {byte_pattern, byte_offset} pair a prober can declare so
// the dispatcher can short-circuit on any miss without invoking Probe.
type Magic struct {
	Pattern []byte
	Offset  int64
}

// Prober is the interface every partition scheme implementation (C4)
// satisfies. Probers that declare no Magics (GPT, BSD, Atari) are always
// invoked by the dispatcher and must report ProbeNone themselves when the
// table is absent.
type Prober interface {
	Name() string
	Magics() []Magic
	// Probe reads through r, and on ProbeOK populates list with one new
	// Table (parented at list.ParentHint() if set) and its entries.
	// parentHint carries the enclosing DOS partition's type/geometry for
	// probers whose on-disk layout depends on it (BSD's FreeBSD-relative
	// offsets); it is nil for top-level probes.
	Probe(r sector.Reader, list *List, parentHint *ParentHint) (Result, error)
}

// ParentHint is the context a nested sub-prober needs from its enclosing
// DOS partition: whether the slot was FreeBSD-typed (for BSD's
// offset-relative-to-parent convention) and the parent's own type code.
type ParentHint struct {
	ParentTypeCode uint32
	FreeBSDTyped   bool
}
