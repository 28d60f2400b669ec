// Package dispatch implements the top-level partition-scheme dispatcher
// (spec.md §4.4): a fixed priority order of Probers, magic-based
// short-circuiting, and the windowed nested-probe wiring that lets DOS
// recurse into a BSD-family sub-scheme without either package importing
// the other.
package dispatch

import (
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/partition/probe"
	"github.com/blkcore/blkmount/internal/sector"
)

// Dispatcher holds the fixed-priority prober chain and the DOS instance
// whose NestedDispatch callback closes the loop back into this package.
type Dispatcher struct {
	probers []partition.Prober
}

// New builds the dispatcher with the fixed priority order spec.md §4.4
// specifies: AIX, SGI, Sun, DOS, GPT, PMBR-alone, BSD, Atari. Mac and
// Ultrix are named in that order but have no dedicated Prober here — see
// DESIGN.md's "Dispatch priority gaps" entry for why — so they're simply
// absent from the chain rather than stubbed with a prober that can never
// recognize anything. UnixWare, Solaris-x86, and Minix are represented
// only as DOS's nested-dispatch type hints (probe/dos.go), since nothing
// in the corpus gives this module an independent on-disk layout for
// them to parse.
func New() *Dispatcher {
	d := &Dispatcher{}
	dos := &probe.DOS{NestedDispatch: d.nestedProbe}
	d.probers = []partition.Prober{
		&probe.AIX{},
		&probe.SGI{},
		&probe.Sun{},
		dos,
		&probe.GPT{GatePMBR: false},
		&pmbrAlone{},
		&probe.BSD{},
		&probe.Atari{},
	}
	return d
}

// WithOracle wires a SuperblockOracle into the DOS prober (spec.md §9
// Open Question 1), returning d for chaining.
func (d *Dispatcher) WithOracle(o partition.SuperblockOracle) *Dispatcher {
	for _, p := range d.probers {
		if dos, ok := p.(*probe.DOS); ok {
			dos.Oracle = o
		}
	}
	return d
}

// Dispatch runs r through the priority chain, stopping at the first
// Prober that reports ProbeOK. Probers declaring Magics are skipped
// without a Probe call when none of their patterns match; probers
// declaring no Magics (GPT, PMBR-alone, BSD, Atari) are always tried. A non-nil error from
// any Prober aborts the whole dispatch and propagates verbatim — a
// corrupted-but-recognizable table reports ProbeNone, never an error.
func (d *Dispatcher) Dispatch(r sector.Reader, list *partition.List) (partition.Prober, error) {
	return d.dispatchFiltered(r, list, nil, "")
}

// DispatchOnly restricts the chain to the single prober named name (the
// caller-filter mode spec.md §4.4 describes for explicit single-scheme
// probing, e.g. a CLI flag asking for "just gpt").
func (d *Dispatcher) DispatchOnly(r sector.Reader, list *partition.List, name string) (partition.Prober, error) {
	return d.dispatchFiltered(r, list, nil, name)
}

func (d *Dispatcher) dispatchFiltered(r sector.Reader, list *partition.List, hint *partition.ParentHint, only string) (partition.Prober, error) {
	for _, p := range d.probers {
		if only != "" && p.Name() != only {
			continue
		}
		if !magicsMatch(r, p.Magics()) {
			continue
		}
		res, err := p.Probe(r, list, hint)
		if err != nil {
			return nil, err
		}
		if res == partition.ProbeOK {
			return p, nil
		}
	}
	return nil, nil
}

// magicsMatch reports whether r matches at least one of magics, or true
// if magics is empty (the prober must be tried unconditionally).
func magicsMatch(r sector.Reader, magics []partition.Magic) bool {
	if len(magics) == 0 {
		return true
	}
	for _, m := range magics {
		buf, err := r.ReadBytes(m.Offset, len(m.Pattern))
		if err != nil {
			continue
		}
		match := true
		for i, b := range m.Pattern {
			if buf[i] != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// nestedProbe is DOS's NestedDispatch callback: it windows r onto the
// enclosing primary partition and tries the sub-probers whose on-disk
// layout this module actually knows (currently BSD, for FreeBSD/NetBSD/
// OpenBSD-typed slots). UnixWare, Solaris x86, and Minix slots carry a
// hint but resolve to ProbeNone since no Prober claims them.
func (d *Dispatcher) nestedProbe(r sector.Reader, list *partition.List, hint *partition.ParentHint) error {
	parent := list.ParentHint()
	bsd := &probe.BSD{}
	res, err := bsd.Probe(r, list, hint)
	if err != nil {
		return err
	}
	if res != partition.ProbeOK {
		return nil
	}

	win, ok := r.(*sector.Window)
	if !ok {
		return nil
	}
	parentStart := uint64(win.Base()) / 512
	parentSize := uint64(win.TotalBytes()) / 512

	// A sub-prober only ever reads within its own window, so a violation
	// here means the window/offset bookkeeping itself is wrong rather
	// than a malformed nested table; there's nothing to recover by
	// continuing, so the nested table and its entries are discarded
	// instead of being left in list with an invariant violation nobody
	// acted on (DOS ignores this call's error return, treating a nested
	// probe as best-effort on top of its own already-valid primaries).
	for _, id := range list.TableIDsWithParent(parent) {
		tbl := list.Table(id)
		if tbl == nil {
			continue
		}
		tableOffsetSectors := parentStart + uint64(tbl.ByteOffset)/512
		entries := list.EntriesInTable(id)
		if err := partition.ValidateNested(tableOffsetSectors, parentStart, parentSize, entries); err != nil {
			list.RemoveTable(id)
			return err
		}
	}
	return nil
}

// Summary returns the top-level recognized scheme's type name and id
// string without exposing the full entry list — the spec's "PTTYPE/
// PTUUID only" fast path. It still runs the normal Dispatch (no Prober
// here supports a genuinely partial parse) and simply reads back the
// first table the winning Prober created; callers that only want the
// type/uuid can ignore the populated List.
func (d *Dispatcher) Summary(r sector.Reader) (typeName, idString string, err error) {
	list := partition.New()
	winner, err := d.Dispatch(r, list)
	if err != nil || winner == nil {
		return "", "", err
	}
	tables := list.Tables()
	if len(tables) == 0 {
		return winner.Name(), "", nil
	}
	return tables[0].TypeName, tables[0].IDString, nil
}
