package partition

// TableID indexes into a PartitionList's table arena (§9 Design Note:
// "an arena with indices is equally valid" for refcounted PartitionTable).
// NoTable is the zero value meaning "no parent table".
type TableID int

const NoTable TableID = -1

// Table mirrors spec.md's PartitionTable: {type_name, byte_offset,
// id_string, parent_ref, refcount}. It is reference-counted because the
// entries that reference it may outlive the call that created it; when
// the last referencing entry is removed, the table is released (its slot
// in the arena is cleared and reusable).
type Table struct {
	TypeName   string // e.g. "dos", "gpt", "bsd"
	ByteOffset int64  // absolute offset of the table on the device
	IDString   string // disk UUID (GPT) or 8-hex-char disk signature (DOS)
	ParentRef  TableID
	refcount   int
	live       bool
}

func (t *Table) Refcount() int { return t.refcount }
func (t *Table) Live() bool    { return t.live }
