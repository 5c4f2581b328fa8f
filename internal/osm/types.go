// Package osm defines the entity types and handler contract shared by the
// PBF and XML input paths and by downstream consumers.
package osm

// Tag is a single key/value pair. Both strings alias the decoded block's
// string table and are only valid for the duration of the handler call that
// delivered them; consumers that retain tags must copy.
type Tag struct {
	Key   string
	Value string
}

// Node is a decoded OSM node. RawLatitude and RawLongitude are integer
// coordinates in the source block's granularity units; no projection or
// scaling is applied. Version, Timestamp and Changeset are zero unless
// metadata decoding was requested.
type Node struct {
	ID           int64
	RawLatitude  int64
	RawLongitude int64
	Tags         []Tag
	Version      int32
	Timestamp    int64
	Changeset    int64
}

// Way is a decoded OSM way. NodeRefs holds absolute node ids, already
// reconstructed from the file's delta encoding.
type Way struct {
	ID        int64
	NodeRefs  []int64
	Tags      []Tag
	Version   int32
	Timestamp int64
	Changeset int64
}

// MemberType discriminates relation members.
type MemberType uint8

const (
	NodeMember MemberType = iota
	WayMember
	RelationMember
)

func (t MemberType) String() string {
	switch t {
	case NodeMember:
		return "node"
	case WayMember:
		return "way"
	case RelationMember:
		return "relation"
	}
	return "unknown"
}

// Member is a single relation member. Role may be the empty string but is
// never invalid; it aliases the block's string table like tag strings do.
type Member struct {
	Type MemberType
	ID   int64
	Role string
}

// Relation is a decoded OSM relation.
type Relation struct {
	ID        int64
	Members   []Member
	Tags      []Tag
	Version   int32
	Timestamp int64
	Changeset int64
}

// Mode reports which section of an OSC change file an entity came from.
// Entities from plain .osm and .pbf inputs carry ModeBulk.
type Mode uint8

const (
	ModeBulk Mode = iota
	ModeCreate
	ModeModify
	ModeDelete
)

// Context describes where a batch came from. ThreadIndex is the worker slot
// in [0, thread count) and is stable for the lifetime of that worker, so
// handlers can use it to shard their own accumulators without locking.
// BlockIndex is the source block ordinal assigned by the framer.
type Context struct {
	ThreadIndex int
	BlockIndex  uint64
	Mode        Mode
}

// Handlers receive batches of decoded entities. Batches and everything they
// reference are only valid for the duration of the call. A false return
// stops the decode. Any handler may be nil, in which case that entity kind
// is decoded but not delivered. Handlers are invoked concurrently from
// multiple workers and must be safe for that.
type (
	NodeHandler     func(ctx *Context, nodes []Node) bool
	WayHandler      func(ctx *Context, ways []Way) bool
	RelationHandler func(ctx *Context, relations []Relation) bool
)

// Handlers bundles the three entity callbacks.
type Handlers struct {
	Node     NodeHandler
	Way      WayHandler
	Relation RelationHandler
}
