package bptree

import (
	"encoding/binary"
	"fmt"
)

// Kind tags what a block currently holds. It replaces the source
// implementation's node-type-as-subclass design with a single tagged
// header field that accessor methods dispatch on.
type Kind uint8

const (
	KindFree Kind = iota
	KindSuper
	KindRoot
	KindInterior
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindFree:
		return "Free"
	case KindSuper:
		return "Super"
	case KindRoot:
		return "Root"
	case KindInterior:
		return "Interior"
	case KindLeaf:
		return "Leaf"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// headerSize is the fixed number of bytes every block begins with:
// kind(1) + keysize(2) + valuesize(2) + numKeys(2) + rootBlock(4) +
// freelistHead(4) + 1 reserved byte, rounded to 16 for alignment.
const headerSize = 16

// leafExtra and interiorExtra are the extra fixed-size fields every
// leaf/interior payload reserves ahead of the packed key/value/pointer
// array: a leaf's unread link pointer, and an interior's leading child
// pointer (P0), both uint32.
const leafExtra = 4
const interiorExtra = 4

// Node is a block decoded into memory: header fields plus the raw
// backing bytes, on which the accessors in node.go operate directly.
// A Node is a value materialized from a block on read and discarded
// after the caller is done with it — there is no shared node cache
// beyond whatever the block device's own read cache provides.
type Node struct {
	Kind         Kind
	KeySize      int
	ValueSize    int
	NumKeys      int
	RootBlock    int64
	FreelistHead int64

	raw []byte // full block, length == blockSize
}

// NewNode allocates an in-memory zeroed node of the given kind, format,
// and block size, ready to be filled in by the caller and persisted.
func NewNode(kind Kind, blockSize, keysize, valuesize int) *Node {
	return &Node{
		Kind:      kind,
		KeySize:   keysize,
		ValueSize: valuesize,
		raw:       make([]byte, blockSize),
	}
}

// DecodeBlock parses a raw block into a Node. Decoding a malformed
// block is a fatal error: the medium is assumed intact (§4.A).
func DecodeBlock(data []byte) (*Node, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("bptree: block too small to hold a header (%d bytes)", len(data))
	}

	n := &Node{
		Kind:         Kind(data[0]),
		KeySize:      int(binary.LittleEndian.Uint16(data[1:3])),
		ValueSize:    int(binary.LittleEndian.Uint16(data[3:5])),
		NumKeys:      int(binary.LittleEndian.Uint16(data[5:7])),
		RootBlock:    int64(binary.LittleEndian.Uint32(data[7:11])),
		FreelistHead: int64(binary.LittleEndian.Uint32(data[11:15])),
		raw:          make([]byte, len(data)),
	}
	copy(n.raw, data)

	switch n.Kind {
	case KindFree, KindSuper, KindRoot, KindInterior, KindLeaf:
	default:
		return nil, fmt.Errorf("%w: unknown block kind %d", ErrInsane, data[0])
	}

	return n, nil
}

// Encode serializes the node's header fields into its backing bytes and
// returns the full block, ready for BlockDevice.WriteBlock. Serialization
// is a pure function of the header fields plus whatever payload bytes
// the accessor methods already wrote into n.raw.
func (n *Node) Encode() []byte {
	binary.LittleEndian.PutUint16(n.raw[1:3], uint16(n.KeySize))
	binary.LittleEndian.PutUint16(n.raw[3:5], uint16(n.ValueSize))
	binary.LittleEndian.PutUint16(n.raw[5:7], uint16(n.NumKeys))
	binary.LittleEndian.PutUint32(n.raw[7:11], uint32(n.RootBlock))
	binary.LittleEndian.PutUint32(n.raw[11:15], uint32(n.FreelistHead))
	n.raw[0] = byte(n.Kind)

	out := make([]byte, len(n.raw))
	copy(out, n.raw)
	return out
}

func (n *Node) blockSize() int { return len(n.raw) }
