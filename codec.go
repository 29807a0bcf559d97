package trie

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

// Wire format, version 1:
//
//	byte     rootPresent (0 or 1)
//	[32]byte rootHash              (only if rootPresent)
//	uvarint  branchCount
//	uvarint  leafCount
//	uvarint  unvisitedCount
//	branchCount * branch:
//	  uvarint left, uvarint right, uvarint bitIdx, uvarint leftPrefix,
//	  uvarint priorWord, uvarint prefixLen, prefixLen*uvarint words
//	leafCount * leaf:
//	  [32]byte keyHash, uvarint valueLen, valueLen bytes
//	unvisitedCount * [32]byte hash
//
// This mirrors Snapshot's own three-vector, dense-addressed layout directly —
// branches, then leaves, then bare unvisited hashes, in that order — so no
// per-node type tag is needed: an index's position alone determines which
// vector it falls in.
//
// The whole byte stream is wrapped in snappy block compression, matching
// the teacher pack's use of golang/snappy for node-database payloads
// (ethereum-go-ethereum's snapshot layers compress the same way). A
// Snapshot is small enough that a single-shot block codec is preferable to
// a streaming frame format.
const codecVersion = 1

// marshalableValue is the constraint a value type V must satisfy to be
// encoded: it must be portably hashable (so it can live in a Leaf at all)
// and able to serialize itself.
type marshalableValue interface {
	PortableHash
	encoding.BinaryMarshaler
}

// unmarshalableValue is satisfied by *V for a value type V that can be
// decoded back out of the wire format. The pointer-receiver constraint is
// the standard Go idiom for generic decode functions: V itself stays a
// plain value type (so it can be stored by value in Leaf[V]), while
// decoding necessarily needs a pointer to write into.
type unmarshalableValue[V any] interface {
	*V
	encoding.BinaryUnmarshaler
}

// EncodeSnapshot serializes snap to w in the wire format above, compressed
// with snappy.
func EncodeSnapshot[V marshalableValue](w io.Writer, snap *Snapshot[V]) error {
	var buf bytes.Buffer
	if hash, ok := snap.CurrentRoot().Unwrap(); ok {
		buf.WriteByte(1)
		buf.Write(hash[:])
	} else {
		buf.WriteByte(0)
	}

	writeUvarint(&buf, uint64(len(snap.branches)))
	writeUvarint(&buf, uint64(len(snap.leaves)))
	writeUvarint(&buf, uint64(len(snap.unvisited)))

	for _, branch := range snap.branches {
		encodeBranch(&buf, branch)
	}
	for _, leaf := range snap.leaves {
		if err := encodeLeaf(&buf, leaf); err != nil {
			return errors.Wrap(err, "encoding snapshot leaf")
		}
	}
	for _, hash := range snap.unvisited {
		buf.Write(hash[:])
	}

	compressed := snappy.Encode(nil, buf.Bytes())
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(compressed)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

func encodeBranch[V PortableHash](buf *bytes.Buffer, sn StoredBranch[V]) {
	writeUvarint(buf, uint64(sn.Left))
	writeUvarint(buf, uint64(sn.Right))
	writeUvarint(buf, uint64(sn.Mask.BitIdx))
	writeUvarint(buf, uint64(sn.Mask.LeftPrefix))
	writeUvarint(buf, uint64(sn.PriorWord))
	writeUvarint(buf, uint64(len(sn.Prefix)))
	for _, w := range sn.Prefix {
		writeUvarint(buf, uint64(w))
	}
}

func encodeLeaf[V marshalableValue](buf *bytes.Buffer, sn StoredLeaf[V]) error {
	kb := sn.Leaf.KeyHash.ToBytes()
	buf.Write(kb[:])
	valueBytes, err := sn.Leaf.Value.MarshalBinary()
	if err != nil {
		return err
	}
	writeUvarint(buf, uint64(len(valueBytes)))
	buf.Write(valueBytes)
	return nil
}

// DecodeSnapshot reads a snapshot previously written by EncodeSnapshot. PV
// pins down V's pointer type as the one satisfying BinaryUnmarshaler,
// following the same generic-decode idiom as encoding/json's
// UnmarshalTypeError helpers built on top of reflection: here it is a type
// parameter instead of reflection.
func DecodeSnapshot[V any, PV unmarshalableValue[V]](r io.Reader) (*Snapshot[V], error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, errors.Wrap(err, "reading snapshot length prefix")
	}
	compressed := make([]byte, binary.LittleEndian.Uint32(lenPrefix[:]))
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, errors.Wrap(err, "reading compressed snapshot body")
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing snapshot body")
	}
	buf := bytes.NewReader(raw)

	rootPresentByte, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	var root TrieRoot[NodeHash]
	if rootPresentByte == 1 {
		var h NodeHash
		if _, err := io.ReadFull(buf, h[:]); err != nil {
			return nil, err
		}
		root = NodeTrieRoot(h)
	}

	branchCount, err := readUvarint(buf)
	if err != nil {
		return nil, err
	}
	leafCount, err := readUvarint(buf)
	if err != nil {
		return nil, err
	}
	unvisitedCount, err := readUvarint(buf)
	if err != nil {
		return nil, err
	}

	branches := make([]StoredBranch[V], branchCount)
	for i := range branches {
		b, err := decodeBranch[V](buf)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding snapshot branch %d", i)
		}
		branches[i] = b
	}
	leaves := make([]StoredLeaf[V], leafCount)
	for i := range leaves {
		l, err := decodeLeaf[V, PV](buf)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding snapshot leaf %d", i)
		}
		leaves[i] = l
	}
	unvisited := make([]NodeHash, unvisitedCount)
	for i := range unvisited {
		if _, err := io.ReadFull(buf, unvisited[i][:]); err != nil {
			return nil, errors.Wrapf(err, "decoding snapshot unvisited hash %d", i)
		}
	}
	return NewSnapshot(root, branches, leaves, unvisited), nil
}

func decodeBranch[V PortableHash](buf *bytes.Reader) (StoredBranch[V], error) {
	left, err := readUvarint(buf)
	if err != nil {
		return StoredBranch[V]{}, err
	}
	right, err := readUvarint(buf)
	if err != nil {
		return StoredBranch[V]{}, err
	}
	bitIdx, err := readUvarint(buf)
	if err != nil {
		return StoredBranch[V]{}, err
	}
	leftPrefix, err := readUvarint(buf)
	if err != nil {
		return StoredBranch[V]{}, err
	}
	priorWord, err := readUvarint(buf)
	if err != nil {
		return StoredBranch[V]{}, err
	}
	prefixLen, err := readUvarint(buf)
	if err != nil {
		return StoredBranch[V]{}, err
	}
	prefix := make([]uint32, prefixLen)
	for i := range prefix {
		w, err := readUvarint(buf)
		if err != nil {
			return StoredBranch[V]{}, err
		}
		prefix[i] = uint32(w)
	}
	return StoredBranch[V]{
		Left: Idx(left), Right: Idx(right),
		Mask:      BranchMask{BitIdx: uint32(bitIdx), LeftPrefix: uint32(leftPrefix)},
		PriorWord: uint32(priorWord),
		Prefix:    prefix,
	}, nil
}

func decodeLeaf[V any, PV unmarshalableValue[V]](buf *bytes.Reader) (StoredLeaf[V], error) {
	var kb [32]byte
	if _, err := io.ReadFull(buf, kb[:]); err != nil {
		return StoredLeaf[V]{}, err
	}
	valueLen, err := readUvarint(buf)
	if err != nil {
		return StoredLeaf[V]{}, err
	}
	valueBytes := make([]byte, valueLen)
	if _, err := io.ReadFull(buf, valueBytes); err != nil {
		return StoredLeaf[V]{}, err
	}
	var value V
	if err := PV(&value).UnmarshalBinary(valueBytes); err != nil {
		return StoredLeaf[V]{}, err
	}
	return StoredLeaf[V]{Leaf: Leaf[V]{KeyHash: KeyHashFromBytes(&kb), Value: value}}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}
