// Package timeindex implements the ordered (timestamp, frame_id) structure
// backing chronological timeline traversal (§4.7 "Time Index").
package timeindex

import (
	"encoding/binary"
	"sort"

	"github.com/google/btree"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/errs"
)

// entryKey orders by (timestamp, frame id) ascending, matching the
// teacher's pattern of a comparison closure passed to btree.NewG
// (storage/index.go).
type entryKey struct {
	Timestamp int64
	FrameID   uint64
	URI       string
}

func less(a, b entryKey) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.FrameID < b.FrameID
}

// Index is an in-memory ordered time index built from (or reloaded into) a
// google/btree.BTreeG, serialized to a flat sorted segment on commit.
type Index struct {
	tree *btree.BTreeG[entryKey]
}

// Build scans every non-deleted frame in c and inserts (timestamp, frame
// id) pairs ordered by time.
func Build(c *container.Container) (*Index, error) {
	idx := &Index{tree: btree.NewG(32, less)}
	for _, e := range c.Entries() {
		if e.Deleted() {
			continue
		}
		idx.tree.ReplaceOrInsert(entryKey{Timestamp: e.Timestamp, FrameID: e.FrameID, URI: e.URI})
	}
	return idx, nil
}

// Range is one (timestamp, frame id, uri) row returned by a query.
type Range struct {
	Timestamp int64
	FrameID   uint64
	URI       string
}

// Query describes a timeline traversal (§4.7): a half-open [Since, Until)
// window (Until applies only when HasUntil is set; otherwise the window has
// no upper bound), a traversal Descending flag, and a
// result Limit (zero means unbounded).
type Query struct {
	Since      int64
	Until      int64
	HasUntil   bool
	Descending bool
	Limit      int
}

// Run executes q against idx and returns matching rows in traversal order:
// ascending by timestamp, or descending when q.Descending is set.
func (idx *Index) Run(q Query) []Range {
	var out []Range
	visit := func(k entryKey) bool {
		if k.Timestamp < q.Since {
			return true
		}
		if q.HasUntil && k.Timestamp >= q.Until {
			return q.Descending // descending: keep going toward lower timestamps
		}
		out = append(out, Range{Timestamp: k.Timestamp, FrameID: k.FrameID, URI: k.URI})
		return q.Limit <= 0 || len(out) < q.Limit
	}

	if q.Descending {
		idx.tree.Descend(visit)
	} else {
		idx.tree.Ascend(visit)
	}
	return out
}

// Serialize flattens the tree into a sorted segment:
//
//	[num_entries:uint32] per entry: timestamp(i64), frame_id(u64), uri
func (idx *Index) Serialize() []byte {
	var rows []entryKey
	idx.tree.Ascend(func(k entryKey) bool {
		rows = append(rows, k)
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	var buf []byte
	tmp4 := make([]byte, 4)
	tmp8 := make([]byte, 8)
	binary.LittleEndian.PutUint32(tmp4, uint32(len(rows)))
	buf = append(buf, tmp4...)
	for _, r := range rows {
		binary.LittleEndian.PutUint64(tmp8, uint64(r.Timestamp))
		buf = append(buf, tmp8...)
		binary.LittleEndian.PutUint64(tmp8, r.FrameID)
		buf = append(buf, tmp8...)
		binary.LittleEndian.PutUint16(tmp4[:2], uint16(len(r.URI)))
		buf = append(buf, tmp4[:2]...)
		buf = append(buf, r.URI...)
	}
	return buf
}

// FrameIDs returns every frame id carried by the index, for verify's
// cross-reference checks.
func (idx *Index) FrameIDs() []uint64 {
	var ids []uint64
	idx.tree.Ascend(func(k entryKey) bool {
		ids = append(ids, k.FrameID)
		return true
	})
	return ids
}

// Deserialize rebuilds an Index from bytes produced by Serialize.
func Deserialize(buf []byte) (*Index, error) {
	idx := &Index{tree: btree.NewG(32, less)}
	off := 0
	fail := errs.New(errs.KindInvalidFrame, "timeindex.Deserialize")
	if off+4 > len(buf) {
		return nil, fail
	}
	n := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	for i := 0; i < n; i++ {
		if off+8+8+2 > len(buf) {
			return nil, fail
		}
		ts := int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
		fid := binary.LittleEndian.Uint64(buf[off:])
		off += 8
		ulen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+ulen > len(buf) {
			return nil, fail
		}
		uri := string(buf[off : off+ulen])
		off += ulen
		idx.tree.ReplaceOrInsert(entryKey{Timestamp: ts, FrameID: fid, URI: uri})
	}
	return idx, nil
}
