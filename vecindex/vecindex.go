// Package vecindex implements the optional nearest-neighbor index over
// fixed-dimension vectors associated with frames (§4 item 8, "Vector
// index") as an exact flat search. It is an optional component, switched
// on per container: containers without FlagVecEnabled carry no vector segment.
package vecindex

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/errs"
)

// Index is a flat (brute-force) vector index: exact cosine-similarity
// search over every stored vector. Flat search is the right baseline for
// the per-file frame counts memvid targets (§9 "Design Notes" tolerates a
// later swap to a graph-based ANN without changing the footer's segment
// contract, since IndexSegment is opaque bytes plus a version number).
type Index struct {
	dim       int
	frameIDs  []uint64
	vectors   [][]float32
	magnitude []float32
}

// Build scans every non-deleted frame carrying a vector and adds it to the
// index. Frames are skipped if their vector's dimension disagrees with the
// first vector seen.
func Build(c *container.Container) (*Index, error) {
	idx := &Index{}
	for _, e := range c.Entries() {
		if e.Deleted() || e.Flags&container.EntryFlagHasVector == 0 {
			continue
		}
		_, meta, err := c.GetFrame(e.FrameID)
		if err != nil || !meta.HasVector {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(meta.Vector)
		}
		if len(meta.Vector) != idx.dim {
			continue
		}
		idx.frameIDs = append(idx.frameIDs, e.FrameID)
		idx.vectors = append(idx.vectors, meta.Vector)
		idx.magnitude = append(idx.magnitude, magnitudeOf(meta.Vector))
	}
	return idx, nil
}

func magnitudeOf(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Match is one nearest-neighbor result.
type Match struct {
	FrameID    uint64
	Similarity float32
}

// Search returns the topK frames whose stored vector has the highest
// cosine similarity to query.
func (idx *Index) Search(query []float32, topK int) ([]Match, error) {
	if len(query) != idx.dim {
		return nil, errs.New(errs.KindQuerySyntax, "vecindex.Search")
	}
	qMag := magnitudeOf(query)
	matches := make([]Match, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		if qMag == 0 || idx.magnitude[i] == 0 {
			continue
		}
		var dot float64
		for j := range v {
			dot += float64(v[j]) * float64(query[j])
		}
		sim := float32(dot) / (idx.magnitude[i] * qMag)
		matches = append(matches, Match{FrameID: idx.frameIDs[i], Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// FrameIDs returns every frame id carried by the index, for verify's
// cross-reference checks.
func (idx *Index) FrameIDs() []uint64 {
	return append([]uint64(nil), idx.frameIDs...)
}

// Serialize encodes the index to:
//
//	[dim:uint32][num_vectors:uint32] per vector: frame_id(u64), dim floats
func (idx *Index) Serialize() []byte {
	var buf []byte
	tmp4 := make([]byte, 4)
	tmp8 := make([]byte, 8)
	binary.LittleEndian.PutUint32(tmp4, uint32(idx.dim))
	buf = append(buf, tmp4...)
	binary.LittleEndian.PutUint32(tmp4, uint32(len(idx.frameIDs)))
	buf = append(buf, tmp4...)
	for i, fid := range idx.frameIDs {
		binary.LittleEndian.PutUint64(tmp8, fid)
		buf = append(buf, tmp8...)
		for _, f := range idx.vectors[i] {
			binary.LittleEndian.PutUint32(tmp4, math.Float32bits(f))
			buf = append(buf, tmp4...)
		}
	}
	return buf
}

// Deserialize rebuilds an Index from bytes produced by Serialize.
func Deserialize(buf []byte) (*Index, error) {
	idx := &Index{}
	fail := errs.New(errs.KindInvalidFrame, "vecindex.Deserialize")
	if len(buf) < 8 {
		return nil, fail
	}
	idx.dim = int(binary.LittleEndian.Uint32(buf[0:4]))
	n := int(binary.LittleEndian.Uint32(buf[4:8]))
	off := 8
	rowSize := 8 + idx.dim*4
	for i := 0; i < n; i++ {
		if off+rowSize > len(buf) {
			return nil, fail
		}
		fid := binary.LittleEndian.Uint64(buf[off:])
		off += 8
		vec := make([]float32, idx.dim)
		for j := 0; j < idx.dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
		idx.frameIDs = append(idx.frameIDs, fid)
		idx.vectors = append(idx.vectors, vec)
		idx.magnitude = append(idx.magnitude, magnitudeOf(vec))
	}
	return idx, nil
}
