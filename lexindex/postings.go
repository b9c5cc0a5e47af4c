package lexindex

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/errs"
)

// postingList is one term's inverted list: a roaring bitmap of internal
// doc ids (for fast boolean set algebra), a parallel per-doc term frequency
// used for BM25 scoring, and a parallel per-doc sorted list of token
// positions used for ordered-adjacency phrase matching (§4.6 "Query
// parsing": quoted phrases). Neither the bitmap nor the frequency alone can
// carry word order.
type postingList struct {
	bitmap    *roaring.Bitmap
	freq      map[uint32]uint32
	positions map[uint32][]uint32
}

// Index is a built (or loaded) lexical index. Internal doc ids are a dense
// uint32 space assigned in frame-id order, since roaring.Bitmap operates on
// uint32 keys while frame ids are uint64 (§3 "Lexical index").
type Index struct {
	docFrameID []uint64          // docID -> frame id
	docURI     []string          // docID -> uri
	docTitle   []string          // docID -> title
	docLen     []int             // docID -> token count
	frameToDoc map[uint64]uint32 // frame id -> docID
	postings   map[string]*postingList
	avgDocLen  float64
}

// BM25 tuning constants (§3 "Scoring").
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Build constructs an Index by scanning every non-deleted frame in c as of
// its currently loaded footer.
func Build(c *container.Container) (*Index, error) {
	entries := c.Entries()
	idx := &Index{
		frameToDoc: make(map[uint64]uint32, len(entries)),
		postings:   make(map[string]*postingList),
	}

	var totalLen int
	for _, e := range entries {
		if e.Deleted() {
			continue
		}
		_, meta, err := c.GetFrame(e.FrameID)
		if err != nil {
			continue
		}
		docID := uint32(len(idx.docFrameID))
		idx.docFrameID = append(idx.docFrameID, e.FrameID)
		idx.docURI = append(idx.docURI, e.URI)
		idx.docTitle = append(idx.docTitle, e.Title)
		idx.frameToDoc[e.FrameID] = docID

		tokens := Tokenize(meta.SearchText)
		idx.docLen = append(idx.docLen, len(tokens))
		totalLen += len(tokens)

		counts := make(map[string]uint32, len(tokens))
		positions := make(map[string][]uint32, len(tokens))
		for i, t := range tokens {
			counts[t]++
			positions[t] = append(positions[t], uint32(i))
		}
		for term, freq := range counts {
			pl, ok := idx.postings[term]
			if !ok {
				pl = &postingList{bitmap: roaring.New(), freq: make(map[uint32]uint32), positions: make(map[uint32][]uint32)}
				idx.postings[term] = pl
			}
			pl.bitmap.Add(docID)
			pl.freq[docID] = freq
			pl.positions[docID] = positions[term]
		}
	}

	if len(idx.docFrameID) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(idx.docFrameID))
	}
	return idx, nil
}

// bm25Score returns the BM25 contribution of a single term for docID.
func (idx *Index) bm25Score(term string, docID uint32) float64 {
	pl, ok := idx.postings[term]
	if !ok {
		return 0
	}
	freq, ok := pl.freq[docID]
	if !ok {
		return 0
	}
	n := float64(len(idx.docFrameID))
	df := float64(pl.bitmap.GetCardinality())
	idf := math.Log(1 + (n-df+0.5)/(df+0.5))
	dl := float64(idx.docLen[docID])
	avgdl := idx.avgDocLen
	if avgdl == 0 {
		avgdl = 1
	}
	tf := float64(freq)
	return idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*(dl/avgdl)))
}

// Serialize encodes the index into the footer-referenced segment byte
// layout:
//
//	[num_docs:uint32] per doc: frame_id(u64), doc_len(u32), uri, title
//	[num_terms:uint32] per term: term(short string), bitmap(len-prefixed,
//	    roaring's native serialization), then per doc carrying the term:
//	    docID(u32), freq(u32), num_positions(u32), positions(u32 each) —
//	    the position list backs ordered-adjacency phrase matching
func (idx *Index) Serialize() ([]byte, error) {
	var buf []byte
	tmp4 := make([]byte, 4)
	tmp8 := make([]byte, 8)

	binary.LittleEndian.PutUint32(tmp4, uint32(len(idx.docFrameID)))
	buf = append(buf, tmp4...)
	for i, fid := range idx.docFrameID {
		binary.LittleEndian.PutUint64(tmp8, fid)
		buf = append(buf, tmp8...)
		binary.LittleEndian.PutUint32(tmp4, uint32(idx.docLen[i]))
		buf = append(buf, tmp4...)
		buf = appendShortString(buf, idx.docURI[i])
		buf = appendShortString(buf, idx.docTitle[i])
	}

	terms := make([]string, 0, len(idx.postings))
	for t := range idx.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	binary.LittleEndian.PutUint32(tmp4, uint32(len(terms)))
	buf = append(buf, tmp4...)
	for _, term := range terms {
		pl := idx.postings[term]
		buf = appendShortString(buf, term)

		bmBytes, err := pl.bitmap.ToBytes()
		if err != nil {
			return nil, errs.Wrap(errs.KindUnrecoverable, "lexindex.Serialize", "", err)
		}
		binary.LittleEndian.PutUint32(tmp4, uint32(len(bmBytes)))
		buf = append(buf, tmp4...)
		buf = append(buf, bmBytes...)

		binary.LittleEndian.PutUint32(tmp4, uint32(len(pl.freq)))
		buf = append(buf, tmp4...)
		docIDs := make([]uint32, 0, len(pl.freq))
		for d := range pl.freq {
			docIDs = append(docIDs, d)
		}
		sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })
		for _, d := range docIDs {
			binary.LittleEndian.PutUint32(tmp4, d)
			buf = append(buf, tmp4...)
			binary.LittleEndian.PutUint32(tmp4, pl.freq[d])
			buf = append(buf, tmp4...)
			positions := pl.positions[d]
			binary.LittleEndian.PutUint32(tmp4, uint32(len(positions)))
			buf = append(buf, tmp4...)
			for _, p := range positions {
				binary.LittleEndian.PutUint32(tmp4, p)
				buf = append(buf, tmp4...)
			}
		}
	}

	return buf, nil
}

// Deserialize loads an Index from bytes produced by Serialize.
func Deserialize(buf []byte) (*Index, error) {
	idx := &Index{frameToDoc: make(map[uint64]uint32), postings: make(map[string]*postingList)}
	off := 0
	fail := errs.New(errs.KindInvalidFrame, "lexindex.Deserialize")

	readU32 := func() (uint32, bool) {
		if off+4 > len(buf) {
			return 0, false
		}
		v := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		return v, true
	}
	readU64 := func() (uint64, bool) {
		if off+8 > len(buf) {
			return 0, false
		}
		v := binary.LittleEndian.Uint64(buf[off:])
		off += 8
		return v, true
	}
	readShort := func() (string, bool) {
		if off+2 > len(buf) {
			return "", false
		}
		n := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+n > len(buf) {
			return "", false
		}
		s := string(buf[off : off+n])
		off += n
		return s, true
	}

	numDocs, ok := readU32()
	if !ok {
		return nil, fail
	}
	var totalLen int
	for i := uint32(0); i < numDocs; i++ {
		fid, ok := readU64()
		if !ok {
			return nil, fail
		}
		dl, ok := readU32()
		if !ok {
			return nil, fail
		}
		uri, ok := readShort()
		if !ok {
			return nil, fail
		}
		title, ok := readShort()
		if !ok {
			return nil, fail
		}
		idx.docFrameID = append(idx.docFrameID, fid)
		idx.docLen = append(idx.docLen, int(dl))
		idx.docURI = append(idx.docURI, uri)
		idx.docTitle = append(idx.docTitle, title)
		idx.frameToDoc[fid] = uint32(i)
		totalLen += int(dl)
	}
	if numDocs > 0 {
		idx.avgDocLen = float64(totalLen) / float64(numDocs)
	}

	numTerms, ok := readU32()
	if !ok {
		return nil, fail
	}
	for i := uint32(0); i < numTerms; i++ {
		term, ok := readShort()
		if !ok {
			return nil, fail
		}
		bmLen, ok := readU32()
		if !ok {
			return nil, fail
		}
		if off+int(bmLen) > len(buf) {
			return nil, fail
		}
		bm := roaring.New()
		if _, err := bm.FromBuffer(buf[off : off+int(bmLen)]); err != nil {
			return nil, errs.Wrap(errs.KindInvalidFrame, "lexindex.Deserialize", "", err)
		}
		off += int(bmLen)

		numFreq, ok := readU32()
		if !ok {
			return nil, fail
		}
		pl := &postingList{bitmap: bm, freq: make(map[uint32]uint32, numFreq), positions: make(map[uint32][]uint32, numFreq)}
		for j := uint32(0); j < numFreq; j++ {
			d, ok := readU32()
			if !ok {
				return nil, fail
			}
			f, ok := readU32()
			if !ok {
				return nil, fail
			}
			pl.freq[d] = f
			numPos, ok := readU32()
			if !ok {
				return nil, fail
			}
			pos := make([]uint32, numPos)
			for k := uint32(0); k < numPos; k++ {
				p, ok := readU32()
				if !ok {
					return nil, fail
				}
				pos[k] = p
			}
			pl.positions[d] = pos
		}
		idx.postings[term] = pl
	}

	return idx, nil
}

// FrameIDs returns every frame id the index carries a posting for, for
// cross-reference checks (verify) against the footer's current entries.
func (idx *Index) FrameIDs() []uint64 {
	return append([]uint64(nil), idx.docFrameID...)
}

func appendShortString(buf []byte, s string) []byte {
	tmp2 := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp2, uint16(len(s)))
	buf = append(buf, tmp2...)
	return append(buf, s...)
}
