package container

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/memvid-dev/memvid/errs"
)

// Entry is one row of the TOC footer's frame index (§3 "TOC footer").
type Entry struct {
	FrameID   uint64
	Offset    uint64
	Length    uint64
	Flags     uint32
	Timestamp int64
	URI       string
	Title     string
	Tags      map[string]string
}

// Deleted reports whether the entry's tombstone bit is set.
func (e Entry) Deleted() bool { return e.Flags&EntryFlagDeleted != 0 }

// IndexSegment is a footer-referenced pointer to an immutable secondary
// index segment (§3 "index_segments").
type IndexSegment struct {
	Kind    IndexSegmentKind
	Version uint32
	Offset  uint64
	Length  uint64
}

// Footer is the serialized catalog written fresh at a new file offset on
// every commit (§4.4) — it is never overwritten in place.
type Footer struct {
	Entries       []Entry
	IndexSegments []IndexSegment
	CommitSeq     uint64
}

// encodeFooter serializes f to the on-disk layout:
//
//	[num_entries:uint32] per entry: frame_id,offset,length,flags(u32),
//	    timestamp(i64), uri(len-prefixed), title(len-prefixed),
//	    num_tags(u16) then k/v len-prefixed pairs
//	[num_segments:uint16] per segment: kind(byte), version(u32),
//	    offset(u64), length(u64)
//	[commit_seq:uint64]
//	[footer_crc:uint32]
//	[trailing magic:8] "MV2FOOT!"
func encodeFooter(f Footer) []byte {
	var buf bytes.Buffer
	tmp8 := make([]byte, 8)

	binary.LittleEndian.PutUint32(tmp8[:4], uint32(len(f.Entries)))
	buf.Write(tmp8[:4])
	for _, e := range f.Entries {
		binary.LittleEndian.PutUint64(tmp8, e.FrameID)
		buf.Write(tmp8)
		binary.LittleEndian.PutUint64(tmp8, e.Offset)
		buf.Write(tmp8)
		binary.LittleEndian.PutUint64(tmp8, e.Length)
		buf.Write(tmp8)
		binary.LittleEndian.PutUint32(tmp8[:4], e.Flags)
		buf.Write(tmp8[:4])
		binary.LittleEndian.PutUint64(tmp8, uint64(e.Timestamp))
		buf.Write(tmp8)
		writeFooterString(&buf, e.URI)
		writeFooterString(&buf, e.Title)
		binary.LittleEndian.PutUint16(tmp8[:2], uint16(len(e.Tags)))
		buf.Write(tmp8[:2])
		for k, v := range e.Tags {
			writeFooterShortString(&buf, k)
			writeFooterShortString(&buf, v)
		}
	}

	binary.LittleEndian.PutUint16(tmp8[:2], uint16(len(f.IndexSegments)))
	buf.Write(tmp8[:2])
	for _, seg := range f.IndexSegments {
		buf.WriteByte(byte(seg.Kind))
		binary.LittleEndian.PutUint32(tmp8[:4], seg.Version)
		buf.Write(tmp8[:4])
		binary.LittleEndian.PutUint64(tmp8, seg.Offset)
		buf.Write(tmp8)
		binary.LittleEndian.PutUint64(tmp8, seg.Length)
		buf.Write(tmp8)
	}

	binary.LittleEndian.PutUint64(tmp8, f.CommitSeq)
	buf.Write(tmp8)

	body := buf.Bytes()
	crc := crc32.ChecksumIEEE(body)
	out := make([]byte, 0, len(body)+4+8)
	out = append(out, body...)
	crcBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBuf, crc)
	out = append(out, crcBuf...)
	out = append(out, MagicFooter[:]...)
	return out
}

func writeFooterString(buf *bytes.Buffer, s string) {
	tmp4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp4, uint32(len(s)))
	buf.Write(tmp4)
	buf.WriteString(s)
}

func writeFooterShortString(buf *bytes.Buffer, s string) {
	tmp2 := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp2, uint16(len(s)))
	buf.Write(tmp2)
	buf.WriteString(s)
}

// decodeFooter parses a full footer buffer (including trailing magic and
// CRC), validating both.
func decodeFooter(buf []byte) (Footer, error) {
	var f Footer
	if len(buf) < 8+4 || !bytes.Equal(buf[len(buf)-8:], MagicFooter[:]) {
		return f, errs.New(errs.KindInvalidFooter, "container.decodeFooter")
	}
	body := buf[:len(buf)-12]
	storedCRC := binary.LittleEndian.Uint32(buf[len(buf)-12 : len(buf)-8])
	if crc32.ChecksumIEEE(body) != storedCRC {
		return f, errs.New(errs.KindInvalidFooter, "container.decodeFooter")
	}

	off := 0
	if off+4 > len(body) {
		return f, errs.New(errs.KindInvalidFooter, "container.decodeFooter")
	}
	numEntries := int(binary.LittleEndian.Uint32(body[off:]))
	off += 4

	readU64 := func() (uint64, bool) {
		if off+8 > len(body) {
			return 0, false
		}
		v := binary.LittleEndian.Uint64(body[off:])
		off += 8
		return v, true
	}
	readU32 := func() (uint32, bool) {
		if off+4 > len(body) {
			return 0, false
		}
		v := binary.LittleEndian.Uint32(body[off:])
		off += 4
		return v, true
	}
	readStr := func() (string, bool) {
		n, ok := readU32()
		if !ok || off+int(n) > len(body) {
			return "", false
		}
		s := string(body[off : off+int(n)])
		off += int(n)
		return s, true
	}
	readShortStr := func() (string, bool) {
		if off+2 > len(body) {
			return "", false
		}
		n := int(binary.LittleEndian.Uint16(body[off:]))
		off += 2
		if off+n > len(body) {
			return "", false
		}
		s := string(body[off : off+n])
		off += n
		return s, true
	}

	fail := errs.New(errs.KindInvalidFooter, "container.decodeFooter")
	for i := 0; i < numEntries; i++ {
		var e Entry
		var ok bool
		if e.FrameID, ok = readU64(); !ok {
			return f, fail
		}
		if e.Offset, ok = readU64(); !ok {
			return f, fail
		}
		if e.Length, ok = readU64(); !ok {
			return f, fail
		}
		if e.Flags, ok = readU32(); !ok {
			return f, fail
		}
		var ts uint64
		if ts, ok = readU64(); !ok {
			return f, fail
		}
		e.Timestamp = int64(ts)
		if e.URI, ok = readStr(); !ok {
			return f, fail
		}
		if e.Title, ok = readStr(); !ok {
			return f, fail
		}
		if off+2 > len(body) {
			return f, fail
		}
		numTags := int(binary.LittleEndian.Uint16(body[off:]))
		off += 2
		e.Tags = make(map[string]string, numTags)
		for j := 0; j < numTags; j++ {
			k, ok1 := readShortStr()
			v, ok2 := readShortStr()
			if !ok1 || !ok2 {
				return f, fail
			}
			e.Tags[k] = v
		}
		f.Entries = append(f.Entries, e)
	}

	if off+2 > len(body) {
		return f, fail
	}
	numSegs := int(binary.LittleEndian.Uint16(body[off:]))
	off += 2
	for i := 0; i < numSegs; i++ {
		if off+1 > len(body) {
			return f, fail
		}
		kind := IndexSegmentKind(body[off])
		off++
		version, ok := readU32()
		if !ok {
			return f, fail
		}
		segOffset, ok := readU64()
		if !ok {
			return f, fail
		}
		segLength, ok := readU64()
		if !ok {
			return f, fail
		}
		f.IndexSegments = append(f.IndexSegments, IndexSegment{
			Kind: kind, Version: version, Offset: segOffset, Length: segLength,
		})
	}

	seq, ok := readU64()
	if !ok {
		return f, fail
	}
	f.CommitSeq = seq

	return f, nil
}

// metadataDigest returns a short checksum of an encoded Metadata blob.
// Commit records it in each WAL FrameDelta (§3 "WAL record"); WAL replay
// does not check it.
func metadataDigest(raw []byte) uint32 {
	return crc32.ChecksumIEEE(raw)
}

// encodeIndexSegment serializes an IndexSegment pointer to:
// [kind:byte][version:uint32][offset:uint64][length:uint64].
func encodeIndexSegment(seg IndexSegment) []byte {
	buf := make([]byte, 1+4+8+8)
	buf[0] = byte(seg.Kind)
	binary.LittleEndian.PutUint32(buf[1:5], seg.Version)
	binary.LittleEndian.PutUint64(buf[5:13], seg.Offset)
	binary.LittleEndian.PutUint64(buf[13:21], seg.Length)
	return buf
}

// decodeIndexSegment reverses encodeIndexSegment.
func decodeIndexSegment(buf []byte) (IndexSegment, error) {
	var seg IndexSegment
	if len(buf) < 21 {
		return seg, errs.New(errs.KindWalCorrupt, "container.decodeIndexSegment")
	}
	seg.Kind = IndexSegmentKind(buf[0])
	seg.Version = binary.LittleEndian.Uint32(buf[1:5])
	seg.Offset = binary.LittleEndian.Uint64(buf[5:13])
	seg.Length = binary.LittleEndian.Uint64(buf[13:21])
	return seg, nil
}

// FindLexSegment, FindTimeSegment and FindVecSegment return the most
// recent segment of their kind, or ok=false if the footer carries none —
// every optional subsystem tolerates absence (§4.9/§9).
func (f Footer) FindLexSegment() (IndexSegment, bool)  { return f.findIndexSegment(SegmentLex) }
func (f Footer) FindTimeSegment() (IndexSegment, bool) { return f.findIndexSegment(SegmentTime) }
func (f Footer) FindVecSegment() (IndexSegment, bool)  { return f.findIndexSegment(SegmentVec) }

// findIndexSegment returns the most recent segment of the given kind, or
// ok=false if the footer has none (optional subsystems tolerate absence,
// §4.9/§9).
func (f Footer) findIndexSegment(kind IndexSegmentKind) (IndexSegment, bool) {
	for i := len(f.IndexSegments) - 1; i >= 0; i-- {
		if f.IndexSegments[i].Kind == kind {
			return f.IndexSegments[i], true
		}
	}
	return IndexSegment{}, false
}
