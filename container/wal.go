package container

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/memvid-dev/memvid/errs"
)

// FrameDelta locates one frame record written during the commit that a WAL
// entry describes (§3 "WAL record").
type FrameDelta struct {
	FrameID    uint64
	Offset     uint64
	Length     uint64
	MetaDigest uint32 // crc32 of the frame's encoded metadata; replay does not check it
}

// IndexDelta is an opaque, index-specific description of the secondary
// index mutation a commit performed (new postings, time entries, vector
// rows). Kind mirrors IndexSegmentKind; Payload is index-defined.
type IndexDelta struct {
	Kind    IndexSegmentKind
	Payload []byte
}

// WalEntry is the single pending-commit-intent blob written to the bounded
// WAL region during step 2 of the commit protocol (§4.5). It is replaced
// wholesale on each commit and logically truncated (its magic zeroed) once
// the new footer and header are durable, rather than accumulating records
// the way the teacher's per-page-write log did.
type WalEntry struct {
	PrevFooterOffset uint64
	NewFrames        []FrameDelta
	IndexDeltas      []IndexDelta
}

// encodeWalEntry serializes e to the layout:
//
//	[magic:8]["MV2WAL!"]
//	[prev_footer_offset:uint64]
//	[num_frames:uint32] per frame: id,offset,length(u64 each),digest(u32)
//	[num_deltas:uint32] per delta: kind(byte),len(u32),payload
//	[checksum:uint32]
func encodeWalEntry(e WalEntry) []byte {
	buf := make([]byte, 0, 64+len(e.NewFrames)*28)
	buf = append(buf, MagicWAL[:]...)

	tmp8 := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp8, e.PrevFooterOffset)
	buf = append(buf, tmp8...)

	tmp4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp4, uint32(len(e.NewFrames)))
	buf = append(buf, tmp4...)
	for _, fd := range e.NewFrames {
		binary.LittleEndian.PutUint64(tmp8, fd.FrameID)
		buf = append(buf, tmp8...)
		binary.LittleEndian.PutUint64(tmp8, fd.Offset)
		buf = append(buf, tmp8...)
		binary.LittleEndian.PutUint64(tmp8, fd.Length)
		buf = append(buf, tmp8...)
		binary.LittleEndian.PutUint32(tmp4, fd.MetaDigest)
		buf = append(buf, tmp4...)
	}

	binary.LittleEndian.PutUint32(tmp4, uint32(len(e.IndexDeltas)))
	buf = append(buf, tmp4...)
	for _, d := range e.IndexDeltas {
		buf = append(buf, byte(d.Kind))
		binary.LittleEndian.PutUint32(tmp4, uint32(len(d.Payload)))
		buf = append(buf, tmp4...)
		buf = append(buf, d.Payload...)
	}

	crc := crc32.ChecksumIEEE(buf)
	binary.LittleEndian.PutUint32(tmp4, crc)
	buf = append(buf, tmp4...)
	return buf
}

// decodeWalEntry parses a buffer previously produced by encodeWalEntry. It
// returns ok=false (no error) when the region holds no magic, meaning the
// WAL is logically empty rather than corrupt.
func decodeWalEntry(buf []byte) (entry WalEntry, ok bool, err error) {
	if len(buf) < 8 {
		return entry, false, nil
	}
	if string(buf[0:8]) != string(MagicWAL[:]) {
		return entry, false, nil
	}
	if len(buf) < 8+8+4+4 {
		return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
	}

	body := buf[:len(buf)-4]
	storedCRC := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if crc32.ChecksumIEEE(body) != storedCRC {
		return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
	}

	off := 8
	entry.PrevFooterOffset = binary.LittleEndian.Uint64(body[off:])
	off += 8

	if off+4 > len(body) {
		return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
	}
	numFrames := int(binary.LittleEndian.Uint32(body[off:]))
	off += 4
	for i := 0; i < numFrames; i++ {
		if off+28 > len(body) {
			return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
		}
		var fd FrameDelta
		fd.FrameID = binary.LittleEndian.Uint64(body[off:])
		off += 8
		fd.Offset = binary.LittleEndian.Uint64(body[off:])
		off += 8
		fd.Length = binary.LittleEndian.Uint64(body[off:])
		off += 8
		fd.MetaDigest = binary.LittleEndian.Uint32(body[off:])
		off += 4
		entry.NewFrames = append(entry.NewFrames, fd)
	}

	if off+4 > len(body) {
		return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
	}
	numDeltas := int(binary.LittleEndian.Uint32(body[off:]))
	off += 4
	for i := 0; i < numDeltas; i++ {
		if off+1+4 > len(body) {
			return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
		}
		kind := IndexSegmentKind(body[off])
		off++
		n := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		if off+n > len(body) {
			return entry, false, errs.New(errs.KindWalCorrupt, "container.decodeWalEntry")
		}
		payload := make([]byte, n)
		copy(payload, body[off:off+n])
		off += n
		entry.IndexDeltas = append(entry.IndexDeltas, IndexDelta{Kind: kind, Payload: payload})
	}

	return entry, true, nil
}

// walRegion wraps WriteAt/ReadAt access to the bounded WAL region of the
// container file (§4.3) — the region's offset and size come from the
// current header and never move once the file is created. It works over
// storageFile so the same code path serves on-disk and in-memory
// containers alike.
type walRegion struct {
	file   storageFile
	offset uint64
	size   uint64
}

// write durably stores entry in the region: a single WriteAt followed by a
// Sync, mirroring the teacher's pattern of an explicit fsync call after
// every durability-critical write (storage/wal.go Commit).
func (r walRegion) write(entry WalEntry) error {
	buf := encodeWalEntry(entry)
	if uint64(len(buf)) > r.size {
		return errs.New(errs.KindWalCorrupt, "container.walRegion.write")
	}
	if _, err := r.file.WriteAt(buf, int64(r.offset)); err != nil {
		return errs.Wrap(errs.KindIO, "container.walRegion.write", "", err)
	}
	return r.file.Sync()
}

// read loads and decodes the current contents of the region. ok is false
// when the region is logically empty.
func (r walRegion) read() (WalEntry, bool, error) {
	buf := make([]byte, r.size)
	n, err := r.file.ReadAt(buf, int64(r.offset))
	if err != nil && n == 0 {
		return WalEntry{}, false, nil
	}
	return decodeWalEntry(buf[:n])
}

// clear logically truncates the WAL by zeroing its magic prefix, the final
// step of the commit protocol (§4.5 step 5) — it does not shrink the file.
func (r walRegion) clear() error {
	zero := make([]byte, len(MagicWAL))
	if _, err := r.file.WriteAt(zero, int64(r.offset)); err != nil {
		return errs.Wrap(errs.KindIO, "container.walRegion.clear", "", err)
	}
	return r.file.Sync()
}
