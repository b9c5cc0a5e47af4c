package container

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/memvid-dev/memvid/errs"
)

// maxFooterScanEntries/StrLen bound the counts parseFooterForward will
// accept while probing a candidate start offset, so a run of ordinary
// frame-log bytes that happens to look like a huge count field fails the
// candidate immediately instead of attempting a giant allocation.
const (
	maxFooterScanEntries = 1 << 20
	maxFooterScanStrLen  = 1 << 24
)

// scanForFooter walks backward from the end of the file for MagicFooter
// and tries to parse a footer ending at each occurrence, keeping the
// highest-commit_seq valid candidate (§4.3 "Recovery on open", §4.9
// technique #2). It is the first fallback when the header's own
// footer_offset/footer_length do not resolve to a valid footer.
func (c *Container) scanForFooter(fileSize int64) (Footer, uint64, uint64, error) {
	magic := MagicFooter[:]
	lo := int64(HeaderSize)
	if fileSize < lo+int64(len(magic)) {
		return Footer{}, 0, 0, errs.New(errs.KindUnrecoverable, "container.scanForFooter")
	}

	buf := make([]byte, fileSize)
	if _, err := c.file.ReadAt(buf, 0); err != nil {
		return Footer{}, 0, 0, errs.Wrap(errs.KindIO, "container.scanForFooter", c.path, err)
	}

	var (
		best       Footer
		bestOffset uint64
		bestLength uint64
		found      bool
	)

	for end := int64(len(buf)); end-int64(len(magic)) >= lo; end-- {
		magicStart := end - int64(len(magic))
		if !bytes.Equal(buf[magicStart:end], magic) {
			continue
		}
		// A footer's body always starts right after the previous footer
		// or the frame log; parseFooterForward determines its own length
		// from the self-describing entry/segment tables, so the first
		// start offset that both parses cleanly and lands its magic
		// exactly at this occurrence is this candidate's footer.
		for start := lo; start < magicStart; start++ {
			f, consumed, perr := parseFooterForward(buf[start:])
			if perr != nil {
				continue
			}
			if start+int64(consumed) != end {
				continue
			}
			if !found || f.CommitSeq > best.CommitSeq {
				best, bestOffset, bestLength = f, uint64(start), uint64(consumed)
				found = true
			}
			break
		}
	}

	if !found {
		return Footer{}, 0, 0, errs.New(errs.KindUnrecoverable, "container.scanForFooter")
	}
	return best, bestOffset, bestLength, nil
}

// parseFooterForward parses a footer whose body starts at buf[0],
// determining its own length from the entry/segment tables rather than
// trusting a known total length, then validating the trailing CRC and
// magic in place. buf may extend well past the actual footer; consumed
// reports exactly how many bytes belong to it.
func parseFooterForward(buf []byte) (f Footer, consumed int, err error) {
	fail := errs.New(errs.KindInvalidFooter, "container.parseFooterForward")
	off := 0
	need := func(n int) bool { return n >= 0 && off+n <= len(buf) }

	if !need(4) {
		return f, 0, fail
	}
	numEntries := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if numEntries < 0 || numEntries > maxFooterScanEntries {
		return f, 0, fail
	}

	readU64 := func() (uint64, bool) {
		if !need(8) {
			return 0, false
		}
		v := binary.LittleEndian.Uint64(buf[off:])
		off += 8
		return v, true
	}
	readU32 := func() (uint32, bool) {
		if !need(4) {
			return 0, false
		}
		v := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		return v, true
	}
	readStr := func() (string, bool) {
		n, ok := readU32()
		if !ok || n > maxFooterScanStrLen || !need(int(n)) {
			return "", false
		}
		s := string(buf[off : off+int(n)])
		off += int(n)
		return s, true
	}
	readShortStr := func() (string, bool) {
		if !need(2) {
			return "", false
		}
		n := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if !need(n) {
			return "", false
		}
		s := string(buf[off : off+n])
		off += n
		return s, true
	}

	for i := 0; i < numEntries; i++ {
		var e Entry
		var ok bool
		if e.FrameID, ok = readU64(); !ok {
			return f, 0, fail
		}
		if e.Offset, ok = readU64(); !ok {
			return f, 0, fail
		}
		if e.Length, ok = readU64(); !ok {
			return f, 0, fail
		}
		if e.Flags, ok = readU32(); !ok {
			return f, 0, fail
		}
		var ts uint64
		if ts, ok = readU64(); !ok {
			return f, 0, fail
		}
		e.Timestamp = int64(ts)
		if e.URI, ok = readStr(); !ok {
			return f, 0, fail
		}
		if e.Title, ok = readStr(); !ok {
			return f, 0, fail
		}
		if !need(2) {
			return f, 0, fail
		}
		numTags := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if numTags > maxFooterScanEntries {
			return f, 0, fail
		}
		e.Tags = make(map[string]string, numTags)
		for j := 0; j < numTags; j++ {
			k, ok1 := readShortStr()
			v, ok2 := readShortStr()
			if !ok1 || !ok2 {
				return f, 0, fail
			}
			e.Tags[k] = v
		}
		f.Entries = append(f.Entries, e)
	}

	if !need(2) {
		return f, 0, fail
	}
	numSegs := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if numSegs > maxFooterScanEntries {
		return f, 0, fail
	}
	for i := 0; i < numSegs; i++ {
		if !need(1) {
			return f, 0, fail
		}
		kind := IndexSegmentKind(buf[off])
		off++
		version, ok := readU32()
		if !ok {
			return f, 0, fail
		}
		segOffset, ok := readU64()
		if !ok {
			return f, 0, fail
		}
		segLength, ok := readU64()
		if !ok {
			return f, 0, fail
		}
		f.IndexSegments = append(f.IndexSegments, IndexSegment{
			Kind: kind, Version: version, Offset: segOffset, Length: segLength,
		})
	}

	seq, ok := readU64()
	if !ok {
		return f, 0, fail
	}
	f.CommitSeq = seq

	bodyLen := off
	if !need(4 + len(MagicFooter)) {
		return f, 0, fail
	}
	storedCRC := binary.LittleEndian.Uint32(buf[off:])
	if crc32.ChecksumIEEE(buf[:bodyLen]) != storedCRC {
		return f, 0, fail
	}
	off += 4
	if !bytes.Equal(buf[off:off+len(MagicFooter)], MagicFooter[:]) {
		return f, 0, fail
	}
	off += len(MagicFooter)

	return f, off, nil
}

// reconstructFromFrameLog rebuilds a synthetic footer by walking the
// frame log forward from the end of the WAL region, decoding every
// MagicFrame record it can find and skipping past anything it can't
// (§4.9 technique #4). It is the last resort when neither the header's
// own pointer nor a backward magic scan yields any footer at all; the
// resulting footer starts at commit_seq 0 and is not durable until the
// caller commits it.
func (c *Container) reconstructFromFrameLog(h Header, fileSize int64) (Footer, uint64, error) {
	start := int64(h.WalOffset) + int64(h.WalSize)
	if start < int64(HeaderSize) || start > fileSize {
		start = int64(HeaderSize)
	}

	buf := make([]byte, fileSize-start)
	if _, err := c.file.ReadAt(buf, start); err != nil {
		return Footer{}, 0, errs.Wrap(errs.KindIO, "container.reconstructFromFrameLog", c.path, err)
	}

	var entries []Entry
	off := 0
	for off+len(MagicFrame) <= len(buf) {
		if !bytes.Equal(buf[off:off+len(MagicFrame)], MagicFrame[:]) {
			off++
			continue
		}
		rec, consumed, derr := decodeFrameRecord(buf[off:])
		if derr != nil {
			off++
			continue
		}
		e := Entry{FrameID: rec.FrameID, Offset: uint64(start) + uint64(off), Length: uint64(consumed)}
		if meta, merr := DecodeMetadata(rec.MetadataRaw); merr == nil {
			e.Timestamp = meta.Timestamp
			e.URI = meta.URI
			e.Title = meta.Title
			e.Tags = meta.Tags
			if meta.HasVector {
				e.Flags |= EntryFlagHasVector
			}
			if meta.HasACL {
				e.Flags |= EntryFlagHasAcl
			}
		}
		entries = append(entries, e)
		off += consumed
	}

	if len(entries) == 0 {
		return Footer{}, 0, errs.New(errs.KindUnrecoverable, "container.reconstructFromFrameLog")
	}
	return Footer{Entries: entries, CommitSeq: 0}, uint64(fileSize), nil
}
