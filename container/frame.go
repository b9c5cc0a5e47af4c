package container

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/klauspost/compress/snappy"
	"github.com/memvid-dev/memvid/errs"
)

// frameRecordHeaderSize is the size of the fixed-width header preceding
// the variable-length payload/metadata bytes of a frame record (§4.2):
// magic(4) + frame_id(8) + flags(4) + payload_len(4) + metadata_len(4).
const frameRecordHeaderSize = 4 + 8 + 4 + 4 + 4

// frameRecordCRCSize is the trailing CRC32 of the record.
const frameRecordCRCSize = 4

// FrameRecord is one entry in the append-only frame log (§4.2).
type FrameRecord struct {
	FrameID     uint64
	Payload     []byte
	MetadataRaw []byte // encoded Metadata bytes
	Compressed  bool
}

// compressPayload compresses b with snappy if that reduces its size,
// mirroring the teacher's compressRecord heuristic in storage/pager.go.
func compressPayload(b []byte) ([]byte, bool) {
	c := snappy.Encode(nil, b)
	if len(c) < len(b) {
		return c, true
	}
	return b, false
}

// decompressPayload reverses compressPayload.
func decompressPayload(b []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return b, nil
	}
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFrame, "container.decompressPayload", "", err)
	}
	return out, nil
}

// encodeFrameRecord serializes a frame record to the on-disk byte layout:
//
//	[magic:4][frame_id:8][flags:4][payload_len:4][metadata_len:4]
//	[payload_bytes][metadata_bytes][record_crc:4]
func encodeFrameRecord(rec FrameRecord) []byte {
	storePayload, compressed := compressPayload(rec.Payload)
	var flags uint32
	if compressed {
		flags |= frameFlagCompressed
	}

	total := frameRecordHeaderSize + len(storePayload) + len(rec.MetadataRaw) + frameRecordCRCSize
	buf := make([]byte, total)

	off := 0
	copy(buf[off:], MagicFrame[:])
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], rec.FrameID)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], flags)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(storePayload)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(rec.MetadataRaw)))
	off += 4
	copy(buf[off:], storePayload)
	off += len(storePayload)
	copy(buf[off:], rec.MetadataRaw)
	off += len(rec.MetadataRaw)

	crc := crc32.ChecksumIEEE(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], crc)

	return buf
}

// decodeFrameRecord parses a frame record starting at the beginning of
// buf. It returns the record, the number of bytes consumed, and an error
// if the record is malformed or its CRC does not verify — corruption here
// never prevents opening the file (§4.2), it surfaces as a per-frame read
// error to the caller.
func decodeFrameRecord(buf []byte) (FrameRecord, int, error) {
	var rec FrameRecord
	if len(buf) < frameRecordHeaderSize+frameRecordCRCSize {
		return rec, 0, errs.New(errs.KindInvalidFrame, "container.decodeFrameRecord")
	}
	if string(buf[0:4]) != string(MagicFrame[:]) {
		return rec, 0, errs.New(errs.KindInvalidFrame, "container.decodeFrameRecord")
	}
	frameID := binary.LittleEndian.Uint64(buf[4:12])
	flags := binary.LittleEndian.Uint32(buf[12:16])
	payloadLen := int(binary.LittleEndian.Uint32(buf[16:20]))
	metaLen := int(binary.LittleEndian.Uint32(buf[20:24]))

	total := frameRecordHeaderSize + payloadLen + metaLen + frameRecordCRCSize
	if total > len(buf) {
		return rec, 0, errs.New(errs.KindInvalidFrame, "container.decodeFrameRecord")
	}

	body := buf[:total-frameRecordCRCSize]
	crc := crc32.ChecksumIEEE(body)
	stored := binary.LittleEndian.Uint32(buf[total-frameRecordCRCSize : total])
	if crc != stored {
		return rec, 0, errs.New(errs.KindInvalidFrame, "container.decodeFrameRecord")
	}

	off := frameRecordHeaderSize
	payload := make([]byte, payloadLen)
	copy(payload, buf[off:off+payloadLen])
	off += payloadLen
	metaRaw := make([]byte, metaLen)
	copy(metaRaw, buf[off:off+metaLen])

	rec.FrameID = frameID
	rec.Payload = payload
	rec.MetadataRaw = metaRaw
	rec.Compressed = flags&frameFlagCompressed != 0

	return rec, total, nil
}

// DecodedPayload returns the decompressed payload bytes of rec.
func (rec FrameRecord) DecodedPayload() ([]byte, error) {
	return decompressPayload(rec.Payload, rec.Compressed)
}

// DecodeFrameRecordForVerify exposes decodeFrameRecord to the verify
// package, which re-validates every frame's CRC independently rather than
// trusting the container's own read path (§4.10).
func DecodeFrameRecordForVerify(raw []byte) (FrameRecord, int, error) {
	return decodeFrameRecord(raw)
}
