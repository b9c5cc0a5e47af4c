package container

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/memvid-dev/memvid/errs"
)

// Header is the fixed-size file prefix (§4.1).
type Header struct {
	VersionMajor uint16
	VersionMinor uint16
	FooterOffset uint64
	FooterLength uint64
	WalOffset    uint64
	WalSize      uint64
	Flags        uint32
}

// encodeHeader serializes h into a HeaderSize-byte array, computing the
// trailing CRC32 over the preceding bytes.
func encodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	copy(buf[0:8], MagicHeader[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.VersionMajor)
	binary.LittleEndian.PutUint16(buf[10:12], h.VersionMinor)
	binary.LittleEndian.PutUint64(buf[12:20], h.FooterOffset)
	binary.LittleEndian.PutUint64(buf[20:28], h.FooterLength)
	binary.LittleEndian.PutUint64(buf[28:36], h.WalOffset)
	binary.LittleEndian.PutUint64(buf[36:44], h.WalSize)
	binary.LittleEndian.PutUint32(buf[44:48], h.Flags)
	crc := crc32.ChecksumIEEE(buf[:48])
	binary.LittleEndian.PutUint32(buf[48:52], crc)
	return buf
}

// decodeHeader parses a HeaderSize-byte array into a Header, validating
// the magic, supported version range and header_crc (§4.1).
func decodeHeader(buf [HeaderSize]byte) (Header, error) {
	var h Header
	if string(buf[0:8]) != string(MagicHeader[:]) {
		return h, errs.New(errs.KindInvalidHeader, "container.decodeHeader")
	}
	crc := crc32.ChecksumIEEE(buf[:48])
	stored := binary.LittleEndian.Uint32(buf[48:52])
	if crc != stored {
		return h, errs.New(errs.KindInvalidHeader, "container.decodeHeader")
	}
	h.VersionMajor = binary.LittleEndian.Uint16(buf[8:10])
	h.VersionMinor = binary.LittleEndian.Uint16(buf[10:12])
	if h.VersionMajor > VersionMajor {
		return h, errs.New(errs.KindUnsupportedVersion, "container.decodeHeader")
	}
	h.FooterOffset = binary.LittleEndian.Uint64(buf[12:20])
	h.FooterLength = binary.LittleEndian.Uint64(buf[20:28])
	h.WalOffset = binary.LittleEndian.Uint64(buf[28:36])
	h.WalSize = binary.LittleEndian.Uint64(buf[36:44])
	h.Flags = binary.LittleEndian.Uint32(buf[44:48])
	return h, nil
}
