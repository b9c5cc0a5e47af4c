package container

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Metadata is the structured information carried alongside a frame's
// opaque payload (§3 "Frame").
type Metadata struct {
	URI        string
	Title      string
	Timestamp  int64
	Tags       map[string]string
	SearchText string
	Vector     []float32
	ACL        []byte
	HasVector  bool
	HasACL     bool
}

// presence bits for the optional fields, written as a single byte ahead of
// the fixed fields — mirrors the teacher's length-prefixed field encoding
// in storage/document.go, adapted to memvid's fixed metadata schema
// instead of a variable document field list.
const (
	presURI = 1 << iota
	presTitle
	presSearchText
	presVector
	presACL
)

// Encode serializes metadata to bytes. Format:
//
//	[presence:byte][timestamp:int64]
//	[uri][title][search_text]          each: [len:uint32][bytes]
//	[num_tags:uint16] then [klen:uint16][k][vlen:uint16][v] per tag
//	[vector?]: [count:uint32][float32...]
//	[acl?]: [len:uint32][bytes]
func (m *Metadata) Encode() []byte {
	var pres byte
	if m.URI != "" {
		pres |= presURI
	}
	if m.Title != "" {
		pres |= presTitle
	}
	if m.SearchText != "" {
		pres |= presSearchText
	}
	if m.HasVector {
		pres |= presVector
	}
	if m.HasACL {
		pres |= presACL
	}

	buf := make([]byte, 0, 64+len(m.SearchText))
	buf = append(buf, pres)
	tmp8 := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp8, uint64(m.Timestamp))
	buf = append(buf, tmp8...)

	buf = appendString(buf, m.URI)
	buf = appendString(buf, m.Title)
	buf = appendString(buf, m.SearchText)

	tmp2 := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp2, uint16(len(m.Tags)))
	buf = append(buf, tmp2...)
	for k, v := range m.Tags {
		buf = appendShortString(buf, k)
		buf = appendShortString(buf, v)
	}

	if m.HasVector {
		tmp4 := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp4, uint32(len(m.Vector)))
		buf = append(buf, tmp4...)
		for _, f := range m.Vector {
			binary.LittleEndian.PutUint32(tmp4, math.Float32bits(f))
			buf = append(buf, tmp4...)
		}
	}

	if m.HasACL {
		buf = appendBytes(buf, m.ACL)
	}

	return buf
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendBytes(buf []byte, b []byte) []byte {
	tmp4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp4, uint32(len(b)))
	buf = append(buf, tmp4...)
	return append(buf, b...)
}

func appendShortString(buf []byte, s string) []byte {
	tmp2 := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp2, uint16(len(s)))
	buf = append(buf, tmp2...)
	return append(buf, s...)
}

// DecodeMetadata parses the byte format produced by Metadata.Encode.
func DecodeMetadata(data []byte) (*Metadata, error) {
	m := &Metadata{Tags: make(map[string]string)}
	if len(data) < 9 {
		return nil, fmt.Errorf("container: metadata too short")
	}
	pres := data[0]
	off := 1
	m.Timestamp = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	var err error
	m.URI, off, err = readString(data, off)
	if err != nil {
		return nil, err
	}
	m.Title, off, err = readString(data, off)
	if err != nil {
		return nil, err
	}
	m.SearchText, off, err = readString(data, off)
	if err != nil {
		return nil, err
	}

	if off+2 > len(data) {
		return nil, fmt.Errorf("container: metadata truncated (tags count)")
	}
	numTags := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	for i := 0; i < numTags; i++ {
		var k, v string
		k, off, err = readShortString(data, off)
		if err != nil {
			return nil, err
		}
		v, off, err = readShortString(data, off)
		if err != nil {
			return nil, err
		}
		m.Tags[k] = v
	}

	if pres&presVector != 0 {
		if off+4 > len(data) {
			return nil, fmt.Errorf("container: metadata truncated (vector count)")
		}
		count := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		m.Vector = make([]float32, count)
		for i := 0; i < count; i++ {
			if off+4 > len(data) {
				return nil, fmt.Errorf("container: metadata truncated (vector element)")
			}
			m.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		m.HasVector = true
	}

	if pres&presACL != 0 {
		m.ACL, off, err = readBytes(data, off)
		if err != nil {
			return nil, err
		}
		m.HasACL = true
	}

	return m, nil
}

func readBytes(data []byte, off int) ([]byte, int, error) {
	if off+4 > len(data) {
		return nil, off, fmt.Errorf("container: metadata truncated (length)")
	}
	n := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if off+n > len(data) {
		return nil, off, fmt.Errorf("container: metadata truncated (bytes)")
	}
	out := make([]byte, n)
	copy(out, data[off:off+n])
	return out, off + n, nil
}

func readString(data []byte, off int) (string, int, error) {
	b, off, err := readBytes(data, off)
	if err != nil {
		return "", off, err
	}
	return string(b), off, nil
}

func readShortString(data []byte, off int) (string, int, error) {
	if off+2 > len(data) {
		return "", off, fmt.Errorf("container: metadata truncated (short length)")
	}
	n := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if off+n > len(data) {
		return "", off, fmt.Errorf("container: metadata truncated (short bytes)")
	}
	s := string(data[off : off+n])
	return s, off + n, nil
}
