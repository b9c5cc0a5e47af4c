package container

import (
	"bytes"
	"testing"
)

func TestFrameRecordRoundTrip(t *testing.T) {
	meta := Metadata{URI: "doc.txt", Title: "Doc", Timestamp: 42, SearchText: "hello world"}
	rec := FrameRecord{FrameID: 9, Payload: []byte("hello world, this is the payload"), MetadataRaw: meta.Encode()}
	buf := encodeFrameRecord(rec)

	got, n, err := decodeFrameRecord(buf)
	if err != nil {
		t.Fatalf("decodeFrameRecord: %v", err)
	}
	if n != len(buf) {
		t.Errorf("consumed %d bytes, want %d", n, len(buf))
	}
	if got.FrameID != rec.FrameID {
		t.Errorf("frame id: got %d want %d", got.FrameID, rec.FrameID)
	}
	payload, err := got.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload: %v", err)
	}
	if !bytes.Equal(payload, rec.Payload) {
		t.Errorf("payload mismatch: got %q want %q", payload, rec.Payload)
	}
}

func TestFrameRecordCompressesRepetitivePayload(t *testing.T) {
	payload := bytes.Repeat([]byte("aaaaaaaaaa"), 200)
	rec := FrameRecord{FrameID: 1, Payload: payload}
	buf := encodeFrameRecord(rec)
	if len(buf) >= len(payload) {
		t.Errorf("expected compression to shrink record below payload size %d, got %d", len(payload), len(buf))
	}
	got, _, err := decodeFrameRecord(buf)
	if err != nil {
		t.Fatalf("decodeFrameRecord: %v", err)
	}
	if !got.Compressed {
		t.Error("expected Compressed flag to be set")
	}
	decoded, err := got.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Error("decompressed payload does not match original")
	}
}

func TestFrameRecordRejectsCorruptCRC(t *testing.T) {
	rec := FrameRecord{FrameID: 1, Payload: []byte("short")}
	buf := encodeFrameRecord(rec)
	buf[len(buf)-1] ^= 0xFF
	if _, _, err := decodeFrameRecord(buf); err == nil {
		t.Fatal("expected CRC failure")
	}
}

func TestFrameRecordRejectsTruncatedBuffer(t *testing.T) {
	rec := FrameRecord{FrameID: 1, Payload: []byte("some payload bytes")}
	buf := encodeFrameRecord(rec)
	if _, _, err := decodeFrameRecord(buf[:len(buf)-5]); err == nil {
		t.Fatal("expected truncation failure")
	}
}

func TestDecodeFrameRecordForVerifyMatchesInternal(t *testing.T) {
	rec := FrameRecord{FrameID: 5, Payload: []byte("verify me")}
	buf := encodeFrameRecord(rec)
	got, _, err := DecodeFrameRecordForVerify(buf)
	if err != nil {
		t.Fatalf("DecodeFrameRecordForVerify: %v", err)
	}
	if got.FrameID != rec.FrameID {
		t.Errorf("frame id: got %d want %d", got.FrameID, rec.FrameID)
	}
}
