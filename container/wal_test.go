package container

import "testing"

func TestWalEntryRoundTrip(t *testing.T) {
	e := WalEntry{
		PrevFooterOffset: 4096,
		NewFrames: []FrameDelta{
			{FrameID: 1, Offset: 64, Length: 120, MetaDigest: 0xdeadbeef},
			{FrameID: 2, Offset: 184, Length: 80, MetaDigest: 0xfeedface},
		},
		IndexDeltas: []IndexDelta{
			{Kind: SegmentLex, Payload: []byte{1, 2, 3, 4}},
		},
	}
	buf := encodeWalEntry(e)
	got, ok, err := decodeWalEntry(buf)
	if err != nil {
		t.Fatalf("decodeWalEntry: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for a valid entry")
	}
	if got.PrevFooterOffset != e.PrevFooterOffset {
		t.Errorf("PrevFooterOffset: got %d want %d", got.PrevFooterOffset, e.PrevFooterOffset)
	}
	if len(got.NewFrames) != len(e.NewFrames) || got.NewFrames[1].FrameID != 2 {
		t.Errorf("NewFrames mismatch: %+v", got.NewFrames)
	}
	if len(got.IndexDeltas) != 1 || got.IndexDeltas[0].Kind != SegmentLex {
		t.Errorf("IndexDeltas mismatch: %+v", got.IndexDeltas)
	}
}

func TestWalEntryEmptyRegionIsNotAnError(t *testing.T) {
	buf := make([]byte, 256)
	_, ok, err := decodeWalEntry(buf)
	if err != nil {
		t.Fatalf("expected no error for an all-zero region, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an all-zero region")
	}
}

func TestWalEntryCorruptCRC(t *testing.T) {
	e := WalEntry{PrevFooterOffset: 1, NewFrames: []FrameDelta{{FrameID: 1, Offset: 1, Length: 1}}}
	buf := encodeWalEntry(e)
	buf[len(buf)-1] ^= 0xFF
	if _, _, err := decodeWalEntry(buf); err == nil {
		t.Fatal("expected corrupt WAL error")
	}
}

func TestWalRegionWriteReadClear(t *testing.T) {
	f := newMemFile()
	region := walRegion{file: f, offset: 0, size: 4096}

	entry := WalEntry{PrevFooterOffset: 10, NewFrames: []FrameDelta{{FrameID: 1, Offset: 2, Length: 3}}}
	if err := region.write(entry); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, ok, err := region.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatal("expected a pending entry after write")
	}
	if got.PrevFooterOffset != entry.PrevFooterOffset {
		t.Errorf("PrevFooterOffset: got %d want %d", got.PrevFooterOffset, entry.PrevFooterOffset)
	}

	if err := region.clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, err := region.read(); err != nil || ok {
		t.Errorf("expected empty region after clear, got ok=%v err=%v", ok, err)
	}
}

func TestWalRegionWriteRejectsOversizedEntry(t *testing.T) {
	f := newMemFile()
	region := walRegion{file: f, offset: 0, size: 16}
	entry := WalEntry{NewFrames: []FrameDelta{{FrameID: 1, Offset: 1, Length: 1}}}
	if err := region.write(entry); err == nil {
		t.Fatal("expected write to reject an entry larger than the region")
	}
}
