package container

import (
	"reflect"
	"testing"
)

func TestFooterRoundTrip(t *testing.T) {
	f := Footer{
		Entries: []Entry{
			{FrameID: 1, Offset: 64, Length: 100, Flags: 0, Timestamp: 1000, URI: "a.txt", Title: "A", Tags: map[string]string{"k": "v"}},
			{FrameID: 2, Offset: 200, Length: 50, Flags: EntryFlagDeleted, Timestamp: 2000, URI: "b.txt", Title: "B", Tags: map[string]string{}},
		},
		IndexSegments: []IndexSegment{
			{Kind: SegmentLex, Version: 1, Offset: 500, Length: 300},
		},
		CommitSeq: 7,
	}
	buf := encodeFooter(f)
	got, err := decodeFooter(buf)
	if err != nil {
		t.Fatalf("decodeFooter: %v", err)
	}
	if got.CommitSeq != f.CommitSeq {
		t.Errorf("commit seq: got %d want %d", got.CommitSeq, f.CommitSeq)
	}
	if !reflect.DeepEqual(got.Entries, f.Entries) {
		t.Errorf("entries mismatch:\ngot  %+v\nwant %+v", got.Entries, f.Entries)
	}
	if !reflect.DeepEqual(got.IndexSegments, f.IndexSegments) {
		t.Errorf("segments mismatch:\ngot  %+v\nwant %+v", got.IndexSegments, f.IndexSegments)
	}
	if !got.Entries[1].Deleted() {
		t.Errorf("expected entry 1 to be tombstoned")
	}
}

func TestFooterEmptyRoundTrip(t *testing.T) {
	f := Footer{}
	buf := encodeFooter(f)
	got, err := decodeFooter(buf)
	if err != nil {
		t.Fatalf("decodeFooter: %v", err)
	}
	if len(got.Entries) != 0 || len(got.IndexSegments) != 0 || got.CommitSeq != 0 {
		t.Errorf("expected empty footer, got %+v", got)
	}
}

func TestFooterRejectsBadCRC(t *testing.T) {
	buf := encodeFooter(Footer{CommitSeq: 3})
	buf[0] ^= 0xFF
	if _, err := decodeFooter(buf); err == nil {
		t.Fatal("expected CRC failure")
	}
}

func TestFooterRejectsMissingMagic(t *testing.T) {
	buf := encodeFooter(Footer{CommitSeq: 3})
	buf = buf[:len(buf)-1]
	if _, err := decodeFooter(buf); err == nil {
		t.Fatal("expected missing-magic failure")
	}
}

func TestFindIndexSegmentReturnsMostRecentOfKind(t *testing.T) {
	f := Footer{IndexSegments: []IndexSegment{
		{Kind: SegmentLex, Version: 1, Offset: 10, Length: 10},
		{Kind: SegmentTime, Version: 1, Offset: 20, Length: 10},
		{Kind: SegmentLex, Version: 2, Offset: 30, Length: 10},
	}}
	seg, ok := f.FindLexSegment()
	if !ok {
		t.Fatal("expected a lex segment")
	}
	if seg.Offset != 30 {
		t.Errorf("expected most recent lex segment (offset 30), got %+v", seg)
	}
	if _, ok := f.FindVecSegment(); ok {
		t.Error("did not expect a vec segment")
	}
}
