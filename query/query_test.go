package query

import (
	"testing"
	"time"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/lexindex"
	"github.com/memvid-dev/memvid/timeindex"
)

// buildEngine creates an in-memory container with a handful of frames,
// builds and publishes lex + time index segments, and returns an Engine
// loaded against the resulting footer.
func buildEngine(t *testing.T) (*container.Container, *Engine) {
	t.Helper()
	c, err := container.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	docs := []struct {
		uri, title, text string
		ts               int64
	}{
		{"docs/apple.md", "Apple pie", "apple pie recipe with cinnamon", 100},
		{"docs/banana.md", "Banana bread", "banana bread recipe with walnuts", 200},
		{"docs/cherry.md", "Cherry tart", "cherry tart recipe, no nuts at all", 300},
	}
	for _, d := range docs {
		meta := container.Metadata{URI: d.uri, Title: d.title, SearchText: d.text, Timestamp: d.ts}
		if _, err := c.PutBytes([]byte(d.text), meta); err != nil {
			t.Fatalf("PutBytes: %v", err)
		}
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	lex, err := lexindex.Build(c)
	if err != nil {
		t.Fatalf("lexindex.Build: %v", err)
	}
	lexRaw, err := lex.Serialize()
	if err != nil {
		t.Fatalf("lexindex.Serialize: %v", err)
	}
	lexOff, lexLen, err := c.AppendSegmentBytes(lexRaw)
	if err != nil {
		t.Fatalf("AppendSegmentBytes(lex): %v", err)
	}

	tidx, err := timeindex.Build(c)
	if err != nil {
		t.Fatalf("timeindex.Build: %v", err)
	}
	timeRaw := tidx.Serialize()
	timeOff, timeLen, err := c.AppendSegmentBytes(timeRaw)
	if err != nil {
		t.Fatalf("AppendSegmentBytes(time): %v", err)
	}

	c.EnableLex()
	c.EnableTime()
	err = c.Commit(
		container.IndexSegment{Kind: container.SegmentLex, Version: 1, Offset: lexOff, Length: lexLen},
		container.IndexSegment{Kind: container.SegmentTime, Version: 1, Offset: timeOff, Length: timeLen},
	)
	if err != nil {
		t.Fatalf("Commit(segments): %v", err)
	}

	e, err := NewEngine(c)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return c, e
}

func TestSearchReturnsHitsOrderedByScore(t *testing.T) {
	_, e := buildEngine(t)
	resp, err := e.Search(SearchRequest{Query: "recipe"}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 3 {
		t.Fatalf("expected 3 hits for 'recipe', got %d", resp.TotalHits)
	}
	if len(resp.Hits) != 3 {
		t.Fatalf("expected 3 hits returned, got %d", len(resp.Hits))
	}
}

func TestSearchFiltersByURI(t *testing.T) {
	_, e := buildEngine(t)
	resp, err := e.Search(SearchRequest{Query: "recipe", URI: "docs/apple.md"}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].URI != "docs/apple.md" {
		t.Fatalf("expected only docs/apple.md, got %+v", resp.Hits)
	}
}

func TestSearchTopKProducesNextCursor(t *testing.T) {
	_, e := buildEngine(t)
	resp, err := e.Search(SearchRequest{Query: "recipe", TopK: 1}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Hits) != 1 {
		t.Fatalf("expected 1 hit with TopK=1, got %d", len(resp.Hits))
	}
	if resp.NextCursor == "" {
		t.Fatal("expected a non-empty next cursor when more hits remain")
	}

	resp2, err := e.Search(SearchRequest{Query: "recipe", TopK: 1, Cursor: resp.NextCursor}, time.Now())
	if err != nil {
		t.Fatalf("Search with cursor: %v", err)
	}
	if len(resp2.Hits) != 1 {
		t.Fatalf("expected 1 hit on the next page, got %d", len(resp2.Hits))
	}
	if resp2.Hits[0].FrameID == resp.Hits[0].FrameID {
		t.Error("expected the second page to return a different hit than the first")
	}
}

func TestSearchRejectsCursorFromADifferentCommit(t *testing.T) {
	c, e := buildEngine(t)
	resp, err := e.Search(SearchRequest{Query: "recipe", TopK: 1}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Advance the container's commit seq so the cursor is now stale.
	if _, err := c.PutBytes([]byte("x"), container.Metadata{URI: "docs/extra.md", SearchText: "recipe extra"}); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	e2, err := NewEngine(c)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if _, err := e2.Search(SearchRequest{Query: "recipe", TopK: 1, Cursor: resp.NextCursor}, time.Now()); err == nil {
		t.Fatal("expected a stale cursor from a prior commit generation to be rejected")
	}
}

func TestSearchAsOfFrameExcludesLaterFrames(t *testing.T) {
	_, e := buildEngine(t)
	resp, err := e.Search(SearchRequest{Query: "recipe", AsOfFrame: 2, HasAsOfFrame: true}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 2 {
		t.Fatalf("expected 2 hits pinned to frame id <= 2, got %d (%+v)", resp.TotalHits, resp.Hits)
	}
	for _, h := range resp.Hits {
		if h.FrameID > 2 {
			t.Errorf("expected no hit with frame id > 2, got %+v", h)
		}
	}
}

func TestSearchAsOfTsExcludesLaterFrames(t *testing.T) {
	_, e := buildEngine(t)
	resp, err := e.Search(SearchRequest{Query: "recipe", AsOfTs: 200, HasAsOfTs: true}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 2 {
		t.Fatalf("expected 2 hits pinned to timestamp <= 200, got %d (%+v)", resp.TotalHits, resp.Hits)
	}
	for _, h := range resp.Hits {
		if h.URI == "docs/cherry.md" {
			t.Error("expected docs/cherry.md (timestamp 300) to be excluded by AsOfTs=200")
		}
	}
}

func TestSearchWithoutAsOfFieldsSetIgnoresZeroValues(t *testing.T) {
	_, e := buildEngine(t)
	// AsOfFrame/AsOfTs default to zero but Has* is false, so a plain
	// request must not be pinned to frame/timestamp zero.
	resp, err := e.Search(SearchRequest{Query: "recipe"}, time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 3 {
		t.Fatalf("expected all 3 hits when no AsOf field is set, got %d", resp.TotalHits)
	}
}

func TestSearchWithoutLexIndexFails(t *testing.T) {
	c, err := container.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	e, err := NewEngine(c)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Search(SearchRequest{Query: "anything"}, time.Now()); err == nil {
		t.Fatal("expected Search to fail when no lex index segment is loaded")
	}
}

func TestTimelineOrdersByTimestamp(t *testing.T) {
	_, e := buildEngine(t)
	rows, err := e.Timeline(TimelineQuery{})
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 timeline rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Timestamp > rows[i].Timestamp {
			t.Fatalf("expected ascending timestamp order, got %+v", rows)
		}
	}
}

func TestTimelineDescendingAndLimit(t *testing.T) {
	_, e := buildEngine(t)
	rows, err := e.Timeline(TimelineQuery{Descending: true, Limit: 1})
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].URI != "docs/cherry.md" {
		t.Errorf("expected the most recent entry first, got %q", rows[0].URI)
	}
}

func TestTimelineWithoutTimeIndexFails(t *testing.T) {
	c, err := container.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	e, err := NewEngine(c)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Timeline(TimelineQuery{}); err == nil {
		t.Fatal("expected Timeline to fail when no time index segment is loaded")
	}
}

func TestStatsReportsFrameCountAndFlags(t *testing.T) {
	_, e := buildEngine(t)
	stats := e.Stats()
	if stats.FrameCount != 3 {
		t.Errorf("expected 3 frames, got %d", stats.FrameCount)
	}
	if !stats.HasLexIndex {
		t.Error("expected HasLexIndex to be true")
	}
	if !stats.HasTimeIndex {
		t.Error("expected HasTimeIndex to be true")
	}
	if stats.HasVecIndex {
		t.Error("expected HasVecIndex to be false when no vector segment was published")
	}
	if stats.CommitSeq != 2 {
		t.Errorf("expected commit seq 2 (frames commit, then segments commit), got %d", stats.CommitSeq)
	}
}
