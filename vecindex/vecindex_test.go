package vecindex

import (
	"testing"

	"github.com/memvid-dev/memvid/container"
)

func buildVecContainer(t *testing.T) *container.Container {
	t.Helper()
	c, err := container.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	vectors := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.9, 0.1, 0},
	}
	for _, uri := range []string{"a", "b", "c"} {
		meta := container.Metadata{URI: uri, Vector: vectors[uri]}
		if _, err := c.PutBytes([]byte(uri), meta); err != nil {
			t.Fatalf("PutBytes: %v", err)
		}
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return c
}

func TestBuildIndexesOnlyVectorFrames(t *testing.T) {
	c, err := container.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	if _, err := c.PutBytes([]byte("no-vector"), container.Metadata{URI: "plain"}); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if _, err := c.PutBytes([]byte("with-vector"), container.Metadata{URI: "withvec", Vector: []float32{1, 2, 3}}); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	idx, err := Build(c)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(idx.FrameIDs()) != 1 {
		t.Fatalf("expected only the vector-bearing frame to be indexed, got %d", len(idx.FrameIDs()))
	}
}

func TestSearchReturnsClosestByCosineSimilarity(t *testing.T) {
	c := buildVecContainer(t)
	idx, err := Build(c)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	matches, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	// "a" is an exact match (similarity 1), "c" is close, "b" is orthogonal.
	entries := c.Entries()
	byURI := make(map[uint64]string)
	for _, e := range entries {
		byURI[e.FrameID] = e.URI
	}
	if byURI[matches[0].FrameID] != "a" {
		t.Errorf("expected closest match to be 'a', got %q", byURI[matches[0].FrameID])
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Errorf("expected matches sorted by descending similarity, got %+v", matches)
	}
}

func TestSearchRejectsMismatchedDimension(t *testing.T) {
	c := buildVecContainer(t)
	idx, err := Build(c)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Fatal("expected an error for a query vector with the wrong dimension")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	c := buildVecContainer(t)
	idx, err := Build(c)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	raw := idx.Serialize()
	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(got.FrameIDs()) != len(idx.FrameIDs()) {
		t.Fatalf("frame id count mismatch: got %d want %d", len(got.FrameIDs()), len(idx.FrameIDs()))
	}
	matches, err := got.Search([]float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search on deserialized index: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestDeserializeRejectsTruncatedHeader(t *testing.T) {
	if _, err := Deserialize([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a buffer too short to hold a header")
	}
}
