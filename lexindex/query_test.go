package lexindex

import (
	"strings"
	"testing"

	"github.com/memvid-dev/memvid/container"
)

func buildRecipeIndex(t *testing.T) *Index {
	t.Helper()
	c := buildTestContainer(t,
		[]container.Metadata{
			{URI: "docs/apple.md", Title: "Apple pie", SearchText: "apple pie recipe with cinnamon"},
			{URI: "docs/banana.md", Title: "Banana bread", SearchText: "banana bread recipe with walnuts"},
			{URI: "docs/cherry.md", Title: "Cherry tart", SearchText: "cherry tart, no nuts at all"},
			{URI: "notes/misc.md", Title: "Misc", SearchText: "a grocery list: apples, bananas, cherries"},
			{URI: "notes/pie-filling.md", Title: "Pie filling", SearchText: "pie filling made with apple chunks"},
		},
		[]string{"a-body", "b-body", "c-body", "d-body", "e-body"},
	)
	idx, err := Build(c)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func hitURIs(hits []Hit) []string {
	var uris []string
	for _, h := range hits {
		uris = append(uris, h.URI)
	}
	return uris
}

func contains(uris []string, uri string) bool {
	for _, u := range uris {
		if u == uri {
			return true
		}
	}
	return false
}

func TestParseRejectsEmptyQuery(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected an error for an empty query")
	}
	if _, err := Parse("   "); err == nil {
		t.Fatal("expected an error for a whitespace-only query")
	}
}

func TestParseRejectsUnterminatedQuote(t *testing.T) {
	if _, err := Parse(`"unterminated`); err == nil {
		t.Fatal("expected an error for an unterminated quote")
	}
}

// TestImplicitAndNotOr is the named regression: a bare multi-term query
// must require every term (AND), not match on any term (OR).
func TestImplicitAndNotOr(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse("apple recipe")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	uris := hitURIs(hits)
	if len(hits) != 1 || !contains(uris, "docs/apple.md") {
		t.Fatalf("expected only docs/apple.md (contains both 'apple' and 'recipe'), got %v", uris)
	}
}

func TestSearchExplicitOrIsUnion(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse("apple OR cherry")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	uris := hitURIs(hits)
	if len(hits) != 3 || !contains(uris, "docs/apple.md") || !contains(uris, "notes/pie-filling.md") || !contains(uris, "docs/cherry.md") {
		t.Fatalf("expected exactly docs/apple.md, notes/pie-filling.md and docs/cherry.md, got %v", uris)
	}
}

func TestSearchExcludedTermNarrowsResults(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse("recipe -banana")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	uris := hitURIs(hits)
	if len(hits) != 1 || !contains(uris, "docs/apple.md") {
		t.Fatalf("expected only docs/apple.md after excluding banana, got %v", uris)
	}
}

func TestSearchPlusPrefixIsRequired(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse("+cherry nuts")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	uris := hitURIs(hits)
	if len(hits) != 1 || !contains(uris, "docs/cherry.md") {
		t.Fatalf("expected only docs/cherry.md, got %v", uris)
	}
}

func TestSearchScopePrefixFilters(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse("apple OR banana OR cherry")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "docs/")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if !strings.HasPrefix(h.URI, "docs/") {
			t.Errorf("expected scoped search to exclude %q", h.URI)
		}
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 docs/ hits, got %d (%v)", len(hits), hitURIs(hits))
	}
}

func TestSearchQuotedPhraseRequiresOrderedAdjacency(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse(`"apple pie"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	uris := hitURIs(hits)
	if len(hits) != 1 || !contains(uris, "docs/apple.md") {
		t.Fatalf("expected only docs/apple.md for phrase 'apple pie', got %v", uris)
	}

	// notes/pie-filling.md contains both "pie" and "apple" (co-occurrence)
	// but not adjacent and in reverse order ("pie filling made with apple
	// chunks") — a true phrase match must reject it.
	if contains(uris, "notes/pie-filling.md") {
		t.Fatalf("expected notes/pie-filling.md to be excluded: 'apple' and 'pie' co-occur but are not an ordered adjacent run, got %v", uris)
	}
}

func TestSearchQuotedPhraseRejectsReversedOrder(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse(`"pie apple"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits for phrase 'pie apple' (reversed order never occurs), got %v", hitURIs(hits))
	}
}

func TestSearchNoClausesIsQuerySyntaxError(t *testing.T) {
	idx := buildRecipeIndex(t)
	q := &Query{}
	if _, err := idx.Search(q, ""); err == nil {
		t.Fatal("expected an error when a query has no clauses at all")
	}
}

func TestSearchOrdersByScoreDescending(t *testing.T) {
	idx := buildRecipeIndex(t)

	q, err := Parse("recipe")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := idx.Search(q, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Score < hits[i].Score {
			t.Fatalf("hits not sorted by descending score: %+v", hits)
		}
	}
}

func TestSnippetReturnsShortTextUnchanged(t *testing.T) {
	text := "short text"
	if got := Snippet(text, []string{"short"}, 100); got != text {
		t.Errorf("expected unchanged short text, got %q", got)
	}
}

func TestSnippetCentersOnTermMatch(t *testing.T) {
	text := strings.Repeat("x", 200) + "needle" + strings.Repeat("y", 200)
	got := Snippet(text, []string{"needle"}, 40)
	if !strings.Contains(got, "needle") {
		t.Errorf("expected snippet to contain the matched term, got %q", got)
	}
	if len(got) > 40 {
		t.Errorf("expected snippet length <= 40, got %d", len(got))
	}
}

func TestSnippetFallsBackToPrefixWhenNoTermFound(t *testing.T) {
	text := strings.Repeat("a", 100)
	got := Snippet(text, []string{"absent"}, 20)
	if got != text[:20] {
		t.Errorf("expected prefix fallback, got %q", got)
	}
}
