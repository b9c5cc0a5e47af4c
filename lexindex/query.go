package lexindex

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/memvid-dev/memvid/errs"
)

// clauseKind distinguishes how a parsed clause combines with the rest of
// the query (§4.6 "Query parsing").
type clauseKind int

const (
	clauseRequired clauseKind = iota // bare term or AND operand, or +term
	clauseOptional                   // OR operand
	clauseExcluded                   // NOT operand, or -term
)

type clause struct {
	kind   clauseKind
	terms  []string // >1 for a quoted phrase
	phrase bool
}

// Query is a parsed boolean expression ready for evaluation.
type Query struct {
	clauses []clause
}

// Parse turns a raw query string into a Query per the implicit-AND
// contract: bare terms (and explicit AND operands) are required, OR
// operands are optional, NOT/-prefixed terms are excluded, +prefixed terms
// are required, and quoted substrings become ordered phrase clauses.
func Parse(raw string) (*Query, error) {
	toks, err := splitQueryTokens(raw)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errs.New(errs.KindQuerySyntax, "lexindex.Parse")
	}

	q := &Query{}
	pendingOptional := false
	pendingExcluded := false
	lastBare := false // last appended clause is a bare required term
	i := 0
	for i < len(toks) {
		tok := toks[i]
		switch tok {
		case "AND":
			i++
			continue
		case "OR":
			// The left operand of OR is optional too, not required.
			if n := len(q.clauses); n > 0 && lastBare {
				q.clauses[n-1].kind = clauseOptional
			}
			pendingOptional = true
			i++
			continue
		case "NOT":
			pendingExcluded = true
			i++
			continue
		}

		var c clause
		bare := false
		if strings.HasPrefix(tok, `"`) {
			phraseTerms := Tokenize(strings.Trim(tok, `"`))
			c = clause{kind: clauseRequired, terms: phraseTerms, phrase: true}
		} else if strings.HasPrefix(tok, "+") {
			c = clause{kind: clauseRequired, terms: Tokenize(tok[1:])}
		} else if strings.HasPrefix(tok, "-") {
			c = clause{kind: clauseExcluded, terms: Tokenize(tok[1:])}
		} else {
			kind := clauseRequired
			if pendingExcluded {
				kind = clauseExcluded
			} else if pendingOptional {
				kind = clauseOptional
			}
			c = clause{kind: kind, terms: Tokenize(tok)}
			bare = true
		}
		pendingOptional = false
		pendingExcluded = false
		lastBare = false
		if len(c.terms) > 0 {
			q.clauses = append(q.clauses, c)
			lastBare = bare && c.kind == clauseRequired
		}
		i++
	}
	if len(q.clauses) == 0 {
		return nil, errs.New(errs.KindQuerySyntax, "lexindex.Parse")
	}
	return q, nil
}

// splitQueryTokens splits on whitespace while keeping quoted phrases as one
// token (still wrapped in quotes, unquoted downstream).
func splitQueryTokens(raw string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	inQuote := false
	for _, r := range raw {
		switch {
		case r == '"':
			cur.WriteRune(r)
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, errs.New(errs.KindQuerySyntax, "lexindex.splitQueryTokens")
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks, nil
}

// Hit is a single scored match.
type Hit struct {
	FrameID uint64
	URI     string
	Title   string
	Score   float64
}

// Search evaluates q against idx, restricting to documents whose URI has
// the given scope prefix (empty = no restriction), and returns every
// matching hit sorted by score descending, ties broken by frame id
// descending (§4.6 "Scoring"). The caller (query package) applies top-K,
// cursor, and snippet logic.
func (idx *Index) Search(q *Query, scope string) ([]Hit, error) {
	var required, excluded []*roaring.Bitmap
	var optional []*roaring.Bitmap
	requiredTerms := make(map[string]bool)

	for _, c := range q.clauses {
		bm := idx.clauseBitmap(c)
		switch c.kind {
		case clauseRequired:
			required = append(required, bm)
			for _, t := range c.terms {
				requiredTerms[t] = true
			}
		case clauseOptional:
			optional = append(optional, bm)
		case clauseExcluded:
			excluded = append(excluded, bm)
		}
	}

	var result *roaring.Bitmap
	switch {
	case len(required) > 0:
		result = required[0].Clone()
		for _, bm := range required[1:] {
			result.And(bm)
		}
	case len(optional) > 0:
		result = roaring.New()
		for _, bm := range optional {
			result.Or(bm)
		}
	default:
		return nil, errs.New(errs.KindQuerySyntax, "lexindex.Search")
	}

	for _, bm := range excluded {
		result.AndNot(bm)
	}

	hits := make([]Hit, 0, result.GetCardinality())
	it := result.Iterator()
	for it.HasNext() {
		docID := it.Next()
		if scope != "" && !strings.HasPrefix(idx.docURI[docID], scope) {
			continue
		}
		var score float64
		for term := range requiredTerms {
			score += idx.bm25Score(term, docID)
		}
		if len(requiredTerms) == 0 {
			for _, c := range q.clauses {
				for _, t := range c.terms {
					score += idx.bm25Score(t, docID)
				}
			}
		}
		hits = append(hits, Hit{
			FrameID: idx.docFrameID[docID],
			URI:     idx.docURI[docID],
			Title:   idx.docTitle[docID],
			Score:   score,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].FrameID > hits[j].FrameID
	})
	return hits, nil
}

// clauseBitmap returns the bitmap of docs satisfying c: a plain
// intersection for a multi-term non-phrase clause, or ordered-adjacency
// phrase matching for a quoted clause (§4.6 "Query parsing").
func (idx *Index) clauseBitmap(c clause) *roaring.Bitmap {
	if len(c.terms) == 0 {
		return roaring.New()
	}
	if c.phrase && len(c.terms) > 1 {
		return idx.phraseBitmap(c.terms)
	}
	bm := idx.termBitmap(c.terms[0]).Clone()
	for _, t := range c.terms[1:] {
		bm.And(idx.termBitmap(t))
	}
	return bm
}

// phraseBitmap narrows the intersection of every term's posting bitmap down
// to docs where the terms also occur as a contiguous, ordered run: for some
// starting position p of terms[0], terms[1] occurs at p+1, terms[2] at p+2,
// and so on. Co-occurrence without that adjacency does not match.
func (idx *Index) phraseBitmap(terms []string) *roaring.Bitmap {
	candidates := idx.termBitmap(terms[0]).Clone()
	for _, t := range terms[1:] {
		candidates.And(idx.termBitmap(t))
	}

	result := roaring.New()
	it := candidates.Iterator()
	for it.HasNext() {
		docID := it.Next()
		if idx.hasOrderedRun(terms, docID) {
			result.Add(docID)
		}
	}
	return result
}

// hasOrderedRun reports whether terms occur in docID starting at some
// shared position p, each term i found at exactly p+i.
func (idx *Index) hasOrderedRun(terms []string, docID uint32) bool {
	firstPositions := idx.positionsFor(terms[0], docID)
	for _, p0 := range firstPositions {
		ok := true
		for i := 1; i < len(terms); i++ {
			if !containsPosition(idx.positionsFor(terms[i], docID), p0+uint32(i)) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (idx *Index) positionsFor(term string, docID uint32) []uint32 {
	pl, ok := idx.postings[term]
	if !ok {
		return nil
	}
	return pl.positions[docID]
}

// containsPosition reports whether target is present in the sorted slice
// positions.
func containsPosition(positions []uint32, target uint32) bool {
	i := sort.Search(len(positions), func(i int) bool { return positions[i] >= target })
	return i < len(positions) && positions[i] == target
}

func (idx *Index) termBitmap(term string) *roaring.Bitmap {
	pl, ok := idx.postings[term]
	if !ok {
		return roaring.New()
	}
	return pl.bitmap
}

// Snippet extracts a window of maxChars centred on the earliest occurrence
// of any query term in text (a case-insensitive substring match), falling
// back to a plain prefix when no term is found (§4.6 "Top-K retrieval").
// It does not compare how densely terms cluster in different parts of text.
func Snippet(text string, terms []string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	lower := strings.ToLower(text)
	best := -1
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 && (best == -1 || i < best) {
			best = i
		}
	}
	if best == -1 {
		best = 0
	}
	start := best - maxChars/2
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(text) {
		end = len(text)
		start = end - maxChars
		if start < 0 {
			start = 0
		}
	}
	return text[start:end]
}
