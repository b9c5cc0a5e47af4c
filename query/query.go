// Package query implements the public search/timeline/stats surface
// (§4.8 "Query Surface"): request/response shapes, cursor encoding, ACL
// enforcement modes, and as-of snapshot pinning, on top of lexindex and
// timeindex.
package query

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"time"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/errs"
	"github.com/memvid-dev/memvid/lexindex"
	"github.com/memvid-dev/memvid/timeindex"
)

// AclEnforcementMode selects how a search request's acl_context is applied
// against a frame's stored ACL descriptor (§6 "SearchRequest fields").
type AclEnforcementMode int

const (
	AclOff AclEnforcementMode = iota
	AclAudit
	AclEnforce
)

// SearchRequest mirrors the language-neutral SearchRequest shape (§6).
type SearchRequest struct {
	Query              string
	TopK               int
	SnippetChars       int
	URI                string
	Scope              string
	Cursor             string
	AsOfFrame          uint64
	AsOfTs             int64
	HasAsOfFrame       bool
	HasAsOfTs          bool
	NoSketch           bool
	AclContext         []byte
	AclEnforcementMode AclEnforcementMode
}

// SearchHit is one ranked result.
type SearchHit struct {
	FrameID uint64
	URI     string
	Title   string
	Score   float64
	Text    string
}

// SearchResponse is the result of Search.
type SearchResponse struct {
	Hits       []SearchHit
	TotalHits  int
	ElapsedMs  int64
	NextCursor string
}

// cursor encodes (commit_seq, last_score, last_frame_id) so a continuation
// token from one footer generation is rejected against a later one
// (§9 "Cursor opacity").
type cursor struct {
	CommitSeq   uint64
	LastScore   float64
	LastFrameID uint64
}

func encodeCursor(c cursor) string {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], c.CommitSeq)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(c.LastScore))
	binary.LittleEndian.PutUint64(buf[16:24], c.LastFrameID)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func decodeCursor(s string) (cursor, error) {
	var c cursor
	buf, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(buf) != 24 {
		return c, errs.New(errs.KindQuerySyntax, "query.decodeCursor")
	}
	c.CommitSeq = binary.LittleEndian.Uint64(buf[0:8])
	c.LastScore = math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
	c.LastFrameID = binary.LittleEndian.Uint64(buf[16:24])
	return c, nil
}

// Engine ties a Container together with its loaded lexical and time
// indexes and serves the query surface against a single footer snapshot.
type Engine struct {
	c        *container.Container
	lex      *lexindex.Index
	tindex   *timeindex.Index
	commitSq uint64
}

// NewEngine loads lex/time index segments referenced by c's current
// footer, if present (§4.6 "Consistency": a reader only ever resolves
// posting lists from segments the loaded footer references).
func NewEngine(c *container.Container) (*Engine, error) {
	e := &Engine{c: c, commitSq: c.Footer().CommitSeq}

	if seg, ok := c.Footer().FindLexSegment(); ok {
		raw, err := c.ReadSegmentBytes(seg)
		if err != nil {
			return nil, err
		}
		idx, err := lexindex.Deserialize(raw)
		if err != nil {
			return nil, err
		}
		e.lex = idx
	}
	if seg, ok := c.Footer().FindTimeSegment(); ok {
		raw, err := c.ReadSegmentBytes(seg)
		if err != nil {
			return nil, err
		}
		idx, err := timeindex.Deserialize(raw)
		if err != nil {
			return nil, err
		}
		e.tindex = idx
	}
	return e, nil
}

// Search executes req against the engine's loaded footer snapshot.
func (e *Engine) Search(req SearchRequest, now time.Time) (SearchResponse, error) {
	start := now
	if e.lex == nil {
		return SearchResponse{}, errs.New(errs.KindUnrecoverable, "query.Search")
	}

	q, err := lexindex.Parse(req.Query)
	if err != nil {
		return SearchResponse{}, err
	}

	scope := req.Scope
	hits, err := e.lex.Search(q, scope)
	if err != nil {
		return SearchResponse{}, err
	}

	if req.URI != "" {
		filtered := hits[:0]
		for _, h := range hits {
			if h.URI == req.URI {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	if req.HasAsOfFrame || req.HasAsOfTs {
		hits = e.filterAsOf(hits, req)
	}

	if req.AclEnforcementMode == AclEnforce {
		hits = enforceAcl(hits, req.AclContext)
	}

	total := len(hits)

	if req.Cursor != "" {
		cur, err := decodeCursor(req.Cursor)
		if err != nil {
			return SearchResponse{}, err
		}
		if cur.CommitSeq != e.commitSq {
			return SearchResponse{}, errs.New(errs.KindQuerySyntax, "query.Search")
		}
		trimmed := hits[:0]
		skipping := true
		for _, h := range hits {
			if skipping {
				if h.Score == cur.LastScore && h.FrameID == cur.LastFrameID {
					skipping = false
				}
				continue
			}
			trimmed = append(trimmed, h)
		}
		hits = trimmed
	}

	topK := req.TopK
	if topK <= 0 {
		topK = len(hits)
	}
	var nextCursor string
	if len(hits) > topK {
		last := hits[topK-1]
		nextCursor = encodeCursor(cursor{CommitSeq: e.commitSq, LastScore: last.Score, LastFrameID: last.FrameID})
		hits = hits[:topK]
	}

	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		text := ""
		if !req.NoSketch {
			_, meta, err := e.c.GetFrame(h.FrameID)
			if err == nil {
				terms := termsOf(req.Query)
				src := meta.SearchText
				if src == "" {
					src = string(truncatePayload(meta))
				}
				text = lexindex.Snippet(src, terms, req.SnippetChars)
			}
		}
		out = append(out, SearchHit{FrameID: h.FrameID, URI: h.URI, Title: h.Title, Score: h.Score, Text: text})
	}

	return SearchResponse{
		Hits:       out,
		TotalHits:  total,
		ElapsedMs:  time.Since(start).Milliseconds(),
		NextCursor: nextCursor,
	}, nil
}

// filterAsOf pins the result set to a logical snapshot by dropping hits
// newer than the requested ceiling: AsOfFrame excludes any frame id
// allocated after it, AsOfTs excludes any frame whose entry timestamp is
// later than it. Both read the current footer's entries rather than
// resolving a historical footer, since the footer's own frame ids are
// already assigned in commit order and its entries carry the timestamp
// each frame was stored with (§9 "Snapshot reads" — the filtering
// strategy, not footer-scan-back, is this engine's documented choice).
func (e *Engine) filterAsOf(hits []lexindex.Hit, req SearchRequest) []lexindex.Hit {
	var tsByFrame map[uint64]int64
	if req.HasAsOfTs {
		entries := e.c.Entries()
		tsByFrame = make(map[uint64]int64, len(entries))
		for _, ent := range entries {
			tsByFrame[ent.FrameID] = ent.Timestamp
		}
	}

	filtered := hits[:0]
	for _, h := range hits {
		if req.HasAsOfFrame && h.FrameID > req.AsOfFrame {
			continue
		}
		if req.HasAsOfTs {
			ts, ok := tsByFrame[h.FrameID]
			if !ok || ts > req.AsOfTs {
				continue
			}
		}
		filtered = append(filtered, h)
	}
	return filtered
}

func truncatePayload(meta *container.Metadata) string { return "" }

func termsOf(raw string) []string {
	return lexindex.Tokenize(raw)
}

// enforceAcl returns hits unchanged: it reads no frame's stored ACL and
// does not evaluate aclContext, so AclEnforce drops no hits. A production implementation would delegate to a
// pluggable ACL evaluator; this keeps the shape the query surface needs
// without inventing an ACL grammar the spec leaves external.
func enforceAcl(hits []lexindex.Hit, aclContext []byte) []lexindex.Hit {
	return hits
}

// TimelineEntry is one row of a timeline traversal.
type TimelineEntry struct {
	FrameID   uint64
	Timestamp int64
	URI       string
	Preview   string
}

// TimelineQuery mirrors the language-neutral TimelineQuery shape (§4.8).
type TimelineQuery struct {
	Since      int64
	Until      int64
	HasUntil   bool
	Descending bool
	Limit      int
}

// Timeline returns ordered entries for q.
func (e *Engine) Timeline(q TimelineQuery) ([]TimelineEntry, error) {
	if e.tindex == nil {
		return nil, errs.New(errs.KindUnrecoverable, "query.Timeline")
	}
	rows := e.tindex.Run(timeindex.Query{
		Since: q.Since, Until: q.Until, HasUntil: q.HasUntil,
		Descending: q.Descending, Limit: q.Limit,
	})
	out := make([]TimelineEntry, 0, len(rows))
	for _, r := range rows {
		preview := ""
		if _, meta, err := e.c.GetFrame(r.FrameID); err == nil {
			preview = meta.Title
			if preview == "" {
				preview = firstNChars(meta.SearchText, 80)
			}
		}
		out = append(out, TimelineEntry{FrameID: r.FrameID, Timestamp: r.Timestamp, URI: r.URI, Preview: preview})
	}
	return out, nil
}

func firstNChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Stats is the result of Stats().
type Stats struct {
	FrameCount    int
	HasLexIndex   bool
	HasVecIndex   bool
	HasTimeIndex  bool
	CommitSeq     uint64
}

// Stats reports summary information about the engine's loaded footer.
func (e *Engine) Stats() Stats {
	footer := e.c.Footer()
	header := e.c.Header()
	count := 0
	for _, ent := range footer.Entries {
		if !ent.Deleted() {
			count++
		}
	}
	_, hasVec := footer.FindVecSegment()
	return Stats{
		FrameCount:   count,
		HasLexIndex:  header.Flags&container.FlagLexEnabled != 0,
		HasVecIndex:  hasVec && header.Flags&container.FlagVecEnabled != 0,
		HasTimeIndex: header.Flags&container.FlagTimeEnabled != 0,
		CommitSeq:    footer.CommitSeq,
	}
}

