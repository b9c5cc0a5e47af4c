// Package memvid implements a single-file embedded memory/storage format
// for AI and agent systems: an append-only frame log with pluggable
// lexical, time and vector indexes, a crash-consistent commit protocol,
// and a repair/verify toolchain, all addressed through one public façade
// (§6 "Public Surface"), grounded on the teacher's api/db.go composition.
package memvid

import (
	"time"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/doctor"
	"github.com/memvid-dev/memvid/lexindex"
	"github.com/memvid-dev/memvid/query"
	"github.com/memvid-dev/memvid/timeindex"
	"github.com/memvid-dev/memvid/vecindex"
	"github.com/memvid-dev/memvid/verify"
)

// Metadata mirrors container.Metadata at the public surface, so callers
// never need to import the container package directly.
type Metadata = container.Metadata

// Options mirrors container.Options at the public surface.
type Options = container.Options

// SearchRequest/SearchResponse/SearchHit mirror query's shapes.
type SearchRequest = query.SearchRequest
type SearchResponse = query.SearchResponse
type SearchHit = query.SearchHit
type TimelineQuery = query.TimelineQuery
type TimelineEntry = query.TimelineEntry
type Stats = query.Stats

// DoctorOptions/DoctorReport/DoctorStatus mirror doctor's shapes.
type DoctorOptions = doctor.Options
type DoctorReport = doctor.Report
type DoctorStatus = doctor.Status

// VerifyReport/VerifyFinding mirror verify's shapes.
type VerifyReport = verify.Report
type VerifyFinding = verify.Finding

// DB is an open memvid file: the container plus whatever secondary
// indexes its footer currently references, loaded once at Open/Create
// time and refreshed on every successful Commit (§2 "System Overview").
type DB struct {
	c           *container.Container
	engine      *query.Engine
	pendingSegs []container.IndexSegment
}

// Create makes a new .mv2 file at path.
func Create(path string, opts Options) (*DB, error) {
	c, err := container.Create(path, opts)
	if err != nil {
		return nil, err
	}
	return newDB(c)
}

// Open opens an existing .mv2 file for reading and writing, replaying any
// pending WAL entry left by an interrupted commit (§4.5 "Recovery").
func Open(path string) (*DB, error) {
	c, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	return newDB(c)
}

// OpenReadOnly opens an existing .mv2 file without taking the advisory
// file lock and without attempting WAL replay — a reader resolves only
// against the footer durable at open time (§4.6 "Consistency").
func OpenReadOnly(path string) (*DB, error) {
	c, err := container.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	return newDB(c)
}

// OpenMemory opens an in-process, non-durable container, useful for
// scratch use and tests that should not touch a filesystem.
func OpenMemory() (*DB, error) {
	c, err := container.OpenMemory()
	if err != nil {
		return nil, err
	}
	return newDB(c)
}

func newDB(c *container.Container) (*DB, error) {
	e, err := query.NewEngine(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	return &DB{c: c, engine: e}, nil
}

// Close releases the underlying container's resources.
func (db *DB) Close() error { return db.c.Close() }

// PutBytes stages a new frame for the next Commit and returns its frame
// id. The bytes are not durable until Commit succeeds (§4.5).
func (db *DB) PutBytes(payload []byte, meta Metadata) (uint64, error) {
	return db.c.PutBytes(payload, meta)
}

// DeleteFrame stages a tombstone for frameID, effective at the next
// Commit. The frame's bytes are never rewritten (§3).
func (db *DB) DeleteFrame(frameID uint64) error {
	return db.c.DeleteFrame(frameID)
}

// GetFrame returns the decoded payload and metadata for frameID as of the
// DB's currently loaded footer.
func (db *DB) GetFrame(frameID uint64) ([]byte, *Metadata, error) {
	return db.c.GetFrame(frameID)
}

// Commit durably applies every staged write and, if any secondary index
// was (re)built since the last commit via RebuildIndexes, publishes its
// segment pointer in the new footer (§4.5). The DB's query engine is
// reloaded from the fresh footer afterward so subsequent Search/Timeline
// calls see the new data.
func (db *DB) Commit() error {
	segs := db.pendingSegs
	db.pendingSegs = nil
	if err := db.c.Commit(segs...); err != nil {
		return err
	}
	e, err := query.NewEngine(db.c)
	if err != nil {
		return err
	}
	db.engine = e
	return nil
}

// EnableLex, EnableVec and EnableTime request that the corresponding
// header flag be set as of the next Commit (§4.1). They publish no index
// segment: DB.Commit publishes only the segments RebuildIndexes has queued.
func (db *DB) EnableLex()  { db.c.EnableLex() }
func (db *DB) EnableVec()  { db.c.EnableVec() }
func (db *DB) EnableTime() { db.c.EnableTime() }

// RebuildIndexes (re)builds whichever of the lexical/time/vector indexes
// are requested from the DB's current frame log, appends their segment
// bytes, and enables the corresponding header flag — mirroring what
// doctor's IndexRebuild phase does, exposed here for callers that want to
// (re)index without going through the repair engine (e.g. after a large
// batch of PutBytes calls). The result is only durable once Commit runs.
func (db *DB) RebuildIndexes(lex, timeIdx, vec bool) error {
	if lex {
		idx, err := lexindex.Build(db.c)
		if err != nil {
			return err
		}
		raw, err := idx.Serialize()
		if err != nil {
			return err
		}
		off, length, err := db.c.AppendSegmentBytes(raw)
		if err != nil {
			return err
		}
		db.pendingSegs = append(db.pendingSegs, container.IndexSegment{
			Kind: container.SegmentLex, Version: 1, Offset: off, Length: length,
		})
		db.c.EnableLex()
	}
	if timeIdx {
		idx, err := timeindex.Build(db.c)
		if err != nil {
			return err
		}
		raw := idx.Serialize()
		off, length, err := db.c.AppendSegmentBytes(raw)
		if err != nil {
			return err
		}
		db.pendingSegs = append(db.pendingSegs, container.IndexSegment{
			Kind: container.SegmentTime, Version: 1, Offset: off, Length: length,
		})
		db.c.EnableTime()
	}
	if vec {
		idx, err := vecindex.Build(db.c)
		if err != nil {
			return err
		}
		raw := idx.Serialize()
		off, length, err := db.c.AppendSegmentBytes(raw)
		if err != nil {
			return err
		}
		db.pendingSegs = append(db.pendingSegs, container.IndexSegment{
			Kind: container.SegmentVec, Version: 1, Offset: off, Length: length,
		})
		db.c.EnableVec()
	}
	return nil
}

// Search executes req against the DB's current footer snapshot (§4.8).
func (db *DB) Search(req SearchRequest) (SearchResponse, error) {
	return db.engine.Search(req, time.Now())
}

// Timeline returns chronologically ordered entries for q (§4.8).
func (db *DB) Timeline(q TimelineQuery) ([]TimelineEntry, error) {
	return db.engine.Timeline(q)
}

// Stats reports summary information about the DB's current footer.
func (db *DB) Stats() Stats { return db.engine.Stats() }

// Path returns the filesystem path the DB was opened from.
func (db *DB) Path() string { return db.c.Path() }

// Verify audits the .mv2 file at path without mutating it (§4.10).
func Verify(path string) (VerifyReport, error) {
	return verify.Run(path)
}

// Doctor runs the fixed repair plan against the .mv2 file at path (§4.9).
func Doctor(path string, opts DoctorOptions, out doctor.Writer) (DoctorReport, error) {
	return doctor.Run(path, opts, out)
}
