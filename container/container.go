package container

import (
	"os"
	"sync"

	"github.com/memvid-dev/memvid/errs"
)

// Options configures Create/Open (§4.1, §4.3).
type Options struct {
	// CacheFrames bounds the in-memory frame cache. Zero selects a default.
	CacheFrames int
	// WalSize sets the bounded WAL region's capacity at create time. Zero
	// selects DefaultWALSize. Ignored by Open/OpenReadOnly/OpenMemory.
	WalSize uint64
}

// pendingCommit accumulates the effects of PutBytes/DeleteFrame/Enable*
// calls between commits; none of them reaches the durable file until
// Commit runs the five-step protocol (§4.5). AppendSegmentBytes is the
// exception: it writes segment bytes ahead of the Commit that publishes them.
type pendingCommit struct {
	frames     []FrameRecord
	metas      []Metadata
	deletes    map[uint64]bool
	enableLex  bool
	enableVec  bool
	enableTime bool
}

// Container is a single open .mv2 file (or in-memory equivalent): the
// header, the append log of frame records and index segments, the bounded
// WAL region, and the most recently loaded footer (§2 "System Overview").
// All durability-sensitive state changes happen inside Commit; everything
// else is an in-memory staging area.
type Container struct {
	mu sync.RWMutex

	file     storageFile
	path     string
	lock     *fileLock
	readOnly bool

	header Header
	footer Footer
	wal    walRegion
	cache  *frameCache

	entryIndex  map[uint64]Entry
	nextFrameID uint64
	endOffset   uint64

	pending pendingCommit

	// recovery records how loadExisting resolved the footer on this Open,
	// and needsFooterRewrite is set alongside any recovery that left the
	// header's own footer_offset/footer_length pointing at stale or
	// meaningless bytes — the next Commit (even an otherwise-empty one)
	// must still run to make the recovered footer durable (§4.3, §4.9).
	recovery           FooterRecoveryKind
	needsFooterRewrite bool
	walReplayed        bool
}

// FooterRecoveryKind records which of the escalating recovery techniques
// (§4.9 "Techniques") loadExisting had to fall back to in order to resolve
// a readable footer.
type FooterRecoveryKind int

const (
	// RecoveryNone means the header's footer_offset/footer_length pointed
	// straight at a valid footer.
	RecoveryNone FooterRecoveryKind = iota
	// RecoveryFooterScan means the header's pointer was unusable and the
	// footer was instead found by scanning backward for MagicFooter.
	RecoveryFooterScan
	// RecoveryFrameScan means no footer could be found at all and the
	// frame table was rebuilt by walking the frame log forward.
	RecoveryFrameScan
)

func (k FooterRecoveryKind) String() string {
	switch k {
	case RecoveryNone:
		return "none"
	case RecoveryFooterScan:
		return "footer_scan"
	case RecoveryFrameScan:
		return "frame_scan"
	default:
		return "unknown"
	}
}

// RecoveryInfo describes what this Open actually did to resolve the
// footer and WAL, so callers like doctor can report which repair phases
// were applied instead of assuming a clean open did nothing (§4.9).
type RecoveryInfo struct {
	Footer      FooterRecoveryKind
	WALReplayed bool
}

// RecoveryInfo returns how this Container's footer/WAL were resolved when
// it was opened.
func (c *Container) RecoveryInfo() RecoveryInfo {
	return RecoveryInfo{Footer: c.recovery, WALReplayed: c.walReplayed}
}

const defaultCacheFrames = 1024

// Create makes a new .mv2 file at path and returns it opened for writing.
// It fails if a file already exists at path.
func Create(path string, opts Options) (*Container, error) {
	lock, err := lockFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		lock.unlock()
		return nil, errs.Wrap(errs.KindIO, "container.Create", path, err)
	}
	c, err := newContainer(f, path, lock, false, opts)
	if err != nil {
		f.Close()
		lock.unlock()
		return nil, err
	}
	if err := c.initEmpty(opts); err != nil {
		f.Close()
		lock.unlock()
		return nil, err
	}
	return c, nil
}

// Open opens an existing .mv2 file for reading and writing, replaying any
// pending WAL entry left by an interrupted commit (§4.3).
func Open(path string) (*Container, error) {
	lock, err := lockFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		lock.unlock()
		return nil, errs.Wrap(errs.KindIO, "container.Open", path, err)
	}
	c, err := newContainer(f, path, lock, false, Options{})
	if err != nil {
		f.Close()
		lock.unlock()
		return nil, err
	}
	if err := c.loadExisting(); err != nil {
		f.Close()
		lock.unlock()
		return nil, err
	}
	if err := c.recoverWAL(); err != nil {
		f.Close()
		lock.unlock()
		return nil, err
	}
	return c, nil
}

// OpenReadOnly opens an existing .mv2 file without taking the exclusive
// writer lock and without replaying the WAL — a reader only ever resolves
// queries against the footer it loaded at open (§2 "snapshot isolation").
func OpenReadOnly(path string) (*Container, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "container.OpenReadOnly", path, err)
	}
	c, err := newContainer(f, path, nil, true, Options{})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := c.loadExisting(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// OpenMemory creates a Container backed entirely by memory, WAL region
// included, with no OS file lock — used for ephemeral/scratch containers
// and for tests that touch no filesystem (§4.8).
func OpenMemory() (*Container, error) {
	mem := newMemFile()
	c := &Container{
		file:       mem,
		path:       ":memory:",
		cache:      newFrameCache(defaultCacheFrames),
		entryIndex: make(map[uint64]Entry),
	}
	if err := c.initEmpty(Options{}); err != nil {
		return nil, err
	}
	return c, nil
}

func newContainer(f storageFile, path string, lock *fileLock, readOnly bool, opts Options) (*Container, error) {
	cacheSize := opts.CacheFrames
	if cacheSize <= 0 {
		cacheSize = defaultCacheFrames
	}
	return &Container{
		file:       f,
		path:       path,
		lock:       lock,
		readOnly:   readOnly,
		cache:      newFrameCache(cacheSize),
		entryIndex: make(map[uint64]Entry),
	}, nil
}

// initEmpty lays out a brand-new file: header, empty WAL region, empty
// footer immediately after it.
func (c *Container) initEmpty(opts Options) error {
	walSize := opts.WalSize
	if walSize == 0 {
		walSize = DefaultWALSize
	}

	walOffset := uint64(HeaderSize)
	footerOffset := walOffset + walSize
	footerBytes := encodeFooter(Footer{CommitSeq: 0})

	c.header = Header{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		WalOffset:    walOffset,
		WalSize:      walSize,
		FooterOffset: footerOffset,
		FooterLength: uint64(len(footerBytes)),
	}
	c.wal = walRegion{file: c.file, offset: walOffset, size: walSize}
	c.footer = Footer{}
	c.endOffset = footerOffset + uint64(len(footerBytes))
	c.nextFrameID = 1

	hdrBuf := encodeHeader(c.header)
	if _, err := c.file.WriteAt(hdrBuf[:], 0); err != nil {
		return errs.Wrap(errs.KindIO, "container.initEmpty", c.path, err)
	}
	if _, err := c.file.WriteAt(footerBytes, int64(footerOffset)); err != nil {
		return errs.Wrap(errs.KindIO, "container.initEmpty", c.path, err)
	}
	return c.file.Sync()
}

// loadExisting reads the header and resolves the footer it points to,
// escalating through the recovery techniques of §4.9 when the pointer
// itself is unusable: first a backward scan for MagicFooter, then (if
// even that finds nothing) a forward reconstruction of the frame table
// from the frame log itself (§4.3 "Recovery on open").
func (c *Container) loadExisting() error {
	var hdrBuf [HeaderSize]byte
	if _, err := c.file.ReadAt(hdrBuf[:], 0); err != nil {
		return errs.Wrap(errs.KindInvalidHeader, "container.loadExisting", c.path, err)
	}
	h, err := decodeHeader(hdrBuf)
	if err != nil {
		return err
	}
	c.header = h
	c.wal = walRegion{file: c.file, offset: h.WalOffset, size: h.WalSize}

	info, err := c.file.Stat()
	if err != nil {
		return errs.Wrap(errs.KindIO, "container.loadExisting", c.path, err)
	}
	fileSize := info.Size()

	if f, footerOffset, footerLength, ferr := c.readFooterAt(h, fileSize); ferr == nil {
		c.adoptFooter(f, footerOffset, footerLength, RecoveryNone)
		return nil
	}

	if f, footerOffset, footerLength, serr := c.scanForFooter(fileSize); serr == nil {
		c.header.FooterOffset = footerOffset
		c.header.FooterLength = footerLength
		c.adoptFooter(f, footerOffset, footerLength, RecoveryFooterScan)
		c.needsFooterRewrite = true
		return nil
	}

	f, endOffset, rerr := c.reconstructFromFrameLog(h, fileSize)
	if rerr != nil {
		return rerr
	}
	c.adoptFooter(f, endOffset, 0, RecoveryFrameScan)
	c.needsFooterRewrite = true
	return nil
}

// readFooterAt reads and decodes the footer at the header's recorded
// offset/length, rejecting the attempt up front if either value cannot
// possibly lie within the file.
func (c *Container) readFooterAt(h Header, fileSize int64) (Footer, uint64, uint64, error) {
	if h.FooterLength == 0 || h.FooterOffset > uint64(fileSize) || h.FooterLength > uint64(fileSize) ||
		h.FooterOffset+h.FooterLength > uint64(fileSize) {
		return Footer{}, 0, 0, errs.New(errs.KindInvalidFooter, "container.readFooterAt")
	}
	footerBuf := make([]byte, h.FooterLength)
	if _, err := c.file.ReadAt(footerBuf, int64(h.FooterOffset)); err != nil {
		return Footer{}, 0, 0, errs.Wrap(errs.KindInvalidFooter, "container.readFooterAt", c.path, err)
	}
	f, err := decodeFooter(footerBuf)
	if err != nil {
		return Footer{}, 0, 0, err
	}
	return f, h.FooterOffset, h.FooterLength, nil
}

// adoptFooter installs f as the container's current footer and rebuilds
// the derived in-memory state (entry index, next frame id) from it.
func (c *Container) adoptFooter(f Footer, footerOffset, footerLength uint64, kind FooterRecoveryKind) {
	c.footer = f
	c.endOffset = footerOffset + footerLength
	c.recovery = kind
	c.rebuildEntryIndex()
	c.nextFrameID = nextFrameIDAfter(f)
}

func nextFrameIDAfter(f Footer) uint64 {
	var max uint64
	for _, e := range f.Entries {
		if e.FrameID >= max {
			max = e.FrameID
		}
	}
	return max + 1
}

func (c *Container) rebuildEntryIndex() {
	c.entryIndex = make(map[uint64]Entry, len(c.footer.Entries))
	for _, e := range c.footer.Entries {
		c.entryIndex[e.FrameID] = e
	}
}

// recoverWAL finishes or discards a commit left in-flight by a crash
// (§4.3 "WAL recovery protocol"). Called once, right after Open loads the
// header and footer.
func (c *Container) recoverWAL() error {
	entry, ok, err := c.wal.read()
	if err != nil {
		// The WAL region itself is corrupt rather than merely empty; the
		// footer/header are still self-consistent, so treat this as
		// "nothing to replay" and leave full repair to doctor.
		return nil
	}
	if !ok {
		return nil
	}
	if entry.PrevFooterOffset != c.header.FooterOffset {
		// This entry's effects are already reflected in the current
		// footer (the crash landed after header update but before the
		// final WAL clear) — just finish step 5.
		return c.wal.clear()
	}
	return c.applyWalEntry(entry)
}

// applyWalEntry finishes steps 3-5 of the commit protocol for an entry
// whose frame bytes are already durable on disk (step 1 completed) but
// whose footer/header were not yet advanced.
func (c *Container) applyWalEntry(entry WalEntry) error {
	// The loaded footer's end offset is where the crashed commit began
	// appending; move past its frames and segments so the replayed footer
	// does not overwrite them.
	for _, fd := range entry.NewFrames {
		if end := fd.Offset + fd.Length; end > c.endOffset {
			c.endOffset = end
		}
	}
	for _, d := range entry.IndexDeltas {
		if seg, err := decodeIndexSegment(d.Payload); err == nil && seg.Offset+seg.Length > c.endOffset {
			c.endOffset = seg.Offset + seg.Length
		}
	}
	newFooter := c.nextFooter(entry.NewFrames, nil, entry.IndexDeltas)
	if err := c.commitFooterAndHeader(newFooter); err != nil {
		return err
	}
	c.walReplayed = true
	return nil
}

// Close flushes and releases the container's resources.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.file.Close()
	if c.lock != nil {
		if uerr := c.lock.unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

// IsReadOnly reports whether the container rejects mutations.
func (c *Container) IsReadOnly() bool { return c.readOnly }

// Path returns the filesystem path the container was opened from, or
// ":memory:" for OpenMemory containers.
func (c *Container) Path() string { return c.path }

// Header returns the currently loaded header.
func (c *Container) Header() Header { return c.header }

// Footer returns the footer snapshot this Container last committed or
// loaded — the basis for every query's snapshot isolation (§2).
func (c *Container) Footer() Footer { return c.footer }

// Entries returns a copy of the current footer's frame entries, in commit
// order, for callers (lexindex/timeindex/vecindex/doctor) that need to
// iterate the whole catalog rather than look up a single frame.
func (c *Container) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.footer.Entries...)
}

// ReadFrameRaw reads the undecoded frame record bytes at the given offset
// and length, bypassing the frame cache; verify uses it to re-check each
// record's CRC from the log rather than trusting a decoded copy.
func (c *Container) ReadFrameRaw(offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := c.file.ReadAt(buf, int64(offset)); err != nil {
		return nil, errs.Wrap(errs.KindIO, "container.ReadFrameRaw", c.path, err)
	}
	return buf, nil
}

// PutBytes stages a new frame for the next Commit and returns the frame id
// it will be assigned. The payload and its bytes are not durable until
// Commit succeeds.
func (c *Container) PutBytes(payload []byte, meta Metadata) (uint64, error) {
	if c.readOnly {
		return 0, errs.New(errs.KindUnrecoverable, "container.PutBytes")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextFrameID
	c.nextFrameID++

	meta.HasVector = len(meta.Vector) > 0
	meta.HasACL = len(meta.ACL) > 0

	rec := FrameRecord{FrameID: id, Payload: payload, MetadataRaw: meta.Encode()}
	if c.pending.deletes == nil {
		c.pending.deletes = make(map[uint64]bool)
	}
	c.pending.frames = append(c.pending.frames, rec)
	c.pending.metas = append(c.pending.metas, meta)
	return id, nil
}

// DeleteFrame sets the tombstone bit for frameID, effective at the next
// Commit. The frame's bytes in the log are never touched (§3).
func (c *Container) DeleteFrame(frameID uint64) error {
	if c.readOnly {
		return errs.New(errs.KindUnrecoverable, "container.DeleteFrame")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.deletes == nil {
		c.pending.deletes = make(map[uint64]bool)
	}
	c.pending.deletes[frameID] = true
	return nil
}

// EnableLex, EnableVec and EnableTime request that the corresponding header
// flag be set at the next Commit (§4.1). The caller is still responsible
// for supplying the initial index segment via Commit's segs argument.
func (c *Container) EnableLex()  { c.pending.enableLex = true }
func (c *Container) EnableVec()  { c.pending.enableVec = true }
func (c *Container) EnableTime() { c.pending.enableTime = true }

// GetFrame returns the decoded payload and metadata for frameID as of the
// Container's currently loaded footer.
func (c *Container) GetFrame(frameID uint64) ([]byte, *Metadata, error) {
	c.mu.RLock()
	entry, ok := c.entryIndex[frameID]
	c.mu.RUnlock()
	if !ok || entry.Deleted() {
		return nil, nil, errs.New(errs.KindNotFound, "container.GetFrame")
	}

	if cached, ok := c.cache.get(frameID); ok {
		return c.decodeCached(cached)
	}

	buf := make([]byte, entry.Length)
	if _, err := c.file.ReadAt(buf, int64(entry.Offset)); err != nil {
		return nil, nil, errs.Wrap(errs.KindIO, "container.GetFrame", c.path, err)
	}
	rec, _, err := decodeFrameRecord(buf)
	if err != nil {
		return nil, nil, err
	}
	c.cache.put(frameID, buf)

	payload, err := rec.DecodedPayload()
	if err != nil {
		return nil, nil, err
	}
	meta, err := DecodeMetadata(rec.MetadataRaw)
	if err != nil {
		return nil, nil, err
	}
	return payload, meta, nil
}

func (c *Container) decodeCached(buf []byte) ([]byte, *Metadata, error) {
	rec, _, err := decodeFrameRecord(buf)
	if err != nil {
		return nil, nil, err
	}
	payload, err := rec.DecodedPayload()
	if err != nil {
		return nil, nil, err
	}
	meta, err := DecodeMetadata(rec.MetadataRaw)
	if err != nil {
		return nil, nil, err
	}
	return payload, meta, nil
}

// AppendSegmentBytes durably writes an immutable secondary-index segment
// blob (built by lexindex/timeindex/vecindex) to the end of the log and
// returns its offset and length. The caller wraps the result in an
// IndexSegment and passes it to the next Commit so the footer gains a
// pointer to it; the segment bytes themselves are fsynced here rather than
// folded into Commit's frame-writing step, since a rebuild may need to
// write a segment well before the commit that publishes it.
func (c *Container) AppendSegmentBytes(data []byte) (offset uint64, length uint64, err error) {
	if c.readOnly {
		return 0, 0, errs.New(errs.KindUnrecoverable, "container.AppendSegmentBytes")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	off := c.endOffset
	if _, err := c.file.WriteAt(data, int64(off)); err != nil {
		return 0, 0, errs.Wrap(errs.KindIO, "container.AppendSegmentBytes", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return 0, 0, errs.Wrap(errs.KindIO, "container.AppendSegmentBytes", c.path, err)
	}
	c.endOffset += uint64(len(data))
	return off, uint64(len(data)), nil
}

// ReadSegmentBytes reads back a previously appended segment.
func (c *Container) ReadSegmentBytes(seg IndexSegment) ([]byte, error) {
	buf := make([]byte, seg.Length)
	if _, err := c.file.ReadAt(buf, int64(seg.Offset)); err != nil {
		return nil, errs.Wrap(errs.KindIO, "container.ReadSegmentBytes", c.path, err)
	}
	return buf, nil
}

// Commit durably applies every staged PutBytes/DeleteFrame/Enable* call
// plus the given secondary-index segments, following the five-step
// protocol (§4.5): write frames, fsync; write WAL entry, fsync; write new
// footer, fsync; update header, fsync; clear WAL, fsync.
func (c *Container) Commit(segs ...IndexSegment) error {
	if c.readOnly {
		return errs.New(errs.KindUnrecoverable, "container.Commit")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending.frames) == 0 && len(c.pending.deletes) == 0 && len(segs) == 0 &&
		!c.pending.enableLex && !c.pending.enableVec && !c.pending.enableTime && !c.needsFooterRewrite {
		return nil
	}

	// Step 1: write frame bytes, then fsync.
	deltas := make([]FrameDelta, 0, len(c.pending.frames))
	for _, rec := range c.pending.frames {
		buf := encodeFrameRecord(rec)
		off := c.endOffset
		if _, err := c.file.WriteAt(buf, int64(off)); err != nil {
			return errs.Wrap(errs.KindIO, "container.Commit", c.path, err)
		}
		c.endOffset += uint64(len(buf))
		deltas = append(deltas, FrameDelta{
			FrameID:    rec.FrameID,
			Offset:     off,
			Length:     uint64(len(buf)),
			MetaDigest: metadataDigest(rec.MetadataRaw),
		})
	}
	if err := c.file.Sync(); err != nil {
		return errs.Wrap(errs.KindIO, "container.Commit", c.path, err)
	}

	indexDeltas := make([]IndexDelta, 0, len(segs))
	for _, seg := range segs {
		indexDeltas = append(indexDeltas, IndexDelta{Kind: seg.Kind, Payload: encodeIndexSegment(seg)})
	}

	// Step 2: write the WAL entry, then fsync (done inside wal.write).
	entry := WalEntry{
		PrevFooterOffset: c.header.FooterOffset,
		NewFrames:        deltas,
		IndexDeltas:      indexDeltas,
	}
	if err := c.wal.write(entry); err != nil {
		return err
	}

	newFooter := c.nextFooter(deltas, c.pending.deletes, indexDeltas)
	if err := c.commitFooterAndHeader(newFooter); err != nil {
		return err
	}

	for id := range c.pending.deletes {
		c.cache.invalidate(id)
	}
	c.pending = pendingCommit{}
	c.needsFooterRewrite = false
	return nil
}

// nextFooter builds the footer that should become current after applying
// newFrames/deletes/indexDeltas on top of c.footer, without touching disk.
func (c *Container) nextFooter(newFrames []FrameDelta, deletes map[uint64]bool, indexDeltas []IndexDelta) Footer {
	next := Footer{
		Entries:       make([]Entry, 0, len(c.footer.Entries)+len(newFrames)),
		IndexSegments: append([]IndexSegment(nil), c.footer.IndexSegments...),
		CommitSeq:     c.footer.CommitSeq + 1,
	}
	for _, e := range c.footer.Entries {
		if deletes[e.FrameID] {
			e.Flags |= EntryFlagDeleted
		}
		next.Entries = append(next.Entries, e)
	}
	for i, fd := range newFrames {
		var meta Metadata
		if i < len(c.pending.metas) {
			meta = c.pending.metas[i]
		}
		flags := uint32(0)
		if meta.HasVector {
			flags |= EntryFlagHasVector
		}
		if meta.HasACL {
			flags |= EntryFlagHasAcl
		}
		next.Entries = append(next.Entries, Entry{
			FrameID:   fd.FrameID,
			Offset:    fd.Offset,
			Length:    fd.Length,
			Flags:     flags,
			Timestamp: meta.Timestamp,
			URI:       meta.URI,
			Title:     meta.Title,
			Tags:      meta.Tags,
		})
	}
	for _, d := range indexDeltas {
		seg, err := decodeIndexSegment(d.Payload)
		if err == nil {
			next.IndexSegments = append(next.IndexSegments, seg)
		}
	}
	return next
}

// commitFooterAndHeader performs steps 3-5 of the commit protocol for an
// already-computed footer: write it at the current end of the log, fsync;
// update and fsync the header; clear and fsync the WAL.
func (c *Container) commitFooterAndHeader(newFooter Footer) error {
	footerBytes := encodeFooter(newFooter)
	footerOffset := c.endOffset
	if _, err := c.file.WriteAt(footerBytes, int64(footerOffset)); err != nil {
		return errs.Wrap(errs.KindIO, "container.commitFooterAndHeader", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return errs.Wrap(errs.KindIO, "container.commitFooterAndHeader", c.path, err)
	}

	newHeader := c.header
	newHeader.FooterOffset = footerOffset
	newHeader.FooterLength = uint64(len(footerBytes))
	if c.pending.enableLex {
		newHeader.Flags |= FlagLexEnabled
	}
	if c.pending.enableVec {
		newHeader.Flags |= FlagVecEnabled
	}
	if c.pending.enableTime {
		newHeader.Flags |= FlagTimeEnabled
	}
	hdrBuf := encodeHeader(newHeader)
	if _, err := c.file.WriteAt(hdrBuf[:], 0); err != nil {
		return errs.Wrap(errs.KindIO, "container.commitFooterAndHeader", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return errs.Wrap(errs.KindIO, "container.commitFooterAndHeader", c.path, err)
	}

	if err := c.wal.clear(); err != nil {
		return err
	}

	c.header = newHeader
	c.footer = newFooter
	c.endOffset = footerOffset + uint64(len(footerBytes))
	c.rebuildEntryIndex()
	return nil
}
