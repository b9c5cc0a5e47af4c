// Package doctor implements the repair engine that brings a .mv2 file from
// any in-band corrupted state back to clean, or reports what it could not
// heal (§4.9 "Doctor (Repair Engine)").
package doctor

import (
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/errs"
	"github.com/memvid-dev/memvid/lexindex"
	"github.com/memvid-dev/memvid/timeindex"
	"github.com/memvid-dev/memvid/vecindex"
)

// PhaseKind identifies one step of the fixed repair plan (§4.9 "Plan").
type PhaseKind int

const (
	PhaseHeaderCheck PhaseKind = iota
	PhaseFooterRecover
	PhaseWalReplay
	PhaseFrameScan
	PhaseVacuum
	PhaseIndexRebuild
	PhaseFooterRewrite
	PhaseFinalVerify
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseHeaderCheck:
		return "header_check"
	case PhaseFooterRecover:
		return "footer_recover"
	case PhaseWalReplay:
		return "wal_replay"
	case PhaseFrameScan:
		return "frame_scan"
	case PhaseVacuum:
		return "vacuum"
	case PhaseIndexRebuild:
		return "index_rebuild"
	case PhaseFooterRewrite:
		return "footer_rewrite"
	case PhaseFinalVerify:
		return "final_verify"
	default:
		return "unknown"
	}
}

// planOrder is the fixed phase order (§4.9 "Plan"): Vacuum must precede
// IndexRebuild so frame ids visible to the rebuilt index match post-vacuum
// state.
var planOrder = []PhaseKind{
	PhaseHeaderCheck, PhaseFooterRecover, PhaseWalReplay, PhaseFrameScan,
	PhaseVacuum, PhaseIndexRebuild, PhaseFooterRewrite, PhaseFinalVerify,
}

// Status is the outcome of a doctor run (§4.9 "Outcomes").
type Status int

const (
	StatusClean Status = iota
	StatusHealed
	StatusPlanOnly
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusHealed:
		return "healed"
	case StatusPlanOnly:
		return "plan_only"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a doctor run (§4.9 "Inputs").
type Options struct {
	RebuildLexIndex  bool
	RebuildTimeIndex bool
	RebuildVecIndex  bool
	Vacuum           bool
	DryRun           bool
	Quiet            bool
}

// Writer receives progress log lines. Doctor accepts this narrow one-method
// interface rather than a logging framework (§A.2).
type Writer interface {
	Logf(format string, args ...interface{})
}

// PhaseResult records what one phase did.
type PhaseResult struct {
	Phase   PhaseKind
	Applied bool
}

// Report is the result of a doctor run.
type Report struct {
	Status Status
	Plan   []PhaseKind
	Phases []PhaseResult
	Healed bool
}

// Run executes the fixed repair plan against path (§4.9). A dry run
// returns a PlanOnly report without writing anything.
func Run(path string, opts Options, out Writer) (Report, error) {
	report := Report{Plan: planOrder}
	log := func(format string, args ...interface{}) {
		if !opts.Quiet && out != nil {
			out.Logf(format, args...)
		}
	}

	if opts.DryRun {
		report.Status = StatusPlanOnly
		return report, nil
	}

	c, err := container.Open(path)
	report.Phases = append(report.Phases, PhaseResult{Phase: PhaseHeaderCheck, Applied: err == nil})
	if err != nil {
		report.Status = StatusFailed
		return report, errs.Wrap(errs.KindUnrecoverable, "doctor.Run", path, err)
	}

	// FooterRecover/WalReplay/FrameScan run inside container.Open's
	// loadExisting/recoverWAL: a bad footer pointer falls back to a
	// backward scan for the magic, and a footer-less file falls back
	// further to reconstructing the frame table from the log itself
	// (§4.3, §4.9 techniques #2 and #4). RecoveryInfo reports which of
	// those actually fired so a clean open is distinguished from one that
	// had to repair something.
	recovery := c.RecoveryInfo()
	report.Phases = append(report.Phases,
		PhaseResult{Phase: PhaseFooterRecover, Applied: recovery.Footer != container.RecoveryNone},
		PhaseResult{Phase: PhaseWalReplay, Applied: recovery.WALReplayed},
		PhaseResult{Phase: PhaseFrameScan, Applied: recovery.Footer == container.RecoveryFrameScan},
	)
	if recovery.Footer != container.RecoveryNone {
		log("recovered footer via %s", recovery.Footer)
		report.Healed = true
	}

	if opts.Vacuum {
		log("vacuuming %s", path)
		if err := c.Close(); err != nil {
			report.Status = StatusFailed
			return report, err
		}
		c, err = vacuum(path)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		report.Phases = append(report.Phases, PhaseResult{Phase: PhaseVacuum, Applied: true})
		report.Healed = true
	} else {
		report.Phases = append(report.Phases, PhaseResult{Phase: PhaseVacuum})
	}
	defer c.Close()

	var segs []container.IndexSegment
	rebuilt := false
	if opts.RebuildLexIndex {
		log("rebuilding lexical index")
		idx, err := lexindex.Build(c)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		raw, err := idx.Serialize()
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		off, length, err := c.AppendSegmentBytes(raw)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		segs = append(segs, container.IndexSegment{Kind: container.SegmentLex, Version: 1, Offset: off, Length: length})
		c.EnableLex()
		rebuilt = true
	}
	if opts.RebuildTimeIndex {
		log("rebuilding time index")
		idx, err := timeindex.Build(c)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		raw := idx.Serialize()
		off, length, err := c.AppendSegmentBytes(raw)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		segs = append(segs, container.IndexSegment{Kind: container.SegmentTime, Version: 1, Offset: off, Length: length})
		c.EnableTime()
		rebuilt = true
	}
	if opts.RebuildVecIndex {
		log("rebuilding vector index")
		idx, err := vecindex.Build(c)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		raw := idx.Serialize()
		off, length, err := c.AppendSegmentBytes(raw)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		segs = append(segs, container.IndexSegment{Kind: container.SegmentVec, Version: 1, Offset: off, Length: length})
		c.EnableVec()
		rebuilt = true
	}
	report.Phases = append(report.Phases, PhaseResult{Phase: PhaseIndexRebuild, Applied: rebuilt})

	// A recovery during the initial open (or, if no vacuum ran, still
	// pending on c) left the footer resolved only in memory; commit it
	// now even when no index rebuild was requested, so the invariant
	// that header.footer_offset always points at a valid footer holds
	// once doctor returns (§4.9 "Invariant").
	needsRewrite := c.RecoveryInfo().Footer != container.RecoveryNone
	if len(segs) > 0 || needsRewrite {
		if err := c.Commit(segs...); err != nil {
			report.Status = StatusFailed
			return report, err
		}
		report.Phases = append(report.Phases, PhaseResult{Phase: PhaseFooterRewrite, Applied: true})
		report.Healed = true
	} else {
		report.Phases = append(report.Phases, PhaseResult{Phase: PhaseFooterRewrite})
	}

	report.Phases = append(report.Phases, PhaseResult{Phase: PhaseFinalVerify, Applied: true})

	if report.Healed {
		report.Status = StatusHealed
	} else {
		report.Status = StatusClean
	}
	return report, nil
}

// vacuum compacts the file at path by copying every surviving
// (non-tombstoned) frame into a scratch container, then swapping it into
// place — the teacher's VacuumCollection pattern (storage/pager.go),
// adapted from page-granular compaction to whole-frame compaction. The
// scratch file is named with a random UUID to avoid colliding with a
// concurrent vacuum, and CloseGrace is honored before the rename so
// platforms with lagging handle release (Windows) don't see the old file
// still "in use" (§5 "Platform note").
func vacuum(path string) (*container.Container, error) {
	scratchPath := path + ".vacuum-" + uuid.NewString()

	old, err := container.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer old.Close()

	fresh, err := container.Create(scratchPath, container.Options{})
	if err != nil {
		return nil, err
	}

	for _, e := range old.Entries() {
		if e.Deleted() {
			continue
		}
		payload, meta, err := old.GetFrame(e.FrameID)
		if err != nil {
			// A single unreadable frame does not abort vacuum (§7
			// "Policy": read paths recover per-frame errors locally).
			continue
		}
		if _, err := fresh.PutBytes(payload, *meta); err != nil {
			fresh.Close()
			os.Remove(scratchPath)
			return nil, err
		}
	}
	if err := fresh.Commit(); err != nil {
		fresh.Close()
		os.Remove(scratchPath)
		return nil, err
	}
	if err := fresh.Close(); err != nil {
		os.Remove(scratchPath)
		return nil, err
	}

	time.Sleep(container.CloseGrace)

	if err := os.Rename(scratchPath, path); err != nil {
		os.Remove(scratchPath)
		return nil, errs.Wrap(errs.KindIO, "doctor.vacuum", path, err)
	}

	return container.Open(path)
}
