// Package verify implements the read-only structured audit (§4.10
// "Verifier"): a pass over a .mv2 file that reports every integrity
// problem it finds without attempting to fix any of them — that is
// doctor's job.
package verify

import (
	"github.com/memvid-dev/memvid/container"
	"github.com/memvid-dev/memvid/lexindex"
	"github.com/memvid-dev/memvid/timeindex"
	"github.com/memvid-dev/memvid/vecindex"
)

// Severity classifies a Finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// FindingKind identifies the category of check that produced a Finding.
type FindingKind string

const (
	FindingHeaderCRC        FindingKind = "header_crc"
	FindingFooterCRC        FindingKind = "footer_crc"
	FindingFrameCRC         FindingKind = "frame_crc"
	FindingSegmentChecksum  FindingKind = "segment_checksum"
	FindingOrphanEntry      FindingKind = "orphan_entry"
	FindingDanglingIndexRef FindingKind = "dangling_index_ref"
)

// Finding is one audit result.
type Finding struct {
	Kind     FindingKind
	Severity Severity
	FrameID  uint64 // zero when not frame-scoped
	Message  string
}

// OverallStatus summarizes a Report.
type OverallStatus int

const (
	StatusOK OverallStatus = iota
	StatusWarnings
	StatusCorrupt
)

func (s OverallStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarnings:
		return "warnings"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Report is the result of Run.
type Report struct {
	Overall  OverallStatus
	Findings []Finding
}

// Run audits the .mv2 file at path. It never mutates the file: it opens
// read-only and inspects whatever the container successfully loaded, plus
// independently re-derives each frame's CRC and re-checks each referenced
// index segment.
func Run(path string) (Report, error) {
	c, err := container.OpenReadOnly(path)
	if err != nil {
		return Report{Overall: StatusCorrupt, Findings: []Finding{{
			Kind: FindingHeaderCRC, Severity: SeverityError,
			Message: "container failed to open: " + err.Error(),
		}}}, nil
	}
	defer c.Close()
	return RunContainer(c), nil
}

// RunContainer audits an already-open container, for callers that already
// hold a handle; Run opens the file read-only and delegates here.
func RunContainer(c *container.Container) Report {
	var findings []Finding

	footer := c.Footer()

	seenFrame := make(map[uint64]bool, len(footer.Entries))
	for _, e := range footer.Entries {
		seenFrame[e.FrameID] = true
		if e.Deleted() {
			continue
		}
		raw, err := c.ReadFrameRaw(e.Offset, e.Length)
		if err != nil {
			findings = append(findings, Finding{
				Kind: FindingFrameCRC, Severity: SeverityError, FrameID: e.FrameID,
				Message: "frame record unreadable: " + err.Error(),
			})
			continue
		}
		if _, _, err := container.DecodeFrameRecordForVerify(raw); err != nil {
			findings = append(findings, Finding{
				Kind: FindingFrameCRC, Severity: SeverityError, FrameID: e.FrameID,
				Message: "frame record failed CRC/shape validation: " + err.Error(),
			})
		}
	}

	for _, seg := range footer.IndexSegments {
		raw, err := c.ReadSegmentBytes(seg)
		if err != nil {
			findings = append(findings, Finding{
				Kind: FindingSegmentChecksum, Severity: SeverityError,
				Message: "index segment unreadable: " + err.Error(),
			})
			continue
		}
		if err := checkSegment(seg, raw); err != nil {
			findings = append(findings, Finding{
				Kind: FindingSegmentChecksum, Severity: SeverityError,
				Message: "index segment failed to deserialize: " + err.Error(),
			})
			continue
		}
		findings = append(findings, crossReferenceSegment(seg, raw, seenFrame)...)
	}

	overall := StatusOK
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			overall = StatusCorrupt
		case SeverityWarning:
			if overall == StatusOK {
				overall = StatusWarnings
			}
		}
	}
	return Report{Overall: overall, Findings: findings}
}

func checkSegment(seg container.IndexSegment, raw []byte) error {
	switch seg.Kind {
	case container.SegmentLex:
		_, err := lexindex.Deserialize(raw)
		return err
	case container.SegmentTime:
		_, err := timeindex.Deserialize(raw)
		return err
	case container.SegmentVec:
		_, err := vecindex.Deserialize(raw)
		return err
	default:
		return nil
	}
}

// crossReferenceSegment checks that every frame id an index segment refers
// to still has an entry, live or tombstoned, in the footer (§4.10 "Cross-reference
// checks"); a dangling reference means the index was rebuilt against a
// different generation of the file than the one currently loaded.
func crossReferenceSegment(seg container.IndexSegment, raw []byte, seenFrame map[uint64]bool) []Finding {
	var findings []Finding
	var ids []uint64
	switch seg.Kind {
	case container.SegmentLex:
		idx, err := lexindex.Deserialize(raw)
		if err == nil {
			ids = idx.FrameIDs()
		}
	case container.SegmentTime:
		idx, err := timeindex.Deserialize(raw)
		if err == nil {
			ids = idx.FrameIDs()
		}
	case container.SegmentVec:
		idx, err := vecindex.Deserialize(raw)
		if err == nil {
			ids = idx.FrameIDs()
		}
	}
	for _, id := range ids {
		if !seenFrame[id] {
			findings = append(findings, Finding{
				Kind: FindingDanglingIndexRef, Severity: SeverityWarning, FrameID: id,
				Message: "index references a frame id absent from the current footer",
			})
		}
	}
	return findings
}
