// Package container implements the on-disk .mv2 file format: header,
// frame log, write-ahead log and TOC footer, plus the commit engine that
// ties them together with a crash-consistent atomic-visibility protocol.
package container

import "time"

// Magic byte sequences. MagicHeader and MagicWAL are 8-byte fields on disk,
// zero-padded after their 7 characters; MagicFrame is a 4-byte field.
// MagicFooter is exactly 8 bytes and
// needs no padding — it is also the value scanned for during footer
// recovery (§4.3, §4.9).
var (
	MagicHeader = [8]byte{'M', 'V', '2', 'H', 'D', 'R', '!', 0}
	MagicFrame  = [4]byte{'F', 'R', 'A', 'M'}
	MagicWAL    = [8]byte{'M', 'V', '2', 'W', 'A', 'L', '!', 0}
	MagicFooter = [8]byte{'M', 'V', '2', 'F', 'O', 'O', 'T', '!'}
)

// Format version supported by this implementation.
const (
	VersionMajor = 2
	VersionMinor = 0
)

// HeaderSize is the fixed size in bytes of the file header (§4.1).
const HeaderSize = 64

// DefaultWALSize is the capacity reserved for the WAL region at create
// time (§4.3); doctor/vacuum may grow it.
const DefaultWALSize = 1 << 20 // 1 MiB

// Header flag bits (§4.1).
const (
	FlagLexEnabled uint32 = 1 << iota
	FlagVecEnabled
	FlagTimeEnabled
	FlagAclPresent
	FlagReplayPresent
)

// Frame record flag bits (§4.2). Deletion is tracked in the footer entry,
// not the immutable frame record — see DESIGN.md.
const (
	frameFlagCompressed uint32 = 1 << iota
)

// TOC footer entry flag bits (§3 "TOC footer").
const (
	EntryFlagDeleted uint32 = 1 << iota
	EntryFlagHasVector
	EntryFlagHasAcl
)

// IndexSegmentKind identifies which secondary index a footer segment
// pointer belongs to (§3 "index_segments").
type IndexSegmentKind byte

const (
	SegmentLex IndexSegmentKind = iota + 1
	SegmentTime
	SegmentVec
)

// CloseGrace is a short grace window doctor/vacuum wait before replacing a
// file that may still have lingering cooperating handles on platforms like
// Windows (§5 "Platform note"). It is applied uniformly rather than
// conditioned on GOOS, since a short harmless sleep costs nothing on Unix.
var CloseGrace = 20 * time.Millisecond
