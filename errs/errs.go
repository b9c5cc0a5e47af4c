// Package errs defines the memvid error taxonomy shared across container,
// index, query, doctor and verify so callers can branch on error kind with
// errs.Is (or errors.As to an *Error) regardless of which subsystem raised it.
package errs

import "fmt"

// Kind classifies an Error so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidHeader
	KindInvalidFooter
	KindInvalidFrame
	KindWalCorrupt
	KindUnsupportedVersion
	KindLocked
	KindIO
	KindQuerySyntax
	KindExtractionFailed
	KindAclDenied
	KindUnrecoverable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidHeader:
		return "invalid_header"
	case KindInvalidFooter:
		return "invalid_footer"
	case KindInvalidFrame:
		return "invalid_frame"
	case KindWalCorrupt:
		return "wal_corrupt"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindLocked:
		return "locked"
	case KindIO:
		return "io"
	case KindQuerySyntax:
		return "query_syntax"
	case KindExtractionFailed:
		return "extraction_failed"
	case KindAclDenied:
		return "acl_denied"
	case KindUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by memvid's subsystems.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "container.Open"
	Path string // file path involved, if any
	Err  error  // wrapped cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Path != "":
		return fmt.Sprintf("memvid: %s: %s (%s): %v", e.Op, e.Kind, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("memvid: %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Path != "":
		return fmt.Sprintf("memvid: %s: %s (%s)", e.Op, e.Kind, e.Path)
	default:
		return fmt.Sprintf("memvid: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error without a wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an Error wrapping cause, optionally tagged with a path.
func Wrap(kind Kind, op string, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if me, ok := err.(*Error); ok {
			e = me
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
