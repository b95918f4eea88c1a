package cfb

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category tags every diagnostic the reader can produce. Categories form the
// taxonomy described in the package docs: most are warnings by default and
// can be promoted to fatal via WithPromoted; a handful are always fatal.
type Category int

const (
	NotCFB Category = iota
	InvalidVersion
	InvalidByteOrder
	HeaderCorrupt
	StructureCorrupt
	SectorSizeWarning
	MiniSectorSizeWarning
	CutoffWarning
	DIFATWarning
	MalformedFAT
	MalformedChain
	CycleDetected
	DirectoryWarning
	DirectoryCycle
	StreamSizeMismatch
	StreamClosed
	OutOfRange
)

var categoryNames = map[Category]string{
	NotCFB:                 "NotCFB",
	InvalidVersion:         "InvalidVersion",
	InvalidByteOrder:       "InvalidByteOrder",
	HeaderCorrupt:          "HeaderCorrupt",
	StructureCorrupt:       "StructureCorrupt",
	SectorSizeWarning:      "SectorSizeWarning",
	MiniSectorSizeWarning:  "MiniSectorSizeWarning",
	CutoffWarning:          "CutoffWarning",
	DIFATWarning:           "DIFATWarning",
	MalformedFAT:           "MalformedFAT",
	MalformedChain:         "MalformedChain",
	CycleDetected:          "CycleDetected",
	DirectoryWarning:       "DirectoryWarning",
	DirectoryCycle:         "DirectoryCycle",
	StreamSizeMismatch:     "StreamSizeMismatch",
	StreamClosed:           "StreamClosed",
	OutOfRange:             "OutOfRange",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// alwaysFatal reports categories that are fatal regardless of Options, i.e.
// conditions from which no consistent Container can be built at all.
//
// HeaderCorrupt is deliberately NOT here: every HeaderCorrupt call site
// (the CLSID-non-zero, v3-directory-sector-count, and transaction-signature
// checks in header.go) is a recoverable oddity real writers produce.
// Genuinely unrecoverable structure (no directory entries, missing Root
// Entry) uses StructureCorrupt via d.fatal instead, which bypasses this
// predicate entirely.
func (c Category) alwaysFatal() bool {
	switch c {
	case NotCFB, InvalidVersion, InvalidByteOrder, StructureCorrupt,
		MalformedFAT, MalformedChain, CycleDetected, DirectoryCycle:
		return true
	default:
		return false
	}
}

// Diagnostic is a single warning or error surfaced while reading a
// container. Offset is -1 when no single byte offset applies.
type Diagnostic struct {
	Category Category
	Offset   int64
	Message  string
}

func (d Diagnostic) Error() string {
	if d.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %s", d.Category, d.Offset, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Category, d.Message)
}

// Sink receives every non-fatal diagnostic raised while opening or reading a
// container. The zero Sink (nil) is replaced by DefaultSink.
type Sink func(Diagnostic)

// DefaultSink discards every diagnostic; opening proceeds silently past
// warnings. Callers that want visibility should supply their own Sink (for
// example one that forwards to the standard log package) via WithSink.
func DefaultSink(Diagnostic) {}

// diagnostics is the single point through which every warning or error in
// the reader passes: nothing else in the package calls a Sink directly or
// decides fatality on its own.
type diagnostics struct {
	sink     Sink
	promoted map[Category]bool
}

func newDiagnostics(opts *Options) *diagnostics {
	sink := opts.sink
	if sink == nil {
		sink = DefaultSink
	}
	promoted := make(map[Category]bool, len(opts.promoted))
	for c := range opts.promoted {
		promoted[c] = true
	}
	return &diagnostics{sink: sink, promoted: promoted}
}

// warn emits a recoverable diagnostic. If its category has been promoted (or
// is always fatal), it returns a non-nil error the caller must propagate
// immediately instead of continuing.
func (d *diagnostics) warn(cat Category, offset int64, format string, args ...interface{}) error {
	diag := Diagnostic{Category: cat, Offset: offset, Message: fmt.Sprintf(format, args...)}
	if cat.alwaysFatal() || d.promoted[cat] {
		return errors.WithStack(diag)
	}
	d.sink(diag)
	return nil
}

// fatal constructs and returns an error for a condition that is always
// fatal, regardless of promotion configuration.
func (d *diagnostics) fatal(cat Category, offset int64, format string, args ...interface{}) error {
	diag := Diagnostic{Category: cat, Offset: offset, Message: fmt.Sprintf(format, args...)}
	return errors.WithStack(diag)
}

// wrap attaches additional context to an existing error without losing the
// underlying Diagnostic (if any) so that errors.As(err, *Diagnostic) still
// works after wrapping.
func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
