package epub

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned while parsing or reading a book matches
// exactly one of them with errors.Is. Open reports a file that cannot be
// opened as an archive with the archive package errors instead.
var (
	ErrMissingEntry                = errors.New("missing archive entry")
	ErrMalformedXML                = errors.New("malformed XML")
	ErrMissingRequiredElement      = errors.New("missing required element")
	ErrDuplicateManifestID         = errors.New("duplicate manifest id")
	ErrNoRootfile                  = errors.New("no rootfile declared")
	ErrUnsupportedNavigationFormat = errors.New("unsupported navigation format")
	ErrInconsistentReferences      = errors.New("inconsistent references")
)

// Stage is a state of the parse pipeline.
type Stage int

const (
	StageStart Stage = iota
	StageContainerResolved
	StagePackageParsed
	StageNavigationResolved
	StageAssembled
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageContainerResolved:
		return "container-resolved"
	case StagePackageParsed:
		return "package-parsed"
	case StageNavigationResolved:
		return "navigation-resolved"
	case StageAssembled:
		return "assembled"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Error is a parse failure. Stage is the last state reached before the
// failure; Subject names the offending path, id or element.
type Error struct {
	Stage   Stage
	Kind    error
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg += ": " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(stage Stage, kind error, subject string, cause error) *Error {
	return &Error{Stage: stage, Kind: kind, Subject: subject, Err: cause}
}

// WarningKind classifies a non-fatal condition observed while parsing.
type WarningKind string

const (
	WarnRootfileMediaType  WarningKind = "rootfile-media-type"
	WarnMultipleRenditions WarningKind = "multiple-renditions"
	WarnNoNavigation       WarningKind = "no-navigation"
	WarnMimetype           WarningKind = "mimetype"
	WarnDanglingTocTarget  WarningKind = "dangling-toc-target"
	WarnNCXFallback        WarningKind = "ncx-fallback"
	WarnPrefix             WarningKind = "prefix"
)

// Warning is a tolerated deviation from the EPUB standards.
type Warning struct {
	Kind    WarningKind
	Subject string
	Message string
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}
