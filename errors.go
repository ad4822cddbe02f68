package rulesmith

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the rulesmith package.
var (
	// ErrNoInput is returned when a run finds zero usable feature records.
	ErrNoInput = errors.New("no usable input")

	// ErrUnknownClusterer is returned for an unrecognized clusterer name.
	ErrUnknownClusterer = errors.New("unknown clusterer")

	// ErrEmptyRule is returned when a cluster yields no optional-header
	// content and therefore no emittable rule.
	ErrEmptyRule = errors.New("rule has no optional-header patterns")

	// ErrNotFound is returned when a rule is absent from a store.
	ErrNotFound = errors.New("rule not found")

	// ErrStoreClosed is returned for operations on a closed rule store.
	ErrStoreClosed = errors.New("rule store is closed")

	// ErrLabelMismatch is returned when the label count does not match
	// the table row count.
	ErrLabelMismatch = errors.New("label count does not match row count")
)

// ParseStage identifies where in the header walk a parse failure occurred.
type ParseStage int

const (
	// StageOpen covers opening and reading the file itself.
	StageOpen ParseStage = iota
	// StageFileHeader covers the COFF file header.
	StageFileHeader
	// StageOptionalHeader covers the optional header.
	StageOptionalHeader
	// StageDataDirectory covers the data-directory array.
	StageDataDirectory
	// StageResources covers the resource tree walk.
	StageResources
)

// String returns the stage name used in logs and warnings.
func (s ParseStage) String() string {
	switch s {
	case StageOpen:
		return "open"
	case StageFileHeader:
		return "file header"
	case StageOptionalHeader:
		return "optional header"
	case StageDataDirectory:
		return "data directory"
	case StageResources:
		return "resources"
	default:
		return "unknown"
	}
}

// ParseError describes a recovered failure while decoding one file.
// The pipeline logs these and continues with whatever fields were
// extracted before the failure point.
type ParseError struct {
	Path  string
	Stage ParseStage
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse %s [%s]: %v", e.Stage, e.Path, e.Cause)
	}
	return fmt.Sprintf("parse %s [%s]", e.Stage, e.Path)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// newParseError creates a new ParseError.
func newParseError(path string, stage ParseStage, cause error) *ParseError {
	return &ParseError{Path: path, Stage: stage, Cause: cause}
}

// StoreErrorType categorizes rule store errors.
type StoreErrorType int

const (
	// StoreErrorTypeUnknown is an unclassified store error.
	StoreErrorTypeUnknown StoreErrorType = iota
	// StoreErrorTypeRead indicates a read failure.
	StoreErrorTypeRead
	// StoreErrorTypeWrite indicates a write failure.
	StoreErrorTypeWrite
	// StoreErrorTypeNotFound indicates a missing rule.
	StoreErrorTypeNotFound
	// StoreErrorTypeClosed indicates the store was already closed.
	StoreErrorTypeClosed
)

// StoreError provides detailed information about rule store failures.
type StoreError struct {
	Type  StoreErrorType
	Op    string
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		if e.Cause != nil {
			return fmt.Sprintf("store %s [%s]: %v", e.Op, e.Key, e.Cause)
		}
		return fmt.Sprintf("store %s [%s]", e.Op, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("store %s", e.Op)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for StoreError.
func (e *StoreError) Is(target error) bool {
	switch e.Type {
	case StoreErrorTypeNotFound:
		return target == ErrNotFound
	case StoreErrorTypeClosed:
		return target == ErrStoreClosed
	}
	return false
}

// newStoreError creates a new StoreError.
func newStoreError(errType StoreErrorType, op, key string, cause error) *StoreError {
	return &StoreError{Type: errType, Op: op, Key: key, Cause: cause}
}
