package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidEntryID  = errors.New("invalid entry ID")
	ErrEmptyVector     = errors.New("vector cannot be empty")
	ErrInvalidDistance = errors.New("distance must be >= 0")
	ErrMissingFileInfo = errors.New("file info is required")
	ErrEmptyContent    = errors.New("content cannot be empty")
)

// Pipeline errors
var (
	// ErrConfiguration is matched by every *ConfigurationError
	ErrConfiguration = errors.New("invalid configuration")

	// ErrIndex is matched by every *IndexError
	ErrIndex = errors.New("index failure")

	// ErrGenerationUnavailable marks the degraded mode where no generation
	// credential is configured. It is not surfaced to users as a failure.
	ErrGenerationUnavailable = errors.New("generation unavailable: no API key configured")

	// ErrGeneration is matched by every *GenerationFailure
	ErrGeneration = errors.New("generation failed")
)

// ConfigurationError reports an invalid parameter, such as chunk overlap >= window
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// IndexError wraps a store or embedding-provider failure during upsert or query
type IndexError struct {
	Op  string // "upsert", "query", "embed", "stats", "reset"
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIndex
func (e *IndexError) Is(target error) bool {
	return target == ErrIndex
}

// GenerationFailure wraps a transport or model error while streaming an answer
type GenerationFailure struct {
	Err error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrGeneration
func (e *GenerationFailure) Is(target error) bool {
	return target == ErrGeneration
}

// ScanPartialFailure records a path the scanner or reader skipped. It is
// collected into summaries and never aborts an ingestion pass.
type ScanPartialFailure struct {
	Path   string
	Reason string
}

func (e *ScanPartialFailure) Error() string {
	return fmt.Sprintf("skipped %s: %s", e.Path, e.Reason)
}
