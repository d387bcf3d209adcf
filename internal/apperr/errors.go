// Package apperr defines the error categories of a pipeline run and maps
// technical errors to user-facing messages with support codes.
//
// Categories:
//
//   - ConfigError: bad options or missing input files. Raised before any data
//     is read.
//   - ReadError: an input file could not be read or parsed.
//   - ProcessingError: a pipeline stage failed in a way that leaves no usable
//     data (join, grouping, unexpected validation failure).
//
// Validation findings such as duplicate barcodes are not errors; they are
// reported by the validate package together with corrected data.
package apperr

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid run options.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ReadError reports a file that could not be read into a table.
type ReadError struct {
	File  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("Unable to read file %s: %v", e.File, e.Cause)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}

// ProcessingError reports a fatal failure inside a pipeline stage.
type ProcessingError struct {
	Stage string
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Configf builds a ConfigError with a formatted message.
func Configf(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// Read wraps cause as a ReadError for file. A nil cause returns nil.
func Read(file string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ReadError{File: file, Cause: cause}
}

// Processing wraps cause as a ProcessingError for stage. A nil cause
// returns nil.
func Processing(stage string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ProcessingError{Stage: stage, Cause: cause}
}

// Kind names the category of err: "config", "read", "processing" or
// "internal".
func Kind(err error) string {
	var (
		ce *ConfigError
		re *ReadError
		pe *ProcessingError
	)
	switch {
	case errors.As(err, &ce):
		return "config"
	case errors.As(err, &re):
		return "read"
	case errors.As(err, &pe):
		return "processing"
	default:
		return "internal"
	}
}

// ExitCode returns the process exit status for err: 0 for nil, 2 for
// configuration problems and 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if Kind(err) == "config" {
		return 2
	}
	return 1
}
