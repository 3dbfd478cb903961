package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDetectionTimeout is the only condition that aborts a detection run.
	ErrDetectionTimeout = errors.New("detection timed out")
	ErrScriptNotFound   = errors.New("script not found")
)

// ParseError reports that static extraction could not parse a script.
// Detection continues with the dynamic scan.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parsing %s: line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("parsing %s: %s", e.Path, e.Reason)
}

type DetectionTimeoutError struct {
	Script  string
	Timeout time.Duration
}

func (e *DetectionTimeoutError) Error() string {
	return fmt.Sprintf("detecting %s: no result after %s", e.Script, e.Timeout)
}

func (e *DetectionTimeoutError) Unwrap() error { return ErrDetectionTimeout }

// CacheCorruptionError marks a cache entry that cannot be decoded.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// InterpreterUnreachableError means the target interpreter could not be run.
type InterpreterUnreachableError struct {
	Interpreter string
	Err         error
}

func (e *InterpreterUnreachableError) Error() string {
	return fmt.Sprintf("interpreter %s unreachable: %v", e.Interpreter, e.Err)
}

func (e *InterpreterUnreachableError) Unwrap() error { return e.Err }
