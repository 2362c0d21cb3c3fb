package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks fatal setup failures: bad input directory,
	// unusable output directory, backend initialization failure. A run never
	// starts processing after one of these.
	ErrConfiguration = errors.New("configuration error")
	// ErrDecode marks a source image that could not be read or parsed.
	ErrDecode = errors.New("decode error")
	// ErrTransform marks a backend invocation that failed or returned
	// unusable data.
	ErrTransform = errors.New("transform error")
	// ErrWrite marks a destination that could not be created or written.
	ErrWrite = errors.New("write error")
)

// FailureKind identifies the class of a per-item failure for reporting and
// journaling.
type FailureKind string

const (
	FailureConfiguration FailureKind = "configuration"
	FailureDecode        FailureKind = "decode"
	FailureTransform     FailureKind = "transform"
	FailureWrite         FailureKind = "write"
	FailureUnknown       FailureKind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransform
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure kind using the sentinel markers.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureUnknown
	case errors.Is(err, ErrConfiguration):
		return FailureConfiguration
	case errors.Is(err, ErrDecode):
		return FailureDecode
	case errors.Is(err, ErrWrite):
		return FailureWrite
	case errors.Is(err, ErrTransform):
		return FailureTransform
	default:
		return FailureUnknown
	}
}

// IsFatal reports whether the error should abort the run before any item
// processing, as opposed to being recorded against a single item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
