package config

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a load failure.
type ErrorKind string

// Error kinds.
const (
	KindNotFound      ErrorKind = "not_found"
	KindInvalidConfig ErrorKind = "invalid_config"
)

// OpError wraps a config failure with the operation, file and field.
type OpError struct {
	Op    string
	Kind  ErrorKind
	Path  string // optional
	Field string // optional
	Err   error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Field != "" {
		base += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an OpError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}

func invalidField(path, field, msg string) error {
	return &OpError{
		Op:    "config.map_run",
		Kind:  KindInvalidConfig,
		Path:  path,
		Field: field,
		Err:   errors.New(msg),
	}
}
