package pretrained

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrAttribute  = errors.New("no such sub-module")
	ErrMissingKey = errors.New("missing key in checkpoint")
)

// AttributeError reports a dotted path that does not resolve to a sub-module.
type AttributeError struct {
	Path    string // full dotted path requested
	Segment string // first segment that failed to resolve
	Parent  string // path of the module the segment was looked up in; "" for the root
}

// Error implements the error interface.
func (e *AttributeError) Error() string {
	parent := e.Parent
	if parent == "" {
		parent = "model"
	}
	return fmt.Sprintf("%v: %q has no sub-module %q (resolving %q)", ErrAttribute, parent, e.Segment, e.Path)
}

// Unwrap returns ErrAttribute.
func (e *AttributeError) Unwrap() error {
	return ErrAttribute
}

// MissingKeyError reports target keys absent from the checkpoint when
// missing keys are not tolerated.
type MissingKeyError struct {
	Prefix string   // key prefix of the target
	Keys   []string // fully qualified checkpoint keys, sorted
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	const shown = 5
	keys := e.Keys
	suffix := ""
	if len(keys) > shown {
		suffix = fmt.Sprintf(" (and %d more)", len(keys)-shown)
		keys = keys[:shown]
	}
	return fmt.Sprintf("%v: %s%s", ErrMissingKey, strings.Join(keys, ", "), suffix)
}

// Unwrap returns ErrMissingKey.
func (e *MissingKeyError) Unwrap() error {
	return ErrMissingKey
}
