package nn

import "errors"

// State dict errors. Returned errors wrap one of these and name the key.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrUnexpectedKey    = errors.New("unexpected key")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrDTypeMismatch    = errors.New("dtype mismatch")
)
