package environment

import (
	"errors"
	"fmt"
)

// Fatal error categories for environment resolution. Every fatal condition
// wraps one of these so callers can classify failures with errors.Is.
// Not-found failures from the loaders and the defaults record propagate the
// underlying fs.ErrNotExist chain unchanged.
var (
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrMutualExclusion = errors.New("mutually exclusive inputs")
	ErrMissingRequired = errors.New("missing required input")
	ErrUnknownCategory = errors.New("unknown result category")
)

// typeVal renders a value the way error messages report it: observed type,
// then value.
func typeVal(v any) string {
	return fmt.Sprintf("%T: %v", v, v)
}

func typeMismatch(what string, want string, got any) error {
	return fmt.Errorf("%w: %s must be %s, received %s", ErrTypeMismatch, what, want, typeVal(got))
}
