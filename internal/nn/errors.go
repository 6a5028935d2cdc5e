package nn

import "github.com/pkg/errors"

// ErrInvalidConfig is wrapped by every construction error caused by invalid
// hyperparameters. Test for it with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}
