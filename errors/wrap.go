package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain assignable to target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// CodeOf extracts the oracle error code from err's chain, or "" when the
// chain carries no OracleError.
func CodeOf(err error) ErrorCode {
	var oerr *OracleError
	if errors.As(err, &oerr) {
		return oerr.Code
	}
	return ""
}

// IsCode reports whether err's chain carries an OracleError with the code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
