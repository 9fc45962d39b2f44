package errors

import "strings"

// retryableCodes are transient by nature: the same call may succeed later
// without operator intervention.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransport:    true,
	ErrCodeDatabase:     true,
	ErrCodeNoValidPrice: true,
}

// IsRetryable reports whether the error is worth retrying. Typed errors are
// classified by code; untyped errors fall back to pattern matching on common
// transient failure strings.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var oerr *OracleError
	if As(err, &oerr) {
		return retryableCodes[oerr.Code]
	}

	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"database is locked",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
