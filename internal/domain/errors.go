package domain

import "errors"

var (
	// ErrNotFound covers unknown short codes, unknown rows and unresolvable
	// place input alike; callers map it to a user-facing miss.
	ErrNotFound = errors.New("not found")

	// ErrExhaustedRetries means the short-code generator drew only taken
	// codes on every attempt. Fatal for that one request.
	ErrExhaustedRetries = errors.New("short code generation exhausted retries")

	// ErrDuplicateCode is the storage layer's report of a unique-key
	// violation on short_code. The pre-insert existence check is only an
	// optimization; this error is the true collision signal.
	ErrDuplicateCode = errors.New("short code already taken")
)
