package selector

import "errors"

var (
	// ErrEncoding means a generated token would not fit Telegram's
	// callback_data budget. The menu needs a shorter id.
	ErrEncoding = errors.New("selector: token exceeds callback payload budget")

	// ErrNotFound means a token is unknown, cleared or superseded.
	ErrNotFound = errors.New("selector: unknown token")

	// ErrProtocol means an await cycle gave up after too many invalid
	// payloads. Distinct from ErrTimedOut; the two are never coerced.
	ErrProtocol = errors.New("selector: too many invalid payloads")

	// ErrTimedOut is the normal outcome of an await whose deadline elapsed
	// with no selection. Not a failure.
	ErrTimedOut = errors.New("selector: selection timed out")
)
