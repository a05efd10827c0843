package invoke

import "errors"

var (
	// ErrUnknownTool means the tool has no registered descriptor. This is
	// a configuration error, never retried or deferred.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidParameters means the caller supplied parameters that
	// cannot be canonically serialized or fail tool validation.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrLocalTimeout means a local execution exceeded its deadline. For
	// medium and complex tiers it triggers fallback; for simple it is
	// surfaced directly.
	ErrLocalTimeout = errors.New("local execution timed out")

	// ErrJobFailed means a deferred job exhausted its retry attempts.
	ErrJobFailed = errors.New("job failed permanently")
)
