package utils

// API error codes returned in the "code" field of error payloads. Grouped by
// the HTTP status they accompany.
const (
	ErrorInvalidRequestBody = 40000
	ErrorInvalidInterval    = 40001
	ErrorMissingRunId       = 40002

	ErrorNoActiveRun = 40400

	ErrorRunConflict = 40900

	ErrorInternal = 50000
)
