package ledger

// Bridge for the external test package.
var DurationMs = durationMs
