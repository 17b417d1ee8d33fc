// Package http provides the timer control API handlers and middleware.
//
// The router exposes the following endpoints:
//   - POST /timer/start: starts the caller's timer, resuming a paused session
//     when one exists. Response: {"session","draft","elapsedTime","created","resumed"}.
//   - POST /timer/pause: pauses or resumes depending on "isPausing". Body:
//     {"sessionId","elapsedTime","isPausing"}. Response: {"success","paused","elapsedTime"}.
//   - GET /timer/session: the caller's session with server-computed elapsed
//     time and draft comment, or {"session":null} when idle.
//   - POST /timer/reset: deletes the session and its draft. Identifiers ride
//     on the `user-id`, `session-id` and `draft-id` headers.
//   - POST /timer/soft-reset: deletes the session, keeping the draft. Body:
//     {"sessionId","draftId"}.
//   - POST /timer/finalize: writes task metadata onto the draft and marks it
//     complete. Body: {"draftId","taskName",...}. Response: {"success","data"}.
//   - GET /time-entries, POST /time-entries/add, GET/DELETE /time-entries/{id}:
//     entry management exchanging the `entryDTO` payload in entry_handler.go.
//   - GET /tasks?boardId=&searchTerm=, GET /boards?ids=: task directory
//     lookups proxied to the project-management API.
//   - GET /healthz, GET /metrics: liveness and Prometheus exposition; exempt
//     from identity resolution.
//
// Every other endpoint requires the `platform-context` identity header,
// resolved to a principal by the ResolveIdentity middleware.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
