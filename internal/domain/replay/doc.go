// Package replay issues a modified copy of the captured progress request.
//
// Trigger behaves by phase:
//   - Locked: resets the session to Idle, no network call.
//   - Captured: asks the media probe for a duration, builds a body with a
//     synthesized watched-seconds series and a completion marker, filters the
//     captured headers, and POSTs once to the progress endpoint with the
//     shared cookie jar. Success locks the session, dismisses the overlay and
//     schedules a reload; any failure leaves the session Captured.
//   - Idle: nothing to replay.
//
// Only one replay may be in flight; a concurrent Trigger fails with
// ErrReplayInFlight instead of issuing a second request.
package replay
