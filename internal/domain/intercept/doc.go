// Package intercept decorates the page's HTTP client so every outgoing
// request is inspected before it reaches the network.
//
// Requests whose path matches /videos/<digits>/progress are the only ones
// treated specially:
//   - Idle: the request's headers and body are captured into the session,
//     then the request is forwarded.
//   - Locked: the request is not forwarded; a synthetic 200 "{}" response is
//     returned after a short delay so async callers still complete.
//   - Otherwise: forwarded unchanged.
//
// The Interceptor is an http.RoundTripper injected at client construction,
// so tests swap the next transport for a fake instead of patching globals.
//
// Example Usage:
//
//	client := &http.Client{Transport: intercept.New(http.DefaultTransport, machine)}
//	h := intercept.NewHandle(client)
//	h.Open("POST", "https://api.example.test/videos/42/progress/")
//	h.SetHeader("X-CSRFToken", token)
//	h.Send(ctx, body)
package intercept
