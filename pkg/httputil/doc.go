// Package httputil provides the JSON response helpers and middleware used by
// the plugin inspection API.
//
// Every error body has the same shape and carries the request ID assigned by
// RequestIDMiddleware:
//
//	{"error": "unknown spec \"foo\"", "request_id": "6f1c..."}
//
// Middleware is composed with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(log),
//		httputil.RecoveryMiddleware(log),
//	)(router)
package httputil
