// Package middleware holds the Echo middleware of the service: request
// ids, the request-scoped logger, New Relic tracing, Clerk auth for the
// model API, per-IP rate limiting, and the global error handler.
package middleware
