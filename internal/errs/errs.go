// Package errs defines HTTPError, the single error shape every API
// response uses, along with constructors for the statuses the service
// returns (400, 401, 403, 404, 409, 422, 429, 500).
package errs
