// Package handler is the HTTP layer that sits right after the router.
//
// Besides the system endpoints (health, docs) it hosts the model API
// adapter: NewPagesRouteHandler turns a crud.RequestHandler into an Echo
// catch-all route and translates its result into the HTTP response.
package handler
