// Package httpserver implements the HTTP application using the Echo framework.
//
// Routes: GET /health_check and POST /subscriptions, nothing else. Handler
// errors are classified by internal/platform/errors and answered with an
// empty body by ErrorHandlingMiddleware.
package httpserver
