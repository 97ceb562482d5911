// Package httpmw provides the gin middleware stages of the HTTP pipeline.
//
// Stages are composed in a fixed order by api.NewRouter: security headers,
// request ID, CORS, metrics, error handling, rate limiting, compression, request
// logging, body parsing, sanitization and panic recovery, followed by the
// routes and the 404 fallback. No stage writes an error response itself;
// failures are forwarded with c.Error for response.ErrorHandler to render.
package httpmw
