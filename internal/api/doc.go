// Package api hosts the HTTP handlers that front the VidTube engagement API.
//
// Handlers decode path, query and body parameters, resolve the acting user
// placed in the request context by the server's auth middleware, and delegate
// to the engagement engine, feed and statistics aggregators and the content
// service. Every response, successful or not, uses the Envelope shape.
//
// Handler implementations assume upstream middleware from internal/server has
// already resolved the session, applied rate limits and recorded metrics and
// logs. Operations that require a signed-in user enforce that themselves by
// returning an Unauthorized error, so routes never need per-path auth rules.
package api
