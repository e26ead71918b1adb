// Package server hosts the vidtube API behind a single HTTP server.
//
// Every route shares one middleware chain: request ids, request logging,
// metrics, security headers, CORS, a global rate limit, session
// authentication, audit logging and a per-caller throttle on writes.
package server
