// Package api exposes creditmeter over HTTP.
//
// All application routes live under /api. Signup and login routes are rate
// limited per client IP; every other route except the Stripe webhook
// requires a bearer session token. The authenticated user id is read from
// the request context and passed explicitly to the engines.
//
// Errors are written as {"error": "<message>"}. Engine sentinel errors map to
// status codes in writeError; anything unrecognised becomes a generic 500 and
// the cause is logged, never returned.
package api
