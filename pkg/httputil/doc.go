// Package httputil provides the JSON response helpers and HTTP middleware
// shared by the creditmeter API.
//
// Every error response has the shape {"error": "<public message>"}:
//
//	httputil.WriteBadRequest(w, "window must be 7 or 30")
//	httputil.WriteInternalError(w)
//
// Middleware composes with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
//	)(router)
package httputil
