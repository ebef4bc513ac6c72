// Package httpserver exposes the service directory over HTTP for
// clients that cannot speak the relay protocol directly.
//
// The server wires standard health endpoints (/livez, /readyz, /drain,
// /undrain), optional pprof, and the directory API registered through
// the RouteRegistrar interface. Responses reflect the directory's
// best-effort semantics: an empty service list is a valid answer, and a
// publish where no relay accepted reports 502 with the full outcome.
package httpserver
