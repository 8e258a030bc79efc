// Package calc owns the calculator service runtime: the admission-bounded
// accept loop, one-exchange connection handlers, the dialing client, and
// the optional admin surface.
//
// Ownership boundary:
// - permit pool admission and accept backoff policy
// - handler lifecycle (one request frame in, one OpResult out)
// - client dial and request helpers
// - admin HTTP surface (health, ready, stats, metrics)
//
// Lifecycle notes: there is no graceful drain or shutdown coordination;
// Run blocks until a fatal listener error. Handlers impose no read or
// write deadlines, so a silent peer holds its permit until its stream
// errors.
package calc
