// Package protocol owns the calculator wire contract and parsing
// primitives.
//
// Ownership boundary:
// - frame variants and their marker bytes
// - incremental frame recognition (Check) and typed decode (Decode)
// - canonical encode (Encode)
//
// Check and Decode form a two-pass pair: Check recognizes a complete frame
// without building it, so partial reads cost no allocation, and Decode
// builds the typed value once the whole frame is present. ErrIncomplete
// means retry after more bytes; ErrMalformed is connection-fatal.
package protocol
