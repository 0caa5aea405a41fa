// Package utils provides shared low-level helpers used throughout the sonora
// internals: a forgiving string-to-value parser, a JSON stringifier, and a
// simple elapsed-time timer.
//
// Key entry points: [ParseStringAs] for parsing primitives or JSON payloads
// (repairing malformed JSON before giving up), [ToString] for dumping a value
// as JSON for diagnostics, and [Timer] for measuring latency.
package utils
