// Package memory implements conversation memory: an ordered, append-only
// sequence of turns bounded by a token-budget eviction policy. Each memory is
// exclusively owned by one session and mutated only through its public API.
package memory
