// Package session maps opaque session identifiers to isolated conversation
// memories for the lifetime of the process.
package session
