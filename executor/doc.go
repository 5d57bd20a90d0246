// Package executor runs the bounded reasoning loop: model turns interleaved
// with tool executions, accounted against an explicit execution budget and
// narrated through lifecycle events.
package executor
