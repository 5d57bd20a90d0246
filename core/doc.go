// Package core provides the foundational domain types shared across datachat.
// It defines the core abstractions for:
//
//   - Content (role-based conversational messages built from typed parts)
//   - LifecycleEvent (immutable run progress/failure notifications)
//   - ExecutionBudget (retry and iteration limits bounding a run)
//
// The package intentionally keeps implementation concerns (the executor loop,
// tool execution, transport) out of scope so that every other package can
// depend on it without cycles.
package core
