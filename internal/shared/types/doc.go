// Package types provides shared data structures for the service.
//
// Core Types:
//   - ExecutionResult: structured outcome of a script run
//   - Instance: a discovered CAD instance
//   - Property: a property definition from one instance
//   - CommandDoc: one entry of the command reference
package types
