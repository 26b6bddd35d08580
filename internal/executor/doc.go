// Package executor runs GraphQL operations against a schema.Schema through a
// pluggable Runtime.
//
// Execution is breadth-first. Fields whose definition has Async set are
// queued while a depth is walked; all of them are resolved by one
// BatchResolveAsync call before the next depth starts. Other fields are
// resolved on the spot with ResolveSync. For generated API schemas this means
// every root operation field of a request is dispatched in one batch and the
// decoded responses are then projected without further I/O.
//
// Completion follows the usual GraphQL rules: lists are completed item by
// item, leaves go through Runtime.SerializeLeafValue, and a null in a
// Non-Null position nulls the nearest nullable ancestor. Errors are collected
// with their response path and never abort sibling fields.
//
// If the request context ends between depths, the remaining queued fields
// fail with the context error instead of being dispatched.
package executor
