package events

import "time"

// GraphQLStart precedes the execution of one operation of a request.
type GraphQLStart struct {
	Query         string
	OperationName string
	// OperationType is query or mutation, empty when the document does not
	// name a unique operation.
	OperationType string
}

// GraphQLFinish follows it. Errors holds the field and request errors of the
// result.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}
