package datasource

import "fmt"

// TransportError wraps a failure to reach the backend or a rejection by it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError wraps a response whose shape could not be interpreted.
type ValidationError struct {
	Resource string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %v", e.Resource, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
