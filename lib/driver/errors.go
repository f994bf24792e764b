package driver

// Error is raised by every Client method. It is deliberately separate
// from compileerr.CompileError: a driver failure is an execution-time
// problem with the external document store, not a defect in the
// compiled pipeline.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
