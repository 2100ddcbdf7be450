package reservation

// ValidationError rejects a request before any transaction is opened.
// Reason overrides the default "is required" wording for inputs that are
// present but unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Field + " " + e.Reason
	}
	return e.Field + " is required"
}

// StoreError marks a transient store failure. The whole call is safe to
// retry: a failed attempt leaves no partial row behind.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
