package identity

// BuildError reports that tokens could not be exchanged for a Session.
// Reason is passed to the caller verbatim.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *BuildError) Unwrap() error { return e.Err }
