package processing

// TransformationError signals that processing of the current rule must
// halt. It is raised deliberately by transformations that flag a rule
// construct as unsupported; the enclosing pipeline propagates it to the
// caller without retrying.
type TransformationError struct {
	Message string
}

// NewTransformationError creates a TransformationError with the given message.
func NewTransformationError(message string) *TransformationError {
	return &TransformationError{Message: message}
}

func (e *TransformationError) Error() string {
	return e.Message
}
