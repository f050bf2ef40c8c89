package models

// ErrorKind classifies a submission failure so the UI can attach the right
// remediation hint.
type ErrorKind string

const (
	ErrKindValidation     ErrorKind = "validation"
	ErrKindConnectivity   ErrorKind = "connectivity"
	ErrKindAuthentication ErrorKind = "authentication"
	ErrKindServer         ErrorKind = "server"
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindNetwork        ErrorKind = "network"
)

// ClassifiedError is an error with a user-facing classification attached.
type ClassifiedError struct {
	Kind    ErrorKind
	Message string
}

func (e *ClassifiedError) Error() string {
	return e.Message
}

// Hint returns a short, category-specific remediation suggestion.
func (e *ClassifiedError) Hint() string {
	switch e.Kind {
	case ErrKindValidation:
		return "Check that the URL is a valid YouTube video link."
	case ErrKindConnectivity:
		return "Could not reach the progress channel. Check your connection and try again."
	case ErrKindAuthentication:
		return "Sign in with Google and try again."
	case ErrKindTimeout:
		return "The request timed out. Try a shorter video or try again later."
	case ErrKindNetwork:
		return "No response from the server. Check your connection."
	default:
		return "Try again later."
	}
}

// NewError builds a ClassifiedError.
func NewError(kind ErrorKind, message string) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: message}
}
