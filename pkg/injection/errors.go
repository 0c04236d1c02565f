package injection

import "fmt"

// ExternalServiceError indicates a failed interaction with the generation
// service: transport failure, non-success status, or an unusable response
// body. The adapter absorbs these errors into its fallback path; they
// never escape a node transform.
type ExternalServiceError struct {
	URL     string
	Message string
	Cause   error
}

func (e *ExternalServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation service %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("generation service %s: %s", e.URL, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExternalServiceError) Unwrap() error {
	return e.Cause
}
