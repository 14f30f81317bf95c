package tools

import "fmt"

// TransportError is a failed call to the data-access backend. Message carries
// the backend's {error} text when one was returned.
type TransportError struct {
	Tool       string
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Tool, e.StatusCode, e.Message)
}

// InputError rejects a call whose required arguments are missing.
type InputError struct {
	Tool    string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}
