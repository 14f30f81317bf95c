package llm

import "fmt"

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}

// ErrRequestFailed is returned when the completion endpoint answers with a
// non-success status.
type ErrRequestFailed struct {
	Status     string
	StatusCode int
	Detail     string
}

func (e ErrRequestFailed) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("LLM request failed: %s", e.Status)
	}
	return fmt.Sprintf("LLM request failed: %s: %s", e.Status, e.Detail)
}

// Retryable reports whether the provider signalled a transient condition.
func (e ErrRequestFailed) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
