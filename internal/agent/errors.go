package agent

import "fmt"

// SchemaValidationError is returned when an agent's final answer does not
// match its output schema.
type SchemaValidationError struct {
	Agent  string
	Detail string
}

func (e SchemaValidationError) Error() string {
	return fmt.Sprintf("agent %s: final output failed schema validation: %s", e.Agent, e.Detail)
}

// TurnBudgetError is returned when an agent is still calling tools after its
// last allowed turn.
type TurnBudgetError struct {
	Agent    string
	MaxTurns int
}

func (e TurnBudgetError) Error() string {
	return fmt.Sprintf("agent %s: no final output within %d turns", e.Agent, e.MaxTurns)
}
