package game

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration            = errors.New("invalid configuration")
	ErrContractViolation        = errors.New("strategy contract violation")
	ErrAggregationInconsistency = errors.New("aggregation inconsistency")
)

// ConfigErrorf wraps ErrConfiguration with a formatted reason.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ContractViolationError reports a strategy that emitted something other than
// Cooperate or Defect.
type ContractViolationError struct {
	Strategy string
	Side     string
	Round    int
	Action   Action
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: strategy %s (side %s) returned %s at round %d",
		ErrContractViolation, e.Strategy, e.Side, e.Action, e.Round)
}

func (e *ContractViolationError) Unwrap() error {
	return ErrContractViolation
}
