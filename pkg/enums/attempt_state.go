package enums

import "fmt"

// AttemptState tracks a payment attempt against the redirect gateway.
type AttemptState string

const (
	AttemptStateCreated             AttemptState = "created"
	AttemptStateAwaitingGateway     AttemptState = "awaiting_gateway"
	AttemptStateReturnedProvisional AttemptState = "returned_provisional"
	AttemptStateSettled             AttemptState = "settled"
	AttemptStateFailed              AttemptState = "failed"
	AttemptStateExpired             AttemptState = "expired"
)

var validAttemptStates = []AttemptState{
	AttemptStateCreated,
	AttemptStateAwaitingGateway,
	AttemptStateReturnedProvisional,
	AttemptStateSettled,
	AttemptStateFailed,
	AttemptStateExpired,
}

// String implements fmt.Stringer.
func (s AttemptState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AttemptState.
func (s AttemptState) IsValid() bool {
	for _, candidate := range validAttemptStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt can never transition again.
func (s AttemptState) IsTerminal() bool {
	return s == AttemptStateSettled || s == AttemptStateFailed || s == AttemptStateExpired
}

// ParseAttemptState converts raw input into an AttemptState.
func ParseAttemptState(value string) (AttemptState, error) {
	for _, candidate := range validAttemptStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attempt state %q", value)
}
