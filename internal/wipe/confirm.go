package wipe

import "strings"

// ConfirmationToken is the literal an operator types to confirm an erase.
const ConfirmationToken = "DELETE"

// ConfirmationDecision is what the operator submitted in the confirm dialog.
// It is never persisted.
type ConfirmationDecision struct {
	TypedText    string
	Acknowledged bool
}

// Armed proves that a confirmation passed the gate. Only Validate can produce
// a usable token; the zero value is not armed.
type Armed struct {
	armed bool
}

// IsArmed reports whether the token was issued by Validate.
func (a Armed) IsArmed() bool {
	return a.armed
}

// Validate approves the decision when the typed text normalizes to DELETE
// or the acknowledgement box is checked. Either condition alone suffices.
func Validate(decision ConfirmationDecision) (Armed, error) {
	if normalizeConfirmation(decision.TypedText) == ConfirmationToken || decision.Acknowledged {
		return Armed{armed: true}, nil
	}
	return Armed{}, ErrInsufficientConfirmation
}

func normalizeConfirmation(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
