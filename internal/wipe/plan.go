package wipe

import (
	"fmt"
	"strings"
)

// EraseMethod is the operator's choice of erase strength.
type EraseMethod string

const (
	MethodQuick  EraseMethod = "quick"
	MethodSecure EraseMethod = "secure"
)

// SecurePassCount is the number of overwrite passes of a Secure erase
// (DoD 5220.22-M: random, zeros, random).
const SecurePassCount = 3

// ParseEraseMethod maps "quick" or "secure" (any case) to an EraseMethod.
func ParseEraseMethod(s string) (EraseMethod, error) {
	switch EraseMethod(strings.ToLower(strings.TrimSpace(s))) {
	case MethodQuick:
		return MethodQuick, nil
	case MethodSecure:
		return MethodSecure, nil
	default:
		return "", fmt.Errorf("unknown erase method: %q", s)
	}
}

// Description returns the operator-facing explanation of the method.
func (m EraseMethod) Description() string {
	switch m {
	case MethodSecure:
		return "Multiple overwrite passes, maximum security"
	default:
		return "Single overwrite pass, faster but less secure"
	}
}

// Pattern is the data written during one overwrite pass.
type Pattern string

const (
	PatternRandom Pattern = "random"
	PatternZero   Pattern = "zero"
)

// Phase labels shared by every plan.
const (
	LabelInitialize = "Initializing secure erase"
	LabelVerify     = "Verifying erasure"
	LabelFinalize   = "Finalizing secure wipe"
)

// BookendPhases is the number of non-overwrite phases in every plan
// (initialize, verify, finalize).
const BookendPhases = 3

// ErasePlan is the resolved, ordered list of phases an erase will run.
// PassLabels covers every phase the tracker reports:
// len(PassLabels) == PassCount + BookendPhases.
type ErasePlan struct {
	Method     EraseMethod `json:"method" yaml:"method" toml:"method"`
	PassCount  int         `json:"pass_count" yaml:"pass_count" toml:"pass_count"`
	PassLabels []string    `json:"pass_labels" yaml:"pass_labels" toml:"pass_labels"`
	Patterns   []Pattern   `json:"patterns" yaml:"patterns" toml:"patterns"`
}

// Resolve turns a method into its plan. It is pure: every call returns an
// equal plan backed by freshly allocated slices.
func Resolve(method EraseMethod) ErasePlan {
	var patterns []Pattern
	switch method {
	case MethodSecure:
		patterns = []Pattern{PatternRandom, PatternZero, PatternRandom}
	default:
		method = MethodQuick
		patterns = []Pattern{PatternRandom}
	}

	labels := make([]string, 0, len(patterns)+BookendPhases)
	labels = append(labels, LabelInitialize)
	for i := range patterns {
		labels = append(labels, fmt.Sprintf("Overwriting data (pass %d of %d)", i+1, len(patterns)))
	}
	labels = append(labels, LabelVerify, LabelFinalize)

	return ErasePlan{
		Method:     method,
		PassCount:  len(patterns),
		PassLabels: labels,
		Patterns:   patterns,
	}
}

// PhaseCount returns the number of phases the plan reports progress for.
func (p ErasePlan) PhaseCount() int {
	return len(p.PassLabels)
}

// Clone returns a deep copy so snapshots never share backing arrays.
func (p ErasePlan) Clone() ErasePlan {
	c := p
	c.PassLabels = append([]string(nil), p.PassLabels...)
	c.Patterns = append([]Pattern(nil), p.Patterns...)
	return c
}
