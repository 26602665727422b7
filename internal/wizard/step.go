package wizard

import (
	dErrors "handover/pkg/domain-errors"
)

// Step is one stage of the onboarding wizard.
type Step string

const (
	StepCustomer  Step = "customer"
	StepItems     Step = "items"
	StepDocuments Step = "documents"
	StepReview    Step = "review"
	StepSend      Step = "send"
)

// Steps lists the wizard stages in order.
var Steps = []Step{StepCustomer, StepItems, StepDocuments, StepReview, StepSend}

func (s Step) String() string { return string(s) }

// Index is the zero-based position of s, or -1 for an unknown step.
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

func (s Step) IsValid() bool { return s.Index() >= 0 }

// Next returns the following step. The send step has none.
func (s Step) Next() (Step, bool) {
	i := s.Index()
	if i < 0 || i == len(Steps)-1 {
		return "", false
	}
	return Steps[i+1], true
}

// IsTerminal reports whether no transition leaves s.
func (s Step) IsTerminal() bool { return s == StepSend }

func ParseStep(raw string) (Step, error) {
	s := Step(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown wizard step "+raw)
	}
	return s, nil
}
