package session

import "fmt"

// Status is the session lifecycle status.
type Status string

const (
	StatusStarted   Status = "started"
	StatusQuoted    Status = "quoted"
	StatusSelected  Status = "selected"
	StatusKYCPassed Status = "kyc_passed"
	StatusAccepted  Status = "accepted"
	StatusPaid      Status = "paid"
	StatusIssued    Status = "issued"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// stages is the ordered progression of a healthy session. Transitions may
// move forward any number of stages but never backward.
var stages = []Status{
	StatusStarted,
	StatusQuoted,
	StatusSelected,
	StatusKYCPassed,
	StatusAccepted,
	StatusPaid,
	StatusIssued,
	StatusCompleted,
}

var stageIndex = func() map[Status]int {
	m := make(map[Status]int, len(stages))
	for i, s := range stages {
		m[s] = i
	}
	return m
}()

// TransitionError is a structured error for a rejected status transition.
type TransitionError struct {
	From    Status `json:"from"`
	To      Status `json:"to"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string { return e.Message }

// Terminal reports whether a status admits no further transitions.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidateTransition checks whether a session may move from one status to
// another. Same-status is a no-op and allowed; failed is reachable from any
// non-terminal status; otherwise the transition must move forward through the
// stage order.
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if Terminal(from) {
		return &TransitionError{From: from, To: to,
			Message: fmt.Sprintf("session is %s; no further transitions allowed", from)}
	}
	if to == StatusFailed {
		return nil
	}

	fromIdx, ok := stageIndex[from]
	if !ok {
		return &TransitionError{From: from, To: to, Message: fmt.Sprintf("unknown session status %q", from)}
	}
	toIdx, ok := stageIndex[to]
	if !ok {
		return &TransitionError{From: from, To: to, Message: fmt.Sprintf("unknown session status %q", to)}
	}
	if toIdx < fromIdx {
		return &TransitionError{From: from, To: to,
			Message: fmt.Sprintf("cannot move session backward from %s to %s", from, to)}
	}
	return nil
}
