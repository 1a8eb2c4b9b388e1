package tasks

import "github.com/sadopc/shiftops/internal/store"

// Outcome is the result of a state-machine operation. Only OutcomeOK means the
// requested change happened; every other value is a normal, expected answer.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeAlreadyTaken   Outcome = "already_taken"
	OutcomeNotClaimant    Outcome = "not_claimant"
	OutcomeNotInterrupted Outcome = "not_interrupted"
	OutcomeMismatch       Outcome = "mismatch"
	OutcomeNotVerified    Outcome = "not_verified"
	OutcomeMissingPhoto   Outcome = "missing_photo"
	OutcomeIneligible     Outcome = "ineligible"
	OutcomeBusy           Outcome = "busy"
	OutcomeNotFound       Outcome = "not_found"
)

// Kind groups outcomes by how a caller should react.
type Kind int

const (
	KindSuccess Kind = iota
	// KindContention means someone else got there first. Re-list and move on.
	KindContention
	// KindRetry means the user can correct the input and try again.
	KindRetry
	// KindPrecondition means the request must not be repeated unmodified.
	KindPrecondition
	KindNotFound
)

func (o Outcome) Kind() Kind {
	switch o {
	case OutcomeOK:
		return KindSuccess
	case OutcomeAlreadyTaken:
		return KindContention
	case OutcomeMismatch:
		return KindRetry
	case OutcomeNotFound:
		return KindNotFound
	default:
		return KindPrecondition
	}
}

func (o Outcome) OK() bool { return o == OutcomeOK }

// Message is a short human-readable explanation.
func (o Outcome) Message() string {
	switch o {
	case OutcomeOK:
		return "done"
	case OutcomeAlreadyTaken:
		return "task is no longer available"
	case OutcomeNotClaimant:
		return "you are not working on this task"
	case OutcomeNotInterrupted:
		return "task is not interrupted"
	case OutcomeMismatch:
		return "wrong location, scan the code again"
	case OutcomeNotVerified:
		return "scan the location code first"
	case OutcomeMissingPhoto:
		return "a completion photo is required"
	case OutcomeIneligible:
		return "clock in and end your break first"
	case OutcomeBusy:
		return "finish your current task first"
	case OutcomeNotFound:
		return "task not found"
	}
	return string(o)
}

// Result carries an outcome and, when known, the instance as it stands after
// the operation.
type Result struct {
	Outcome  Outcome
	Instance *store.TaskView
}
