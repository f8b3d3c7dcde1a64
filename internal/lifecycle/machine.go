package lifecycle

import "strings"

type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
)

// Action is a requested transition. Signature is only meaningful for a
// president approval; Reason only for a rejection.
type Action struct {
	Kind      ActionKind
	Reason    string
	Signature SignatureOption
}

func Approve() Action {
	return Action{Kind: ActionApprove}
}

func ApproveWithSignature(option SignatureOption) Action {
	return Action{Kind: ActionApprove, Signature: option}
}

func Reject(reason string) Action {
	return Action{Kind: ActionReject, Reason: reason}
}

// Decision is the outcome of a legal transition.
type Decision struct {
	From             Status
	Next             Status
	Role             Role
	Action           ActionKind
	Reason           string
	Signature        SignatureOption
	GenerateArtifact bool
}

// reviewStatusByRole maps each acting role to the one status it reviews.
var reviewStatusByRole = map[Role]Status{
	RoleSupervisor: StatusInProgress,
	RolePresident:  StatusPending,
}

// approvalTarget is where an approval moves a letter from a given status.
var approvalTarget = map[Status]Status{
	StatusInProgress: StatusPending,
	StatusPending:    StatusApproved,
}

// ReviewStatus returns the status a role is responsible for, if any.
func ReviewStatus(role Role) (Status, bool) {
	status, ok := reviewStatusByRole[role]
	return status, ok
}

// Decide validates a transition and returns what should happen. It never
// mutates letter.
func Decide(letter Letter, actor Actor, action Action) (Decision, error) {
	invalid := func(detail string) (Decision, error) {
		return Decision{}, &TransitionError{From: letter.Status, Role: actor.Role, Action: action.Kind, Detail: detail}
	}

	if letter.Status.Terminal() {
		return invalid("letter is in a terminal state")
	}
	owned, ok := ReviewStatus(actor.Role)
	if !ok {
		return invalid("role does not review letters")
	}
	if owned != letter.Status {
		return invalid("role reviews " + string(owned) + " letters only")
	}

	decision := Decision{
		From:   letter.Status,
		Role:   actor.Role,
		Action: action.Kind,
	}

	switch action.Kind {
	case ActionApprove:
		if action.Signature != "" {
			if actor.Role != RolePresident {
				return invalid("signature options are only available on final approval")
			}
			if !action.Signature.Valid() {
				return invalid("unknown signature option " + string(action.Signature))
			}
			decision.Signature = action.Signature
			decision.GenerateArtifact = true
		}
		decision.Next = approvalTarget[letter.Status]
		return decision, nil
	case ActionReject:
		reason := strings.TrimSpace(action.Reason)
		if reason == "" {
			return Decision{}, ErrMissingReason
		}
		decision.Next = StatusRejected
		decision.Reason = reason
		return decision, nil
	default:
		return invalid("unknown action")
	}
}

// Apply mirrors a confirmed decision onto the letter.
func Apply(letter Letter, decision Decision) Letter {
	letter.Status = decision.Next
	if decision.Next == StatusRejected {
		letter.ReasonForRejection = decision.Reason
	} else {
		letter.ReasonForRejection = ""
	}
	if decision.Next != StatusApproved {
		letter.ArtifactRef = ""
	}
	return letter
}

// Transition is Decide followed by Apply. On failure the original letter is
// returned unchanged.
func Transition(letter Letter, actor Actor, action Action) (Letter, Decision, error) {
	decision, err := Decide(letter, actor, action)
	if err != nil {
		return letter, Decision{}, err
	}
	return Apply(letter, decision), decision, nil
}
