package session

import "errors"

// ErrInvalidTransition is returned when an event is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Kind enumerates the lifecycle states.
type Kind uint8

const (
	KindInitial Kind = iota
	KindAuthenticating
	KindAuthenticated
	KindUnauthenticated
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindAuthenticating:
		return "authenticating"
	case KindAuthenticated:
		return "authenticated"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a tagged union: Reason carries the payload of the Error variant and
// is empty for every other kind.
type State struct {
	Kind   Kind
	Reason string
}

var (
	Initial         = State{Kind: KindInitial}
	Authenticating  = State{Kind: KindAuthenticating}
	Authenticated   = State{Kind: KindAuthenticated}
	Unauthenticated = State{Kind: KindUnauthenticated}
)

// Error builds the Error(reason) state.
func Error(reason string) State {
	return State{Kind: KindError, Reason: reason}
}

func (s State) String() string {
	if s.Kind == KindError && s.Reason != "" {
		return "error(" + s.Reason + ")"
	}
	return s.Kind.String()
}

// Cause names the event that produced a transition.
type Cause string

const (
	CauseStartup        Cause = "startup"
	CauseLogin          Cause = "login"
	CauseRegister       Cause = "register"
	CauseLogout         Cause = "logout"
	CauseSessionInvalid Cause = "session_invalid"
	CauseDismissed      Cause = "dismissed"
)
