package goSession

import (
	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
)

// CredentialPair is the access/refresh token pair held by the store.
type CredentialPair = credstore.Pair

// Request is a buffered outbound call. Body is a byte slice so the gateway
// can resend it unchanged after a refresh.
type Request = authapi.Request

// Response is a fully read response.
type Response = authapi.Response

// State is the session state. Compare Kind against the session.Kind constants.
type State = session.State

// Transition is one state change delivered to subscribers.
type Transition = session.Transition

// AuditEvent is a structured session lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink
