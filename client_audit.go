package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/flows"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshRejected     = "refresh_rejected"
	auditEventSessionInvalidated  = "session_invalidated"
	auditEventLogout              = "logout"
	auditEventAuthAttemptReplaced = "auth_attempt_superseded"
)

// AuditErrorCode is the stable error label recorded on audit events.
type AuditErrorCode string

const (
	auditErrRejected       AuditErrorCode = "rejected"
	auditErrInvalidRequest AuditErrorCode = "invalid_request"
	auditErrNetwork        AuditErrorCode = "network"
	auditErrServer         AuditErrorCode = "server"
	auditErrStorage        AuditErrorCode = "storage"
	auditErrSessionInvalid AuditErrorCode = "session_invalid"
	auditErrSuperseded     AuditErrorCode = "superseded"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, err error, metadata map[string]string) {
	if c == nil || c.audit == nil {
		return
	}

	event := AuditEvent{
		EventType: eventType,
		RequestID: requestIDIfSet(ctx),
		State:     c.machine.State().String(),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

func (c *Client) recordAuth(ctx context.Context, mode flows.AuthMode, res flows.AuthResult) {
	success, failure := MetricLoginSuccess, MetricLoginFailure
	okEvent, failEvent := auditEventLoginSuccess, auditEventLoginFailure
	if mode == flows.AuthRegister {
		success, failure = MetricRegisterSuccess, MetricRegisterFailure
		okEvent, failEvent = auditEventRegisterSuccess, auditEventRegisterFailure
	}

	var metadata map[string]string
	if res.LoginFallback {
		metadata = map[string]string{"login_fallback": "true"}
	}

	switch res.Failure {
	case flows.AuthFailureNone:
		c.metrics.Inc(success)
		c.log.Info(mode.String()+".succeeded", "login_fallback", res.LoginFallback)
		c.emitAudit(ctx, okEvent, true, nil, metadata)
	case flows.AuthFailureSuperseded:
		c.log.Info(mode.String()+".superseded")
		c.emitAudit(ctx, auditEventAuthAttemptReplaced, false, ErrSuperseded, metadata)
	default:
		c.metrics.Inc(failure)
		if res.Failure == flows.AuthFailureStorage {
			c.metrics.Inc(MetricStorageFailure)
		}
		c.log.Warn(mode.String()+".failed", "error", res.Err)
		c.emitAudit(ctx, failEvent, false, res.Err, metadata)
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrSuperseded):
		return auditErrSuperseded
	case errors.Is(err, ErrUnauthorized):
		return auditErrRejected
	case errors.Is(err, ErrValidation):
		return auditErrInvalidRequest
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	case errors.Is(err, ErrServer):
		return auditErrServer
	case errors.Is(err, ErrStorage):
		return auditErrStorage
	default:
		return auditErrInternal
	}
}
