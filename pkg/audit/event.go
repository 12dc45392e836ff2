package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names what a caller did.
type Action string

// Actions recorded by the server.
const (
	ActionSearch            Action = "search"
	ActionLookup            Action = "lookup"
	ActionSummary           Action = "summary"
	ActionRegisterDataset   Action = "register_dataset"
	ActionRegisterUsers     Action = "register_users"
	ActionUpdateUser        Action = "update_user"
	ActionDeleteUser        Action = "delete_user"
	ActionRegisterBaseURI   Action = "register_base_uri"
	ActionUpdatePermissions Action = "update_permissions"
	ActionIndexBaseURI      Action = "index_base_uri"
	ActionToolCall          Action = "tool_call"
)

// NewEvent creates a new audit event.
func NewEvent(action Action) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
	}
}

// WithUser adds the acting username to the event.
func (e *Event) WithUser(username string) *Event {
	e.Username = username
	return e
}

// WithResource names the object acted on, such as a URI or base URI.
func (e *Event) WithResource(resource string) *Event {
	e.Resource = resource
	return e
}

// WithParameters adds sanitized parameters to the event.
func (e *Event) WithParameters(params map[string]any) *Event {
	e.Parameters = SanitizeParameters(params)
	return e
}

// WithResult adds result information to the event.
func (e *Event) WithResult(err error, durationMS int64) *Event {
	e.Success = err == nil
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	e.DurationMS = durationMS
	return e
}

// WithRequestID adds a request ID to the event.
func (e *Event) WithRequestID(requestID string) *Event {
	e.RequestID = requestID
	return e
}

// Dimension returns the value of e that d groups by.
func (e *Event) Dimension(d BreakdownDimension) string {
	switch d {
	case BreakdownByAction:
		return string(e.Action)
	case BreakdownByResource:
		return e.Resource
	default:
		return e.Username
	}
}

// SanitizeParameters removes sensitive parameters from the event.
func SanitizeParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	sensitiveKeys := map[string]bool{
		"password":      true,
		"secret":        true,
		"token":         true,
		"api_key":       true,
		"authorization": true,
		"credentials":   true,
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if sensitiveKeys[k] {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}
