package audit

// EventType categorises an audit event.
type EventType string

const (
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	EventTypeAccessDenied EventType = "access.denied"

	EventTypeDataCreate EventType = "data.create"
	EventTypeDataUpdate EventType = "data.update"
	EventTypeDataDelete EventType = "data.delete"
	EventTypeDataBatch  EventType = "data.batch_create"
)

// EventStatus is the outcome of the audited action.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit trail entry.
type Event struct {
	Type   EventType   `json:"type"`
	Status EventStatus `json:"status"`

	// Actor. Principal is the authenticated user id, empty for
	// anonymous requests.
	Principal string `json:"principal,omitempty"`
	Username  string `json:"username,omitempty"`

	// Resource the action touched.
	Resource   string `json:"resource,omitempty"`
	ResourceID string `json:"resourceId,omitempty"`

	// Request context.
	RequestID  string `json:"requestId,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`

	Detail string `json:"detail,omitempty"`
}

func statusFor(code int) EventStatus {
	switch {
	case code == 401 || code == 403:
		return EventStatusDenied
	case code >= 400:
		return EventStatusFailure
	default:
		return EventStatusSuccess
	}
}

func eventTypeFor(method string, batch bool) EventType {
	if batch {
		return EventTypeDataBatch
	}
	switch method {
	case "POST":
		return EventTypeDataCreate
	case "PUT", "PATCH":
		return EventTypeDataUpdate
	case "DELETE":
		return EventTypeDataDelete
	}
	return EventTypeDataUpdate
}
