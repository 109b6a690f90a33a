package audit

import "log/slog"

// Enabled controls whether audit log entries are emitted. Set to false to
// suppress all audit output (useful in tests that don't exercise auditing).
var Enabled = true

// Event is a structured audit entry for security-relevant actions: auth
// failures, gate denials, admin provisioning, mutating API calls. Only
// non-zero fields appear in the output.
type Event struct {
	Actor      string // who acted: account email or "anonymous"
	Action     string // what was done: operation id or action name
	Status     string // outcome: "granted", "denied", "failed"
	Route      string // requested route for gate decisions
	Resource   string // target resource id (tenant, work order, user)
	Role       string // actor's resolved role, when known
	Method     string // HTTP method
	HTTPStatus int    // HTTP response status code
	Reason     string // explanation for denial or failure
	IP         string // client IP address
	TargetUser string // target account for admin operations
	Extra      []any  // additional slog attrs for one-off fields
}

// Info emits the event as an INFO-level structured audit log entry.
func (e Event) Info(msg string) {
	if !Enabled {
		return
	}
	slog.Info(msg, slog.Group("audit", e.attrs()...))
}

// Warn emits the event as a WARN-level structured audit log entry.
func (e Event) Warn(msg string) {
	if !Enabled {
		return
	}
	slog.Warn(msg, slog.Group("audit", e.attrs()...))
}

// attrs builds the slog attribute list, skipping zero-value fields.
func (e Event) attrs() []any {
	var attrs []any
	if e.Actor != "" {
		attrs = append(attrs, slog.String("actor", e.Actor))
	}
	if e.Action != "" {
		attrs = append(attrs, slog.String("action", e.Action))
	}
	if e.Status != "" {
		attrs = append(attrs, slog.String("status", e.Status))
	}
	if e.Route != "" {
		attrs = append(attrs, slog.String("route", e.Route))
	}
	if e.Resource != "" {
		attrs = append(attrs, slog.String("resource", e.Resource))
	}
	if e.Role != "" {
		attrs = append(attrs, slog.String("role", e.Role))
	}
	if e.Method != "" {
		attrs = append(attrs, slog.String("method", e.Method))
	}
	if e.HTTPStatus != 0 {
		attrs = append(attrs, slog.Int("http_status", e.HTTPStatus))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.IP != "" {
		attrs = append(attrs, slog.String("ip_address", e.IP))
	}
	if e.TargetUser != "" {
		attrs = append(attrs, slog.String("target_user", e.TargetUser))
	}
	attrs = append(attrs, e.Extra...)
	return attrs
}
