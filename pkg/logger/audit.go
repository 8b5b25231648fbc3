package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	PatientID     string
	AccessorRole  string
	TrustLevel    string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides structured audit logging for security-relevant events.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogEmergencyAccess logs an emergency-access attempt with its trust outcome.
func (al *AuditLogger) LogEmergencyAccess(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "emergency_access"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.PatientID != "" {
		attrs = append(attrs, slog.String("patient_id", event.PatientID))
	}
	if event.AccessorRole != "" {
		attrs = append(attrs, slog.String("accessor_role", event.AccessorRole))
	}
	if event.TrustLevel != "" {
		attrs = append(attrs, slog.String("trust_level", event.TrustLevel))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthAttempt logs patient authentication attempts.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.PatientID != "" {
		attrs = append(attrs, slog.String("patient_id", event.PatientID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
