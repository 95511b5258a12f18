package capa

import "time"

// AuditAction names the mutating operation recorded in an audit entry.
type AuditAction string

const (
	AuditCapaCreated      AuditAction = "capa.created"
	AuditCapaUpdated      AuditAction = "capa.updated"
	AuditCapaDeleted      AuditAction = "capa.deleted"
	AuditApproverAssigned AuditAction = "workflow.approver_assigned"
	AuditPhaseTransition  AuditAction = "workflow.transitioned"
	AuditActionCreated    AuditAction = "action.created"
	AuditEvidenceAttached AuditAction = "evidence.attached"
	AuditEvidenceVerified AuditAction = "evidence.verified"
	AuditActionVerified   AuditAction = "action.verified"
	AuditCorrection       AuditAction = "audit.corrected"
)

// EventType names a domain event published after commit.
type EventType string

const (
	EventPhaseTransitioned EventType = "capa.phase_transitioned"
	EventEvidenceAttached  EventType = "capa.evidence_attached"
	EventEvidenceVerified  EventType = "capa.evidence_verified"
	EventActionVerified    EventType = "capa.action_verified"
)

// DomainEvent is a fire-and-forget notification about a committed change.
type DomainEvent struct {
	Type       EventType      `json:"type"`
	WorkflowID string         `json:"workflowId"`
	CapaID     string         `json:"capaId"`
	Actor      string         `json:"actor"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload,omitempty"`
}
