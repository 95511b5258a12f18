package ports

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record was modified concurrently")
	ErrAlreadyReviewed = errors.New("record was already reviewed")
)

// Timestamps are RFC3339Nano strings in UTC, dates are YYYY-MM-DD.

type CapaRecord struct {
	CapaID                   string
	Title                    string
	Description              string
	Source                   string
	RiskPriority             string
	PatientSafetyImpact      bool
	ProductPerformanceImpact bool
	ComplianceImpact         bool
	Initiator                string
	Assignee                 string
	DueDate                  string
	ClosedDate               *string
	CreatedAt                string
	UpdatedAt                string
}

type Workflow struct {
	WorkflowID       string
	CapaID           string
	Phase            string
	AssignedApprover string
	Version          uint64
	AuditSeq         uint64
	CreatedAt        string
	UpdatedAt        string
}

// WorkflowUpdate is applied only when the stored version equals
// ExpectedVersion; the version is then incremented.
type WorkflowUpdate struct {
	WorkflowID       string
	ExpectedVersion  uint64
	Phase            string
	AssignedApprover string
	UpdatedAt        string
}

type CapaOverview struct {
	Capa     CapaRecord
	Workflow Workflow
}

type CapaFilter struct {
	Phases       []string
	Source       string
	RiskPriority string
	Assignee     string
	Limit        int
}

type PhaseTransition struct {
	TransitionID  uint64
	WorkflowID    string
	FromPhase     string
	ToPhase       string
	ApproverID    string
	Comments      string
	SignatureHash string
	EvidenceRefs  []string
	CreatedAt     string
}

type ApprovalRecord struct {
	ApprovalID    uint64
	TransitionID  uint64
	WorkflowID    string
	UserID        string
	Roles         []string
	Meaning       string
	SignedAt      string
	SignatureHash string
}

type CapaAction struct {
	ActionID             string
	CapaID               string
	WorkflowID           string
	Phase                string
	Title                string
	Description          string
	Owner                string
	DueDate              string
	VerifiedBy           string
	VerificationOutcome  string
	VerificationComments string
	VerifiedAt           *string
	CreatedAt            string
}

type ActionFilter struct {
	CapaID string
	Phase  string
}

type ActionVerificationUpdate struct {
	ActionID   string
	VerifiedBy string
	Outcome    string
	Comments   string
	VerifiedAt string
}

type Evidence struct {
	EvidenceID     string
	ActionID       string
	CapaID         string
	Title          string
	Description    string
	Type           string
	URL            string
	FileRef        string
	SubmittedBy    string
	SubmittedAt    string
	ReviewedBy     string
	Outcome        string
	ReviewComments string
	ReviewedAt     *string
}

type EvidenceFilter struct {
	CapaID    string
	ActionIDs []string
}

type EvidenceReview struct {
	EvidenceID string
	ReviewedBy string
	Outcome    string
	Comments   string
	ReviewedAt string
}

type AuditEntry struct {
	WorkflowID  string
	Seq         uint64
	CapaID      string
	Actor       string
	Action      string
	BeforeJSON  string
	AfterJSON   string
	Reason      string
	CorrectsSeq *uint64
	PrevHash    string
	EntryHash   string
	CreatedAt   string
}

type CapaReadRepository interface {
	GetCapa(ctx context.Context, capaID string) (CapaRecord, error)
	ListCapas(ctx context.Context, filter CapaFilter) ([]CapaOverview, error)
	GetWorkflow(ctx context.Context, workflowID string) (Workflow, error)
	GetWorkflowByCapa(ctx context.Context, capaID string) (Workflow, error)
	ListTransitions(ctx context.Context, workflowID string) ([]PhaseTransition, error)
	ListApprovals(ctx context.Context, workflowID string) ([]ApprovalRecord, error)
	GetAction(ctx context.Context, actionID string) (CapaAction, error)
	ListActions(ctx context.Context, filter ActionFilter) ([]CapaAction, error)
	GetEvidence(ctx context.Context, evidenceID string) (Evidence, error)
	ListEvidence(ctx context.Context, filter EvidenceFilter) ([]Evidence, error)
	ListAuditEntries(ctx context.Context, workflowID string) ([]AuditEntry, error)
	GetAuditEntry(ctx context.Context, workflowID string, seq uint64) (AuditEntry, error)
	LastAuditEntry(ctx context.Context, workflowID string) (AuditEntry, bool, error)
}

// CapaRepository is the persistence port of the CAPA engine. Writes are
// expected to run inside UnitOfWork.WithTx.
type CapaRepository interface {
	CapaReadRepository
	NextSequence(ctx context.Context, name string) (int64, error)
	CreateCapa(ctx context.Context, record CapaRecord) error
	UpdateCapa(ctx context.Context, record CapaRecord) error
	SoftDeleteCapa(ctx context.Context, capaID string) error
	CreateWorkflow(ctx context.Context, wf Workflow) error
	UpdateWorkflow(ctx context.Context, update WorkflowUpdate) (Workflow, error)
	AllocateAuditSeq(ctx context.Context, workflowID string) (uint64, error)
	AppendTransition(ctx context.Context, transition PhaseTransition) (PhaseTransition, error)
	CreateApproval(ctx context.Context, approval ApprovalRecord) error
	CreateAction(ctx context.Context, action CapaAction) error
	MarkActionVerified(ctx context.Context, update ActionVerificationUpdate) error
	CreateEvidence(ctx context.Context, evidence Evidence) error
	MarkEvidenceReviewed(ctx context.Context, review EvidenceReview) error
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
}
