package capa

import (
	"encoding/json"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/ports"
)

type CapaView struct {
	CapaID                   string           `json:"capaId"`
	Title                    string           `json:"title"`
	Description              string           `json:"description"`
	Source                   string           `json:"source"`
	RiskPriority             string           `json:"riskPriority"`
	PatientSafetyImpact      bool             `json:"patientSafetyImpact"`
	ProductPerformanceImpact bool             `json:"productPerformanceImpact"`
	ComplianceImpact         bool             `json:"complianceImpact"`
	Initiator                string           `json:"initiator"`
	Assignee                 string           `json:"assignee,omitempty"`
	DueDate                  string           `json:"dueDate"`
	ClosedDate               string           `json:"closedDate,omitempty"`
	WorkflowID               string           `json:"workflowId"`
	Phase                    domaincapa.Phase `json:"phase"`
	AssignedApprover         string           `json:"assignedApprover,omitempty"`
	CreatedAt                string           `json:"createdAt"`
	UpdatedAt                string           `json:"updatedAt"`
}

type WorkflowView struct {
	WorkflowID       string           `json:"workflowId"`
	CapaID           string           `json:"capaId"`
	Phase            domaincapa.Phase `json:"phase"`
	PhaseLabel       string           `json:"phaseLabel"`
	NextPhase        domaincapa.Phase `json:"nextPhase,omitempty"`
	Terminal         bool             `json:"terminal"`
	AssignedApprover string           `json:"assignedApprover,omitempty"`
	Version          uint64           `json:"version"`
	CreatedAt        string           `json:"createdAt"`
	UpdatedAt        string           `json:"updatedAt"`
	Transitions      []TransitionView `json:"transitions"`
}

type TransitionView struct {
	TransitionID  uint64           `json:"transitionId"`
	From          domaincapa.Phase `json:"from"`
	To            domaincapa.Phase `json:"to"`
	ApproverID    string           `json:"approverId"`
	Comments      string           `json:"comments,omitempty"`
	SignatureHash string           `json:"signatureHash"`
	EvidenceRefs  []string         `json:"evidenceRefs"`
	CreatedAt     string           `json:"createdAt"`
	Approval      *ApprovalView    `json:"approval,omitempty"`
}

type ApprovalView struct {
	UserID        string   `json:"userId"`
	Roles         []string `json:"roles"`
	Meaning       string   `json:"meaning"`
	SignedAt      string   `json:"signedAt"`
	SignatureHash string   `json:"signatureHash"`
}

type ActionView struct {
	ActionID             string           `json:"actionId"`
	CapaID               string           `json:"capaId"`
	WorkflowID           string           `json:"workflowId"`
	Phase                domaincapa.Phase `json:"phase"`
	Title                string           `json:"title"`
	Description          string           `json:"description,omitempty"`
	Owner                string           `json:"owner"`
	DueDate              string           `json:"dueDate,omitempty"`
	Verified             bool             `json:"verified"`
	VerifiedBy           string           `json:"verifiedBy,omitempty"`
	VerificationOutcome  string           `json:"verificationOutcome,omitempty"`
	VerificationComments string           `json:"verificationComments,omitempty"`
	VerifiedAt           string           `json:"verifiedAt,omitempty"`
	CreatedAt            string           `json:"createdAt"`
}

type EvidenceView struct {
	EvidenceID     string `json:"evidenceId"`
	ActionID       string `json:"actionId"`
	CapaID         string `json:"capaId"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Type           string `json:"type"`
	URL            string `json:"url,omitempty"`
	FileRef        string `json:"fileRef,omitempty"`
	SubmittedBy    string `json:"submittedBy"`
	SubmittedAt    string `json:"submittedAt"`
	Reviewed       bool   `json:"reviewed"`
	ReviewedBy     string `json:"reviewedBy,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	ReviewComments string `json:"reviewComments,omitempty"`
	ReviewedAt     string `json:"reviewedAt,omitempty"`
}

// ActionVerification is the sign-off of one action with the review tally of
// its evidence.
type ActionVerification struct {
	ActionID         string `json:"actionId"`
	VerifiedBy       string `json:"verifiedBy"`
	Outcome          string `json:"outcome"`
	Comments         string `json:"comments,omitempty"`
	VerifiedAt       string `json:"verifiedAt"`
	EvidenceTotal    int    `json:"evidenceTotal"`
	EvidenceApproved int    `json:"evidenceApproved"`
	EvidenceRejected int    `json:"evidenceRejected"`
}

type AuditEntryView struct {
	Seq         uint64          `json:"seq"`
	CapaID      string          `json:"capaId"`
	Actor       string          `json:"actor"`
	Action      string          `json:"action"`
	Before      json.RawMessage `json:"before"`
	After       json.RawMessage `json:"after"`
	Reason      string          `json:"reason,omitempty"`
	CorrectsSeq *uint64         `json:"correctsSeq,omitempty"`
	PrevHash    string          `json:"prevHash"`
	EntryHash   string          `json:"entryHash"`
	CreatedAt   string          `json:"createdAt"`
}

type AuditChainReport struct {
	WorkflowID  string `json:"workflowId"`
	Entries     int    `json:"entries"`
	Valid       bool   `json:"valid"`
	BrokenAtSeq uint64 `json:"brokenAtSeq,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func newCapaView(record ports.CapaRecord, wf ports.Workflow) CapaView {
	v := CapaView{
		CapaID:                   record.CapaID,
		Title:                    record.Title,
		Description:              record.Description,
		Source:                   record.Source,
		RiskPriority:             record.RiskPriority,
		PatientSafetyImpact:      record.PatientSafetyImpact,
		ProductPerformanceImpact: record.ProductPerformanceImpact,
		ComplianceImpact:         record.ComplianceImpact,
		Initiator:                record.Initiator,
		Assignee:                 record.Assignee,
		DueDate:                  record.DueDate,
		WorkflowID:               wf.WorkflowID,
		Phase:                    domaincapa.Phase(wf.Phase),
		AssignedApprover:         wf.AssignedApprover,
		CreatedAt:                record.CreatedAt,
		UpdatedAt:                record.UpdatedAt,
	}
	if record.ClosedDate != nil {
		v.ClosedDate = *record.ClosedDate
	}
	return v
}

func newWorkflowView(wf ports.Workflow, transitions []ports.PhaseTransition, approvals []ports.ApprovalRecord) WorkflowView {
	phase := domaincapa.Phase(wf.Phase)
	next, _ := phase.Successor()

	byTransition := make(map[uint64]ports.ApprovalRecord, len(approvals))
	for _, a := range approvals {
		byTransition[a.TransitionID] = a
	}

	items := make([]TransitionView, 0, len(transitions))
	for _, t := range transitions {
		tv := TransitionView{
			TransitionID:  t.TransitionID,
			From:          domaincapa.Phase(t.FromPhase),
			To:            domaincapa.Phase(t.ToPhase),
			ApproverID:    t.ApproverID,
			Comments:      t.Comments,
			SignatureHash: t.SignatureHash,
			EvidenceRefs:  t.EvidenceRefs,
			CreatedAt:     t.CreatedAt,
		}
		if a, ok := byTransition[t.TransitionID]; ok {
			tv.Approval = &ApprovalView{
				UserID:        a.UserID,
				Roles:         a.Roles,
				Meaning:       a.Meaning,
				SignedAt:      a.SignedAt,
				SignatureHash: a.SignatureHash,
			}
		}
		items = append(items, tv)
	}

	return WorkflowView{
		WorkflowID:       wf.WorkflowID,
		CapaID:           wf.CapaID,
		Phase:            phase,
		PhaseLabel:       phase.Label(),
		NextPhase:        next,
		Terminal:         phase.IsTerminal(),
		AssignedApprover: wf.AssignedApprover,
		Version:          wf.Version,
		CreatedAt:        wf.CreatedAt,
		UpdatedAt:        wf.UpdatedAt,
		Transitions:      items,
	}
}

func newActionView(a ports.CapaAction) ActionView {
	v := ActionView{
		ActionID:             a.ActionID,
		CapaID:               a.CapaID,
		WorkflowID:           a.WorkflowID,
		Phase:                domaincapa.Phase(a.Phase),
		Title:                a.Title,
		Description:          a.Description,
		Owner:                a.Owner,
		DueDate:              a.DueDate,
		Verified:             a.VerifiedBy != "",
		VerifiedBy:           a.VerifiedBy,
		VerificationOutcome:  a.VerificationOutcome,
		VerificationComments: a.VerificationComments,
		CreatedAt:            a.CreatedAt,
	}
	if a.VerifiedAt != nil {
		v.VerifiedAt = *a.VerifiedAt
	}
	return v
}

func newEvidenceView(e ports.Evidence) EvidenceView {
	v := EvidenceView{
		EvidenceID:     e.EvidenceID,
		ActionID:       e.ActionID,
		CapaID:         e.CapaID,
		Title:          e.Title,
		Description:    e.Description,
		Type:           e.Type,
		URL:            e.URL,
		FileRef:        e.FileRef,
		SubmittedBy:    e.SubmittedBy,
		SubmittedAt:    e.SubmittedAt,
		Reviewed:       e.ReviewedBy != "",
		ReviewedBy:     e.ReviewedBy,
		Outcome:        e.Outcome,
		ReviewComments: e.ReviewComments,
	}
	if e.ReviewedAt != nil {
		v.ReviewedAt = *e.ReviewedAt
	}
	return v
}

func newAuditEntryView(e ports.AuditEntry) AuditEntryView {
	return AuditEntryView{
		Seq:         e.Seq,
		CapaID:      e.CapaID,
		Actor:       e.Actor,
		Action:      e.Action,
		Before:      json.RawMessage(e.BeforeJSON),
		After:       json.RawMessage(e.AfterJSON),
		Reason:      e.Reason,
		CorrectsSeq: e.CorrectsSeq,
		PrevHash:    e.PrevHash,
		EntryHash:   e.EntryHash,
		CreatedAt:   e.CreatedAt,
	}
}

func evidenceStatus(e ports.Evidence) domaincapa.EvidenceStatus {
	return domaincapa.EvidenceStatus{
		ID:       e.EvidenceID,
		ActionID: e.ActionID,
		Reviewed: e.ReviewedBy != "",
		Outcome:  domaincapa.ReviewOutcome(e.Outcome),
	}
}

func actionStatus(a ports.CapaAction) domaincapa.ActionStatus {
	return domaincapa.ActionStatus{
		ID:       a.ActionID,
		Title:    a.Title,
		Verified: a.VerifiedBy != "",
		Outcome:  domaincapa.ReviewOutcome(a.VerificationOutcome),
	}
}
