package repository

import (
	"encoding/json"

	"eqms/internal/infrastructure/persistence/sqlite/model"
	"eqms/internal/ports"
)

func toCapaModel(record ports.CapaRecord) model.CapaRecord {
	return model.CapaRecord{
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
		ClosedDate:               record.ClosedDate,
		CreatedAt:                record.CreatedAt,
		UpdatedAt:                record.UpdatedAt,
	}
}

func mapCapa(row model.CapaRecord) ports.CapaRecord {
	return ports.CapaRecord{
		CapaID:                   row.CapaID,
		Title:                    row.Title,
		Description:              row.Description,
		Source:                   row.Source,
		RiskPriority:             row.RiskPriority,
		PatientSafetyImpact:      row.PatientSafetyImpact,
		ProductPerformanceImpact: row.ProductPerformanceImpact,
		ComplianceImpact:         row.ComplianceImpact,
		Initiator:                row.Initiator,
		Assignee:                 row.Assignee,
		DueDate:                  row.DueDate,
		ClosedDate:               row.ClosedDate,
		CreatedAt:                row.CreatedAt,
		UpdatedAt:                row.UpdatedAt,
	}
}

func mapWorkflow(row model.Workflow) ports.Workflow {
	return ports.Workflow{
		WorkflowID:       row.WorkflowID,
		CapaID:           row.CapaID,
		Phase:            row.Phase,
		AssignedApprover: row.AssignedApprover,
		Version:          row.Version,
		AuditSeq:         row.AuditSeq,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func mapTransition(row model.PhaseTransition) ports.PhaseTransition {
	var refs []string
	// Rows are written by AppendTransition only; a decode failure leaves refs empty.
	_ = json.Unmarshal([]byte(row.EvidenceRefsJSON), &refs)
	return ports.PhaseTransition{
		TransitionID:  row.TransitionID,
		WorkflowID:    row.WorkflowID,
		FromPhase:     row.FromPhase,
		ToPhase:       row.ToPhase,
		ApproverID:    row.ApproverID,
		Comments:      row.Comments,
		SignatureHash: row.SignatureHash,
		EvidenceRefs:  refs,
		CreatedAt:     row.CreatedAt,
	}
}

func mapAction(row model.CapaAction) ports.CapaAction {
	return ports.CapaAction{
		ActionID:             row.ActionID,
		CapaID:               row.CapaID,
		WorkflowID:           row.WorkflowID,
		Phase:                row.Phase,
		Title:                row.Title,
		Description:          row.Description,
		Owner:                row.Owner,
		DueDate:              row.DueDate,
		VerifiedBy:           row.VerifiedBy,
		VerificationOutcome:  row.VerificationOutcome,
		VerificationComments: row.VerificationComments,
		VerifiedAt:           row.VerifiedAt,
		CreatedAt:            row.CreatedAt,
	}
}

func mapEvidence(row model.Evidence) ports.Evidence {
	return ports.Evidence{
		EvidenceID:     row.EvidenceID,
		ActionID:       row.ActionID,
		CapaID:         row.CapaID,
		Title:          row.Title,
		Description:    row.Description,
		Type:           row.Type,
		URL:            row.URL,
		FileRef:        row.FileRef,
		SubmittedBy:    row.SubmittedBy,
		SubmittedAt:    row.SubmittedAt,
		ReviewedBy:     row.ReviewedBy,
		Outcome:        row.Outcome,
		ReviewComments: row.ReviewComments,
		ReviewedAt:     row.ReviewedAt,
	}
}

func mapAuditEntry(row model.AuditEntry) ports.AuditEntry {
	return ports.AuditEntry{
		WorkflowID:  row.WorkflowID,
		Seq:         row.Seq,
		CapaID:      row.CapaID,
		Actor:       row.Actor,
		Action:      row.Action,
		BeforeJSON:  row.BeforeJSON,
		AfterJSON:   row.AfterJSON,
		Reason:      row.Reason,
		CorrectsSeq: row.CorrectsSeq,
		PrevHash:    row.PrevHash,
		EntryHash:   row.EntryHash,
		CreatedAt:   row.CreatedAt,
	}
}
