package capa

import (
	"context"
	"strings"
	"time"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

type auditRecord struct {
	WorkflowID  string
	CapaID      string
	Actor       string
	Action      domaincapa.AuditAction
	Before      any
	After       any
	Reason      string
	CorrectsSeq uint64
	At          time.Time
}

// appendAuditTx writes the next chained entry of a workflow. It must run
// inside the transaction of the mutation it records.
func (s *Service) appendAuditTx(ctx context.Context, rec auditRecord) (ports.AuditEntry, error) {
	before, err := snapshot(rec.Before)
	if err != nil {
		return ports.AuditEntry{}, err
	}
	after, err := snapshot(rec.After)
	if err != nil {
		return ports.AuditEntry{}, err
	}

	seq, err := s.repo.AllocateAuditSeq(ctx, rec.WorkflowID)
	if err != nil {
		return ports.AuditEntry{}, mapRepoErr(err, "workflow "+rec.WorkflowID)
	}
	prev, found, err := s.repo.LastAuditEntry(ctx, rec.WorkflowID)
	if err != nil {
		return ports.AuditEntry{}, err
	}
	prevHash := ""
	if found {
		prevHash = prev.EntryHash
	}

	createdAt := formatTime(rec.At)
	link := domaincapa.AuditLink{
		WorkflowID:  rec.WorkflowID,
		Seq:         seq,
		Actor:       rec.Actor,
		Action:      rec.Action,
		Before:      before,
		After:       after,
		Reason:      rec.Reason,
		CorrectsSeq: rec.CorrectsSeq,
		CreatedAt:   createdAt,
	}

	entry := ports.AuditEntry{
		WorkflowID: rec.WorkflowID,
		Seq:        seq,
		CapaID:     rec.CapaID,
		Actor:      rec.Actor,
		Action:     string(rec.Action),
		BeforeJSON: before,
		AfterJSON:  after,
		Reason:     rec.Reason,
		PrevHash:   prevHash,
		EntryHash:  link.Hash(prevHash),
		CreatedAt:  createdAt,
	}
	if rec.CorrectsSeq > 0 {
		corrects := rec.CorrectsSeq
		entry.CorrectsSeq = &corrects
	}

	if err := s.repo.AppendAuditEntry(ctx, entry); err != nil {
		return ports.AuditEntry{}, err
	}
	return entry, nil
}

// ListAuditEntries returns the audit trail of a workflow in seq order.
func (s *Service) ListAuditEntries(ctx context.Context, workflowID string) ([]AuditEntryView, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return nil, errs.E(errs.KindValidation, "workflow id is required")
	}

	if _, err := s.repo.GetWorkflow(ctx, workflowID); err != nil {
		return nil, mapRepoErr(err, "workflow "+workflowID)
	}
	entries, err := s.repo.ListAuditEntries(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	items := make([]AuditEntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, newAuditEntryView(e))
	}
	return items, nil
}

// AuditCorrectionInput amends an earlier audit entry. The original is left
// untouched; the correction becomes a new entry pointing at it.
type AuditCorrectionInput struct {
	WorkflowID  string
	CorrectsSeq uint64
	Reason      string
	Corrected   map[string]any
	Actor       domaincapa.Principal
}

func (s *Service) AppendAuditCorrection(ctx context.Context, input AuditCorrectionInput) (AuditEntryView, error) {
	if err := s.ready(ctx); err != nil {
		return AuditEntryView{}, err
	}
	if err := requireActor(input.Actor); err != nil {
		return AuditEntryView{}, err
	}

	workflowID := strings.TrimSpace(input.WorkflowID)
	reason := strings.TrimSpace(input.Reason)
	switch {
	case workflowID == "":
		return AuditEntryView{}, errs.E(errs.KindValidation, "workflow id is required")
	case input.CorrectsSeq == 0:
		return AuditEntryView{}, errs.E(errs.KindValidation, "seq of the corrected entry is required")
	case reason == "":
		return AuditEntryView{}, errs.E(errs.KindValidation, "correction reason is required")
	}
	if !input.Actor.HasAnyRole(domaincapa.AuditCorrectorRoles) {
		return AuditEntryView{}, errs.E(errs.KindAuthorization,
			"audit corrections require one of: %s", joinRoles(domaincapa.AuditCorrectorRoles))
	}

	var created ports.AuditEntry
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		wf, err := s.repo.GetWorkflow(txCtx, workflowID)
		if err != nil {
			return mapRepoErr(err, "workflow "+workflowID)
		}
		target, err := s.repo.GetAuditEntry(txCtx, workflowID, input.CorrectsSeq)
		if err != nil {
			return mapRepoErr(err, "audit entry")
		}

		after := input.Corrected
		if after == nil {
			after = map[string]any{}
		}
		created, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID:  wf.WorkflowID,
			CapaID:      wf.CapaID,
			Actor:       input.Actor.UserID,
			Action:      domaincapa.AuditCorrection,
			Before:      jsonOrNull(target.AfterJSON),
			After:       after,
			Reason:      reason,
			CorrectsSeq: target.Seq,
			At:          s.now(),
		})
		return err
	}); err != nil {
		return AuditEntryView{}, err
	}

	return newAuditEntryView(created), nil
}

// VerifyAuditChain recomputes the hash chain of a workflow's audit trail.
func (s *Service) VerifyAuditChain(ctx context.Context, workflowID string) (AuditChainReport, error) {
	if err := s.ready(ctx); err != nil {
		return AuditChainReport{}, err
	}
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return AuditChainReport{}, errs.E(errs.KindValidation, "workflow id is required")
	}
	if _, err := s.repo.GetWorkflow(ctx, workflowID); err != nil {
		return AuditChainReport{}, mapRepoErr(err, "workflow "+workflowID)
	}

	entries, err := s.repo.ListAuditEntries(ctx, workflowID)
	if err != nil {
		return AuditChainReport{}, err
	}

	chain := make([]domaincapa.ChainedEntry, 0, len(entries))
	for _, e := range entries {
		var corrects uint64
		if e.CorrectsSeq != nil {
			corrects = *e.CorrectsSeq
		}
		chain = append(chain, domaincapa.ChainedEntry{
			Link: domaincapa.AuditLink{
				WorkflowID:  e.WorkflowID,
				Seq:         e.Seq,
				Actor:       e.Actor,
				Action:      domaincapa.AuditAction(e.Action),
				Before:      e.BeforeJSON,
				After:       e.AfterJSON,
				Reason:      e.Reason,
				CorrectsSeq: corrects,
				CreatedAt:   e.CreatedAt,
			},
			PrevHash:  e.PrevHash,
			EntryHash: e.EntryHash,
		})
	}

	report := AuditChainReport{WorkflowID: workflowID, Entries: len(entries), Valid: true}
	if broken := domaincapa.VerifyChain(chain); broken != nil {
		report.Valid = false
		report.BrokenAtSeq = broken.Seq
		report.Reason = broken.Reason
	}
	return report, nil
}
