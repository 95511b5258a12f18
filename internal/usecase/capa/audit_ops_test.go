package capa

import (
	"context"
	"encoding/json"
	"testing"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
)

func TestAuditSequenceIsContiguousAndChained(t *testing.T) {
	env := setupService(t)
	capa := openCapa(t, env)
	satisfyGate(t, env, capa.CapaID)

	entries := mustAudit(t, env, capa.WorkflowID)
	// created, action, evidence, evidence review, action sign-off
	if len(entries) != 5 {
		t.Fatalf("audit entries = %d, want 5", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
		if i > 0 && e.PrevHash != entries[i-1].EntryHash {
			t.Fatalf("entry %d is not linked to its predecessor", e.Seq)
		}
		if e.CapaID != capa.CapaID {
			t.Fatalf("entry %d capa = %s", e.Seq, e.CapaID)
		}
	}
}

func TestTransitionAuditEntryRecordsPhases(t *testing.T) {
	env := setupService(t)
	capa := openCapa(t, env)
	evidenceID := satisfyGate(t, env, capa.CapaID)
	if _, err := requestTransition(env, capa.WorkflowID, domaincapa.PhaseRootCauseAnalysis, manager, evidenceID); err != nil {
		t.Fatalf("transition error = %v", err)
	}

	entries := mustAudit(t, env, capa.WorkflowID)
	last := entries[len(entries)-1]
	if last.Action != string(domaincapa.AuditPhaseTransition) || last.Actor != manager.UserID {
		t.Fatalf("transition entry = %+v", last)
	}

	var before, after map[string]any
	if err := json.Unmarshal(last.Before, &before); err != nil {
		t.Fatalf("decode before: %v", err)
	}
	if err := json.Unmarshal(last.After, &after); err != nil {
		t.Fatalf("decode after: %v", err)
	}
	if before["phase"] != string(domaincapa.PhaseCorrection) || after["phase"] != string(domaincapa.PhaseRootCauseAnalysis) {
		t.Fatalf("snapshots = %v -> %v", before, after)
	}
	if after["signatureHash"] == "" {
		t.Fatalf("after snapshot lacks signature hash: %v", after)
	}
}

func TestAppendAuditCorrection(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)

	input := AuditCorrectionInput{
		WorkflowID:  capa.WorkflowID,
		CorrectsSeq: 1,
		Reason:      "initiator recorded under wrong account",
		Corrected:   map[string]any{"initiator": "alice.smith"},
		Actor:       manager,
	}

	engineerInput := input
	engineerInput.Actor = engineer
	if _, err := env.svc.AppendAuditCorrection(ctx, engineerInput); !errs.Is(err, errs.KindAuthorization) {
		t.Fatalf("AppendAuditCorrection(engineer) error = %v", err)
	}
	noReason := input
	noReason.Reason = " "
	if _, err := env.svc.AppendAuditCorrection(ctx, noReason); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("AppendAuditCorrection(no reason) error = %v", err)
	}
	missing := input
	missing.CorrectsSeq = 42
	if _, err := env.svc.AppendAuditCorrection(ctx, missing); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("AppendAuditCorrection(missing seq) error = %v", err)
	}

	original := mustAudit(t, env, capa.WorkflowID)[0]

	got, err := env.svc.AppendAuditCorrection(ctx, input)
	if err != nil {
		t.Fatalf("AppendAuditCorrection() error = %v", err)
	}
	if got.Seq != 2 || got.CorrectsSeq == nil || *got.CorrectsSeq != 1 || got.Action != string(domaincapa.AuditCorrection) {
		t.Fatalf("correction = %+v", got)
	}
	if string(got.Before) != string(original.After) {
		t.Fatalf("correction before = %s, want corrected entry's after", got.Before)
	}

	entries := mustAudit(t, env, capa.WorkflowID)
	if string(entries[0].After) != string(original.After) || entries[0].EntryHash != original.EntryHash {
		t.Fatalf("original entry was modified")
	}

	report, err := env.svc.VerifyAuditChain(ctx, capa.WorkflowID)
	if err != nil || !report.Valid || report.Entries != 2 {
		t.Fatalf("VerifyAuditChain() = %+v, %v", report, err)
	}
}

func TestVerifyAuditChainDetectsTampering(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)
	satisfyGate(t, env, capa.CapaID)

	if err := env.db.Table("audit_entries").
		Where("workflow_id = ? AND seq = ?", capa.WorkflowID, 3).
		Update("actor", "mallory").Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	report, err := env.svc.VerifyAuditChain(ctx, capa.WorkflowID)
	if err != nil {
		t.Fatalf("VerifyAuditChain() error = %v", err)
	}
	if report.Valid || report.BrokenAtSeq != 3 {
		t.Fatalf("report = %+v, want break at 3", report)
	}

	if _, err := env.svc.VerifyAuditChain(ctx, "missing"); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("VerifyAuditChain(missing) error = %v", err)
	}
}
