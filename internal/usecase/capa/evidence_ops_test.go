package capa

import (
	"context"
	"strings"
	"testing"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
)

func TestVerifyEvidenceFourEyes(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)
	action := addAction(t, env, capa.CapaID)

	ev, err := env.svc.AttachEvidence(ctx, manager, action.ActionID, domaincapa.EvidenceDraft{
		Title:       "Retest report",
		Description: "Retest of ten units after the fix",
		Type:        domaincapa.EvidenceLink,
		URL:         "https://dms.example.com/reports/77",
	})
	if err != nil {
		t.Fatalf("AttachEvidence() error = %v", err)
	}

	for _, outcome := range []string{"approved", "rejected", "bogus"} {
		_, err := env.svc.VerifyEvidence(ctx, VerifyEvidenceInput{EvidenceID: ev.EvidenceID, Reviewer: manager, Outcome: outcome})
		if !errs.Is(err, errs.KindAuthorization) {
			t.Fatalf("self review (%s) error = %v, want authorization", outcome, err)
		}
	}

	reviewEvidence(t, env, ev.EvidenceID, "approved")
	_, err = env.svc.VerifyEvidence(ctx, VerifyEvidenceInput{EvidenceID: ev.EvidenceID, Reviewer: manager, Outcome: "approved"})
	if !errs.Is(err, errs.KindAuthorization) {
		t.Fatalf("self review after review error = %v, want authorization", err)
	}
}

func TestVerifyEvidenceSecondReviewIsRejected(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)
	action := addAction(t, env, capa.CapaID)
	ev := attachDocument(t, env, action.ActionID)

	reviewEvidence(t, env, ev.EvidenceID, "approved")
	auditBefore := len(mustAudit(t, env, capa.WorkflowID))

	_, err := env.svc.VerifyEvidence(ctx, VerifyEvidenceInput{
		EvidenceID: ev.EvidenceID,
		Reviewer:   manager,
		Outcome:    "rejected",
		Comments:   "second opinion",
	})
	if !errs.Is(err, errs.KindAlreadyReviewed) {
		t.Fatalf("second review error = %v, want already_reviewed", err)
	}

	items, err := env.svc.ListEvidence(ctx, action.ActionID)
	if err != nil {
		t.Fatalf("ListEvidence() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("evidence = %+v", items)
	}
	got := items[0]
	if got.ReviewedBy != engineer.UserID || got.Outcome != string(domaincapa.OutcomeApproved) || got.ReviewComments != "checked against DMS record" {
		t.Fatalf("first review changed: %+v", got)
	}
	if len(mustAudit(t, env, capa.WorkflowID)) != auditBefore {
		t.Fatalf("failed review wrote an audit entry")
	}
	if env.notifier.count(domaincapa.EventEvidenceVerified) != 1 {
		t.Fatalf("evidence verified events = %d", env.notifier.count(domaincapa.EventEvidenceVerified))
	}
}

func TestVerifyEvidenceChecks(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)
	action := addAction(t, env, capa.CapaID)
	ev := attachDocument(t, env, action.ActionID)

	tests := []struct {
		name  string
		input VerifyEvidenceInput
		want  errs.Kind
	}{
		{"unknown evidence", VerifyEvidenceInput{EvidenceID: "missing", Reviewer: engineer, Outcome: "approved"}, errs.KindNotFound},
		{"reviewer without role", VerifyEvidenceInput{EvidenceID: ev.EvidenceID, Reviewer: owner, Outcome: "approved"}, errs.KindAuthorization},
		{"anonymous reviewer", VerifyEvidenceInput{EvidenceID: ev.EvidenceID, Outcome: "approved"}, errs.KindAuthorization},
		{"unknown outcome", VerifyEvidenceInput{EvidenceID: ev.EvidenceID, Reviewer: engineer, Outcome: "maybe"}, errs.KindValidation},
		{"reject without comments", VerifyEvidenceInput{EvidenceID: ev.EvidenceID, Reviewer: engineer, Outcome: "rejected"}, errs.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.VerifyEvidence(ctx, tt.input); !errs.Is(err, tt.want) {
				t.Fatalf("VerifyEvidence() error = %v, want %s", err, tt.want)
			}
		})
	}

	items, err := env.svc.ListEvidence(ctx, action.ActionID)
	if err != nil {
		t.Fatalf("ListEvidence() error = %v", err)
	}
	if items[0].Reviewed {
		t.Fatalf("failed reviews marked evidence reviewed")
	}
}

func TestAttachEvidence(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)
	action := addAction(t, env, capa.CapaID)

	_, err := env.svc.AttachEvidence(ctx, initiator, action.ActionID, domaincapa.EvidenceDraft{
		Title:       "Fix",
		Description: "short",
		Type:        domaincapa.EvidenceDocument,
		FileRef:     "dms://1",
	})
	if !errs.Is(err, errs.KindValidation) {
		t.Fatalf("AttachEvidence(short description) error = %v", err)
	}

	_, err = env.svc.AttachEvidence(ctx, initiator, action.ActionID, domaincapa.EvidenceDraft{
		Title:       "Run log",
		Description: "Line 4 verification run",
		Type:        domaincapa.EvidenceLink,
		URL:         "ci/runs/42",
	})
	if !errs.Is(err, errs.KindValidation) || !strings.Contains(err.Error(), "url") {
		t.Fatalf("AttachEvidence(bad url) error = %v", err)
	}

	if _, err := env.svc.AttachEvidence(ctx, initiator, "missing", domaincapa.EvidenceDraft{
		Title:       "Fix applied",
		Description: "Replaced faulty sensor",
		Type:        domaincapa.EvidenceDocument,
		FileRef:     "dms://QA-114",
	}); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("AttachEvidence(missing action) error = %v", err)
	}

	ev := attachDocument(t, env, action.ActionID)
	if ev.CapaID != capa.CapaID || ev.SubmittedBy != initiator.UserID || ev.Type != "document" {
		t.Fatalf("evidence = %+v", ev)
	}
	if env.notifier.count(domaincapa.EventEvidenceAttached) != 1 {
		t.Fatalf("attached events = %d", env.notifier.count(domaincapa.EventEvidenceAttached))
	}

	entries := mustAudit(t, env, capa.WorkflowID)
	if last := entries[len(entries)-1]; last.Action != string(domaincapa.AuditEvidenceAttached) || last.Actor != initiator.UserID {
		t.Fatalf("last audit entry = %+v", last)
	}
}

func TestAttachEvidenceToEarlierPhaseActionFails(t *testing.T) {
	env := setupService(t)
	capa := openCapa(t, env)
	action := addAction(t, env, capa.CapaID)
	ev := attachDocument(t, env, action.ActionID)
	reviewEvidence(t, env, ev.EvidenceID, "approved")

	if _, err := requestTransition(env, capa.WorkflowID, domaincapa.PhaseRootCauseAnalysis, manager, ev.EvidenceID); err != nil {
		t.Fatalf("transition error = %v", err)
	}

	_, err := env.svc.AttachEvidence(context.Background(), initiator, action.ActionID, domaincapa.EvidenceDraft{
		Title:       "Late upload",
		Description: "Photo of the replaced sensor",
		Type:        domaincapa.EvidenceDocument,
		FileRef:     "dms://QA-115",
	})
	if !errs.Is(err, errs.KindInvalidState) {
		t.Fatalf("AttachEvidence(previous phase) error = %v, want invalid_state", err)
	}
}

func TestVerifyAction(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	capa := openCapa(t, env)
	action := addAction(t, env, capa.CapaID)

	verify := func(verifier domaincapa.Principal, outcome string) (ActionVerification, error) {
		return env.svc.VerifyAction(ctx, VerifyActionInput{ActionID: action.ActionID, Verifier: verifier, Outcome: outcome})
	}

	if _, err := verify(manager, "approved"); !errs.Is(err, errs.KindPrecondition) {
		t.Fatalf("VerifyAction(no evidence) error = %v", err)
	}

	approved := attachDocument(t, env, action.ActionID)
	rejected := attachDocument(t, env, action.ActionID)
	reviewEvidence(t, env, approved.EvidenceID, "approved")

	if _, err := verify(manager, "approved"); !errs.Is(err, errs.KindPrecondition) {
		t.Fatalf("VerifyAction(unreviewed evidence) error = %v", err)
	}

	reviewEvidence(t, env, rejected.EvidenceID, "rejected")

	ownerReviewer := domaincapa.NewPrincipal(owner.UserID, "quality_engineer")
	if _, err := verify(ownerReviewer, "approved"); !errs.Is(err, errs.KindAuthorization) {
		t.Fatalf("VerifyAction(owner) error = %v", err)
	}
	if _, err := verify(initiator, "approved"); !errs.Is(err, errs.KindAuthorization) {
		t.Fatalf("VerifyAction(contributor) error = %v", err)
	}

	got, err := verify(manager, "approved")
	if err != nil {
		t.Fatalf("VerifyAction() error = %v", err)
	}
	if got.EvidenceTotal != 2 || got.EvidenceApproved != 1 || got.EvidenceRejected != 1 {
		t.Fatalf("verification counts = %+v", got)
	}
	if got.VerifiedBy != manager.UserID || got.Outcome != string(domaincapa.OutcomeApproved) {
		t.Fatalf("verification = %+v", got)
	}

	if _, err := verify(engineer, "rejected"); !errs.Is(err, errs.KindAlreadyReviewed) {
		t.Fatalf("second VerifyAction() error = %v", err)
	}

	actions, err := env.svc.ListActions(ctx, capa.CapaID, "")
	if err != nil {
		t.Fatalf("ListActions() error = %v", err)
	}
	if len(actions) != 1 || !actions[0].Verified || actions[0].VerifiedBy != manager.UserID {
		t.Fatalf("actions = %+v", actions)
	}
	if env.notifier.count(domaincapa.EventActionVerified) != 1 {
		t.Fatalf("action verified events = %d", env.notifier.count(domaincapa.EventActionVerified))
	}
}
