package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"eqms/internal/infrastructure/persistence/sqlite/model"
	"eqms/internal/ports"
)

const testNow = "2025-03-01T09:00:00Z"

func setupCapaRepository(t *testing.T) *CapaRepository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "eqms.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewCapaRepository(db)
}

func seedCapa(t *testing.T, repo *CapaRepository, capaID string, workflowID string, phase string) {
	t.Helper()
	ctx := context.Background()

	if err := repo.CreateCapa(ctx, ports.CapaRecord{
		CapaID:       capaID,
		Title:        "Sensor drift",
		Description:  "Pressure sensor drift on line 4",
		Source:       "complaint",
		RiskPriority: "high",
		Initiator:    "alice",
		DueDate:      "2025-06-01",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}); err != nil {
		t.Fatalf("CreateCapa() error = %v", err)
	}
	if err := repo.CreateWorkflow(ctx, ports.Workflow{
		WorkflowID: workflowID,
		CapaID:     capaID,
		Phase:      phase,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
}

func TestNextSequenceStartsAtOneAndIncrements(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextSequence(ctx, "capa:CAPA:2025")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Fatalf("NextSequence() = %d, want %d", got, want)
		}
	}

	got, err := repo.NextSequence(ctx, "capa:CAPA:2026")
	if err != nil {
		t.Fatalf("NextSequence(2026) error = %v", err)
	}
	if got != 1 {
		t.Fatalf("NextSequence(2026) = %d, want 1", got)
	}
}

func TestUpdateWorkflowDetectsStaleVersion(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()
	seedCapa(t, repo, "CAPA-2025-001", "wf-1", "correction")

	updated, err := repo.UpdateWorkflow(ctx, ports.WorkflowUpdate{
		WorkflowID:      "wf-1",
		ExpectedVersion: 1,
		Phase:           "root_cause_analysis",
		UpdatedAt:       testNow,
	})
	if err != nil {
		t.Fatalf("UpdateWorkflow() error = %v", err)
	}
	if updated.Version != 2 || updated.Phase != "root_cause_analysis" {
		t.Fatalf("UpdateWorkflow() = %+v", updated)
	}

	_, err = repo.UpdateWorkflow(ctx, ports.WorkflowUpdate{
		WorkflowID:      "wf-1",
		ExpectedVersion: 1,
		Phase:           "cancelled",
		UpdatedAt:       testNow,
	})
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("UpdateWorkflow(stale) error = %v, want ErrConflict", err)
	}

	got, err := repo.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow() error = %v", err)
	}
	if got.Phase != "root_cause_analysis" {
		t.Fatalf("phase after stale update = %q", got.Phase)
	}

	_, err = repo.UpdateWorkflow(ctx, ports.WorkflowUpdate{WorkflowID: "missing", ExpectedVersion: 1})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("UpdateWorkflow(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMarkEvidenceReviewedOnlyOnce(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()
	seedCapa(t, repo, "CAPA-2025-001", "wf-1", "correction")

	if err := repo.CreateEvidence(ctx, ports.Evidence{
		EvidenceID:  "ev-1",
		ActionID:    "act-1",
		CapaID:      "CAPA-2025-001",
		Title:       "Fix applied",
		Description: "Replaced the faulty sensor",
		Type:        "document",
		FileRef:     "dms://QA-114",
		SubmittedBy: "bob",
		SubmittedAt: testNow,
	}); err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}

	review := ports.EvidenceReview{EvidenceID: "ev-1", ReviewedBy: "carol", Outcome: "approved", ReviewedAt: testNow}
	if err := repo.MarkEvidenceReviewed(ctx, review); err != nil {
		t.Fatalf("MarkEvidenceReviewed() error = %v", err)
	}

	review.ReviewedBy = "dave"
	review.Outcome = "rejected"
	if err := repo.MarkEvidenceReviewed(ctx, review); !errors.Is(err, ports.ErrAlreadyReviewed) {
		t.Fatalf("second MarkEvidenceReviewed() error = %v", err)
	}

	got, err := repo.GetEvidence(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvidence() error = %v", err)
	}
	if got.ReviewedBy != "carol" || got.Outcome != "approved" || got.ReviewedAt == nil {
		t.Fatalf("evidence after second review = %+v", got)
	}

	if err := repo.MarkEvidenceReviewed(ctx, ports.EvidenceReview{EvidenceID: "missing", ReviewedBy: "carol"}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("MarkEvidenceReviewed(missing) error = %v", err)
	}
}

func TestListEvidenceByActions(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()

	for _, ev := range []ports.Evidence{
		{EvidenceID: "ev-1", ActionID: "act-1", CapaID: "CAPA-2025-001", SubmittedAt: "2025-03-01T09:00:00Z"},
		{EvidenceID: "ev-2", ActionID: "act-2", CapaID: "CAPA-2025-001", SubmittedAt: "2025-03-01T09:01:00Z"},
		{EvidenceID: "ev-3", ActionID: "act-3", CapaID: "CAPA-2025-002", SubmittedAt: "2025-03-01T09:02:00Z"},
	} {
		ev.Title = "title"
		ev.Description = "description"
		ev.Type = "document"
		ev.SubmittedBy = "bob"
		if err := repo.CreateEvidence(ctx, ev); err != nil {
			t.Fatalf("CreateEvidence(%s) error = %v", ev.EvidenceID, err)
		}
	}

	items, err := repo.ListEvidence(ctx, ports.EvidenceFilter{CapaID: "CAPA-2025-001"})
	if err != nil || len(items) != 2 {
		t.Fatalf("ListEvidence(capa) = %d items, err=%v", len(items), err)
	}

	items, err = repo.ListEvidence(ctx, ports.EvidenceFilter{ActionIDs: []string{"act-2", "act-3"}})
	if err != nil || len(items) != 2 || items[0].EvidenceID != "ev-2" {
		t.Fatalf("ListEvidence(actions) = %+v, err=%v", items, err)
	}

	items, err = repo.ListEvidence(ctx, ports.EvidenceFilter{ActionIDs: []string{}})
	if err != nil || len(items) != 0 {
		t.Fatalf("ListEvidence(no actions) = %+v, err=%v", items, err)
	}
}

func TestAuditSeqAllocationAndLastEntry(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()
	seedCapa(t, repo, "CAPA-2025-001", "wf-1", "correction")

	if _, found, err := repo.LastAuditEntry(ctx, "wf-1"); err != nil || found {
		t.Fatalf("LastAuditEntry() on empty log found=%v err=%v", found, err)
	}

	for i := uint64(1); i <= 2; i++ {
		seq, err := repo.AllocateAuditSeq(ctx, "wf-1")
		if err != nil {
			t.Fatalf("AllocateAuditSeq() error = %v", err)
		}
		if seq != i {
			t.Fatalf("AllocateAuditSeq() = %d, want %d", seq, i)
		}
		if err := repo.AppendAuditEntry(ctx, ports.AuditEntry{
			WorkflowID: "wf-1",
			Seq:        seq,
			CapaID:     "CAPA-2025-001",
			Actor:      "alice",
			Action:     "capa.updated",
			BeforeJSON: "{}",
			AfterJSON:  "{}",
			EntryHash:  "h",
			CreatedAt:  testNow,
		}); err != nil {
			t.Fatalf("AppendAuditEntry() error = %v", err)
		}
	}

	last, found, err := repo.LastAuditEntry(ctx, "wf-1")
	if err != nil || !found || last.Seq != 2 {
		t.Fatalf("LastAuditEntry() = %+v found=%v err=%v", last, found, err)
	}

	err = repo.AppendAuditEntry(ctx, ports.AuditEntry{WorkflowID: "wf-1", Seq: 2, CapaID: "CAPA-2025-001", Actor: "x", Action: "y", EntryHash: "h", CreatedAt: testNow})
	if err == nil {
		t.Fatalf("AppendAuditEntry() accepted a duplicate seq")
	}
}

func TestSoftDeleteHidesCapaAndWorkflow(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()
	seedCapa(t, repo, "CAPA-2025-001", "wf-1", "correction")
	seedCapa(t, repo, "CAPA-2025-002", "wf-2", "corrective_action")

	if err := repo.SoftDeleteCapa(ctx, "CAPA-2025-001"); err != nil {
		t.Fatalf("SoftDeleteCapa() error = %v", err)
	}
	if _, err := repo.GetCapa(ctx, "CAPA-2025-001"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("GetCapa(deleted) error = %v", err)
	}
	if _, err := repo.GetWorkflow(ctx, "wf-1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("GetWorkflow(deleted) error = %v", err)
	}

	items, err := repo.ListCapas(ctx, ports.CapaFilter{})
	if err != nil {
		t.Fatalf("ListCapas() error = %v", err)
	}
	if len(items) != 1 || items[0].Capa.CapaID != "CAPA-2025-002" || items[0].Workflow.WorkflowID != "wf-2" {
		t.Fatalf("ListCapas() = %+v", items)
	}

	items, err = repo.ListCapas(ctx, ports.CapaFilter{Phases: []string{"correction"}})
	if err != nil || len(items) != 0 {
		t.Fatalf("ListCapas(correction) = %+v err=%v", items, err)
	}
}

func TestTransitionsAndApprovalsRoundTrip(t *testing.T) {
	repo := setupCapaRepository(t)
	ctx := context.Background()
	seedCapa(t, repo, "CAPA-2025-001", "wf-1", "correction")

	tr, err := repo.AppendTransition(ctx, ports.PhaseTransition{
		WorkflowID:    "wf-1",
		FromPhase:     "correction",
		ToPhase:       "root_cause_analysis",
		ApproverID:    "qm",
		SignatureHash: "abc",
		EvidenceRefs:  []string{"ev-1", "ev-2"},
		CreatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("AppendTransition() error = %v", err)
	}
	if tr.TransitionID == 0 {
		t.Fatalf("AppendTransition() did not assign an id")
	}
	if err := repo.CreateApproval(ctx, ports.ApprovalRecord{
		TransitionID:  tr.TransitionID,
		WorkflowID:    "wf-1",
		UserID:        "qm",
		Roles:         []string{"quality_manager", "capa_owner"},
		Meaning:       "approve",
		SignedAt:      testNow,
		SignatureHash: "abc",
	}); err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}

	transitions, err := repo.ListTransitions(ctx, "wf-1")
	if err != nil || len(transitions) != 1 || len(transitions[0].EvidenceRefs) != 2 {
		t.Fatalf("ListTransitions() = %+v err=%v", transitions, err)
	}
	approvals, err := repo.ListApprovals(ctx, "wf-1")
	if err != nil || len(approvals) != 1 || len(approvals[0].Roles) != 2 {
		t.Fatalf("ListApprovals() = %+v err=%v", approvals, err)
	}
}
