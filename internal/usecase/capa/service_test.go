package capa

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "eqms/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "eqms/internal/infrastructure/persistence/sqlite/uow"
	"eqms/internal/ports"
)

var (
	testClock = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	initiator = domaincapa.NewPrincipal("alice", "contributor")
	owner     = domaincapa.NewPrincipal("olga", "capa_owner")
	engineer  = domaincapa.NewPrincipal("erin", "quality_engineer")
	manager   = domaincapa.NewPrincipal("max", "quality_manager")
)

type testCache struct {
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type recordingNotifier struct {
	events []domaincapa.DomainEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event domaincapa.DomainEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) count(eventType domaincapa.EventType) int {
	total := 0
	for _, e := range n.events {
		if e.Type == eventType {
			total++
		}
	}
	return total
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	cache    *testCache
	notifier *recordingNotifier
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	return setupServiceWithRepo(t, nil)
}

// setupServiceWithRepo lets a test wrap the sqlite repository to inject
// failures.
func setupServiceWithRepo(t *testing.T, wrap func(ports.CapaRepository) ports.CapaRepository) *testEnv {
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

	var repo ports.CapaRepository = sqliterepo.NewCapaRepository(db)
	if wrap != nil {
		repo = wrap(repo)
	}

	cache := newTestCache()
	notifier := &recordingNotifier{}
	svc := NewService(repo, sqliteuow.NewUnitOfWork(db), cache, notifier, nil, Settings{IDPrefix: "capa"})
	svc.now = func() time.Time { return testClock }

	return &testEnv{svc: svc, db: db, cache: cache, notifier: notifier}
}

func sampleDraft() domaincapa.CapaDraft {
	return domaincapa.CapaDraft{
		Title:               "Pressure sensor drift",
		Description:         "Complaint batch shows pressure sensor drift on line 4",
		Source:              domaincapa.SourceComplaint,
		RiskPriority:        domaincapa.RiskHigh,
		PatientSafetyImpact: true,
		DueDate:             time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func openCapa(t *testing.T, env *testEnv) CapaView {
	t.Helper()
	view, err := env.svc.CreateCapa(context.Background(), initiator, sampleDraft())
	if err != nil {
		t.Fatalf("CreateCapa() error = %v", err)
	}
	return view
}

func addAction(t *testing.T, env *testEnv, capaID string) ActionView {
	t.Helper()
	action, err := env.svc.CreateAction(context.Background(), initiator, capaID, domaincapa.ActionDraft{
		Title: "Contain affected lots",
		Owner: owner.UserID,
	})
	if err != nil {
		t.Fatalf("CreateAction() error = %v", err)
	}
	return action
}

func attachDocument(t *testing.T, env *testEnv, actionID string) EvidenceView {
	t.Helper()
	ev, err := env.svc.AttachEvidence(context.Background(), initiator, actionID, domaincapa.EvidenceDraft{
		Title:       "Fix applied",
		Description: "Replaced faulty sensor",
		Type:        domaincapa.EvidenceDocument,
		FileRef:     "dms://QA-114",
	})
	if err != nil {
		t.Fatalf("AttachEvidence() error = %v", err)
	}
	return ev
}

func reviewEvidence(t *testing.T, env *testEnv, evidenceID string, outcome string) {
	t.Helper()
	if _, err := env.svc.VerifyEvidence(context.Background(), VerifyEvidenceInput{
		EvidenceID: evidenceID,
		Reviewer:   engineer,
		Outcome:    outcome,
		Comments:   "checked against DMS record",
	}); err != nil {
		t.Fatalf("VerifyEvidence() error = %v", err)
	}
}

// satisfyGate records one action with approved evidence and an approved
// sign-off in the current phase and returns the evidence id.
func satisfyGate(t *testing.T, env *testEnv, capaID string) string {
	t.Helper()
	action := addAction(t, env, capaID)
	ev := attachDocument(t, env, action.ActionID)
	reviewEvidence(t, env, ev.EvidenceID, "approved")
	if _, err := env.svc.VerifyAction(context.Background(), VerifyActionInput{
		ActionID: action.ActionID,
		Verifier: manager,
		Outcome:  "approved",
	}); err != nil {
		t.Fatalf("VerifyAction() error = %v", err)
	}
	return ev.EvidenceID
}

func sign(p domaincapa.Principal, meaning string) domaincapa.Signature {
	return domaincapa.Signature{UserID: p.UserID, SignedAt: testClock, Meaning: meaning}
}

func requestTransition(env *testEnv, workflowID string, target domaincapa.Phase, approver domaincapa.Principal, refs ...string) (WorkflowView, error) {
	return env.svc.RequestTransition(context.Background(), TransitionRequest{
		WorkflowID:   workflowID,
		TargetPhase:  string(target),
		Approver:     approver,
		EvidenceRefs: refs,
		Signature:    sign(approver, "approve move to "+target.Label()),
	})
}

func mustWorkflow(t *testing.T, env *testEnv, workflowID string) WorkflowView {
	t.Helper()
	wf, err := env.svc.GetWorkflow(context.Background(), workflowID)
	if err != nil {
		t.Fatalf("GetWorkflow() error = %v", err)
	}
	return wf
}

func mustAudit(t *testing.T, env *testEnv, workflowID string) []AuditEntryView {
	t.Helper()
	entries, err := env.svc.ListAuditEntries(context.Background(), workflowID)
	if err != nil {
		t.Fatalf("ListAuditEntries() error = %v", err)
	}
	return entries
}
