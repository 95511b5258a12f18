package capaconsole

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	domaincapa "eqms/internal/domain/capa"
	capausecase "eqms/internal/usecase/capa"
)

type fakeBoardService struct {
	capas     []capausecase.CapaView
	workflows map[string]capausecase.WorkflowView
	listErr   error
	lastInput capausecase.ListCapasInput
}

func (f *fakeBoardService) ListCapas(_ context.Context, input capausecase.ListCapasInput) ([]capausecase.CapaView, error) {
	f.lastInput = input
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.capas, nil
}

func (f *fakeBoardService) GetWorkflow(_ context.Context, workflowID string) (capausecase.WorkflowView, error) {
	wf, ok := f.workflows[workflowID]
	if !ok {
		return capausecase.WorkflowView{}, errors.New("workflow not found")
	}
	return wf, nil
}

func newFakeBoardService() *fakeBoardService {
	return &fakeBoardService{
		capas: []capausecase.CapaView{
			{CapaID: "CAPA-2025-002", WorkflowID: "wf-2", Phase: domaincapa.PhaseCorrectiveAction, Title: "Label misprint", RiskPriority: "medium", DueDate: "2025-05-01"},
			{CapaID: "CAPA-2025-001", WorkflowID: "wf-1", Phase: domaincapa.PhaseCorrection, Title: "Sensor drift", RiskPriority: "high", DueDate: "2025-06-01", Assignee: "olga"},
		},
		workflows: map[string]capausecase.WorkflowView{
			"wf-1": {
				WorkflowID: "wf-1",
				CapaID:     "CAPA-2025-001",
				Phase:      domaincapa.PhaseCorrection,
				PhaseLabel: domaincapa.PhaseCorrection.Label(),
				NextPhase:  domaincapa.PhaseRootCauseAnalysis,
				Version:    1,
			},
			"wf-2": {
				WorkflowID: "wf-2",
				CapaID:     "CAPA-2025-002",
				Phase:      domaincapa.PhaseCorrectiveAction,
				PhaseLabel: domaincapa.PhaseCorrectiveAction.Label(),
				Version:    3,
				Transitions: []capausecase.TransitionView{
					{TransitionID: 1, From: domaincapa.PhaseCorrection, To: domaincapa.PhaseRootCauseAnalysis, ApproverID: "erin"},
					{TransitionID: 2, From: domaincapa.PhaseRootCauseAnalysis, To: domaincapa.PhaseCorrectiveAction, ApproverID: "erin"},
				},
			},
		},
	}
}

// run feeds a command's message back into the model, the way the tea
// runtime would.
func run(t *testing.T, model tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	if cmd == nil {
		return model
	}
	next, _ := model.Update(cmd())
	return next
}

func TestBoardLoadsAndGroupsByPhase(t *testing.T) {
	service := newFakeBoardService()
	m := NewBoardModel(context.Background(), service, BoardOptions{Phases: []string{" correction ", "", "corrective_action"}})
	board := m.(*boardModel)

	m = run(t, m, board.loadCapasCmd())
	m = run(t, m, board.loadSelectedWorkflowCmd())

	if len(service.lastInput.Phases) != 2 {
		t.Fatalf("phases passed = %v", service.lastInput.Phases)
	}
	if board.capas[0].CapaID != "CAPA-2025-001" {
		t.Fatalf("first capa = %s, want the correction-phase CAPA first", board.capas[0].CapaID)
	}
	if !board.hasWorkflow || board.workflow.WorkflowID != "wf-1" {
		t.Fatalf("workflow = %+v", board.workflow)
	}

	view := m.View()
	for _, want := range []string{"CAPA Board", "Correction", "CAPA-2025-001", "CAPA-2025-002", "Workflow: wf-1", "refreshed, 2 CAPAs"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "CAPA-2025-001") > strings.Index(view, "CAPA-2025-002") {
		t.Fatalf("CAPAs not ordered by phase:\n%s", view)
	}
}

func TestBoardNavigationLoadsSelectedWorkflow(t *testing.T) {
	service := newFakeBoardService()
	m := NewBoardModel(context.Background(), service, BoardOptions{})
	board := m.(*boardModel)
	m = run(t, m, board.loadCapasCmd())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if board.selectedIndex != 1 {
		t.Fatalf("selectedIndex = %d, want 1", board.selectedIndex)
	}
	m = run(t, m, cmd)
	if board.workflow.WorkflowID != "wf-2" {
		t.Fatalf("workflow = %s, want wf-2", board.workflow.WorkflowID)
	}
	if view := m.View(); !strings.Contains(view, "#2 root_cause_analysis -> corrective_action by erin") {
		t.Fatalf("view missing transition:\n%s", view)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if board.selectedIndex != 1 || cmd != nil {
		t.Fatalf("moving past the end: index=%d cmd=%v", board.selectedIndex, cmd != nil)
	}
}

func TestBoardIgnoresStaleWorkflow(t *testing.T) {
	service := newFakeBoardService()
	m := NewBoardModel(context.Background(), service, BoardOptions{})
	board := m.(*boardModel)
	m = run(t, m, board.loadCapasCmd())

	m.Update(workflowLoadedMsg{workflowID: "wf-2", workflow: service.workflows["wf-2"]})
	if board.hasWorkflow {
		t.Fatalf("stale workflow was applied")
	}
}

func TestBoardRefreshFailureKeepsItems(t *testing.T) {
	service := newFakeBoardService()
	m := NewBoardModel(context.Background(), service, BoardOptions{})
	board := m.(*boardModel)
	m = run(t, m, board.loadCapasCmd())

	service.listErr = errors.New("database is locked")
	m = run(t, m, board.loadCapasCmd())
	if len(board.capas) != 2 {
		t.Fatalf("capas dropped on failed refresh: %d", len(board.capas))
	}
	if !strings.Contains(board.status, "database is locked") {
		t.Fatalf("status = %q", board.status)
	}

	service.listErr = nil
	service.capas = nil
	run(t, m, board.loadCapasCmd())
	if board.hasWorkflow || board.status != "no open CAPAs" {
		t.Fatalf("empty refresh: hasWorkflow=%v status=%q", board.hasWorkflow, board.status)
	}
}

func TestBoardQuitKeys(t *testing.T) {
	m := NewBoardModel(context.Background(), newFakeBoardService(), BoardOptions{})
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("key %q returned no command", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("key %q did not quit", key.String())
		}
	}
}
