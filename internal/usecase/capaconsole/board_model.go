package capaconsole

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	domaincapa "eqms/internal/domain/capa"
	capausecase "eqms/internal/usecase/capa"
)

const maxShownTransitions = 5

// BoardService is the read side of the CAPA service the board renders.
type BoardService interface {
	ListCapas(ctx context.Context, input capausecase.ListCapasInput) ([]capausecase.CapaView, error)
	GetWorkflow(ctx context.Context, workflowID string) (capausecase.WorkflowView, error)
}

type BoardOptions struct {
	Phases          []string
	Assignee        string
	RefreshInterval time.Duration
}

type boardModel struct {
	ctx             context.Context
	service         BoardService
	phases          []string
	assignee        string
	refreshInterval time.Duration

	capas         []capausecase.CapaView
	selectedIndex int
	workflow      capausecase.WorkflowView
	hasWorkflow   bool
	status        string
}

type capasLoadedMsg struct {
	items []capausecase.CapaView
	err   error
}

type workflowLoadedMsg struct {
	workflowID string
	workflow   capausecase.WorkflowView
	err        error
}

type tickMsg struct{}

func NewBoardModel(ctx context.Context, service BoardService, options BoardOptions) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	phases := make([]string, 0, len(options.Phases))
	for _, phase := range options.Phases {
		if trimmed := strings.TrimSpace(phase); trimmed != "" {
			phases = append(phases, trimmed)
		}
	}
	return &boardModel{
		ctx:             ctx,
		service:         service,
		phases:          phases,
		assignee:        strings.TrimSpace(options.Assignee),
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadCapasCmd(), m.tickCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCapasCmd(), m.tickCmd())
	case capasLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.capas = sortByPhase(msg.items)
		if len(m.capas) == 0 {
			m.selectedIndex = 0
			m.hasWorkflow = false
			m.status = "no open CAPAs"
			return m, nil
		}
		if m.selectedIndex >= len(m.capas) {
			m.selectedIndex = len(m.capas) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("refreshed, %d CAPAs", len(m.capas))
		return m, m.loadSelectedWorkflowCmd()
	case workflowLoadedMsg:
		selected, ok := m.selectedCapa()
		if !ok || selected.WorkflowID != msg.workflowID {
			return m, nil
		}
		if msg.err != nil {
			m.hasWorkflow = false
			m.status = "workflow load failed: " + msg.err.Error()
			return m, nil
		}
		m.workflow = msg.workflow
		m.hasWorkflow = true
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.status = "refreshing"
			return m, m.loadCapasCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedWorkflowCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.capas)-1 {
				m.selectedIndex++
				return m, m.loadSelectedWorkflowCmd()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("CAPA Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"phases=%s assignee=%s refresh=%s",
		firstNonEmpty(strings.Join(m.phases, ","), "all"),
		firstNonEmpty(m.assignee, "-"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	if len(m.capas) == 0 {
		builder.WriteString(sectionStyle.Render("Queue"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render("- no CAPAs"))
		builder.WriteString("\n\n")
	}
	var currentPhase domaincapa.Phase
	for index, item := range m.capas {
		if index == 0 || item.Phase != currentPhase {
			if index > 0 {
				builder.WriteString("\n")
			}
			currentPhase = item.Phase
			builder.WriteString(sectionStyle.Render(item.Phase.Label()))
			builder.WriteString("\n")
		}
		line := fmt.Sprintf(
			"%s [%s] due=%s assignee=%s %s",
			item.CapaID,
			item.RiskPriority,
			item.DueDate,
			firstNonEmpty(item.Assignee, "-"),
			item.Title,
		)
		if index == m.selectedIndex {
			builder.WriteString(selectedStyle.Render("> " + line))
		} else {
			builder.WriteString("  " + line)
		}
		builder.WriteString("\n")
	}
	if len(m.capas) > 0 {
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Workflow"))
	builder.WriteString("\n")
	if !m.hasWorkflow {
		builder.WriteString(dimStyle.Render("- no workflow"))
		builder.WriteString("\n\n")
	} else {
		wf := m.workflow
		builder.WriteString(fmt.Sprintf("Workflow: %s (%s)\n", wf.WorkflowID, wf.CapaID))
		builder.WriteString(fmt.Sprintf("Phase: %s v%d\n", wf.PhaseLabel, wf.Version))
		if wf.NextPhase != "" {
			builder.WriteString(fmt.Sprintf("Next: %s\n", wf.NextPhase.Label()))
		}
		builder.WriteString(fmt.Sprintf("Approver: %s\n", firstNonEmpty(wf.AssignedApprover, "-")))
		builder.WriteString("\nTransitions:\n")
		transitions := wf.Transitions
		if len(transitions) == 0 {
			builder.WriteString("- none\n")
		} else {
			start := len(transitions) - maxShownTransitions
			if start < 0 {
				start = 0
			}
			for _, tr := range transitions[start:] {
				builder.WriteString(fmt.Sprintf("- #%d %s -> %s by %s at %s\n", tr.TransitionID, tr.From, tr.To, tr.ApproverID, tr.CreatedAt))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  r refresh  q quit"))
	return builder.String()
}

func (m *boardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *boardModel) loadCapasCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListCapas(m.ctx, capausecase.ListCapasInput{
			Phases:   m.phases,
			Assignee: m.assignee,
		})
		if err != nil {
			return capasLoadedMsg{err: err}
		}
		return capasLoadedMsg{items: items}
	}
}

func (m *boardModel) loadSelectedWorkflowCmd() tea.Cmd {
	selected, ok := m.selectedCapa()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		wf, err := m.service.GetWorkflow(m.ctx, selected.WorkflowID)
		return workflowLoadedMsg{workflowID: selected.WorkflowID, workflow: wf, err: err}
	}
}

func (m *boardModel) selectedCapa() (capausecase.CapaView, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.capas) {
		return capausecase.CapaView{}, false
	}
	return m.capas[m.selectedIndex], true
}

// sortByPhase orders CAPAs by lifecycle position and keeps the service
// ordering inside a phase.
func sortByPhase(items []capausecase.CapaView) []capausecase.CapaView {
	out := make([]capausecase.CapaView, 0, len(items))
	for _, phase := range domaincapa.Phases() {
		for _, item := range items {
			if item.Phase == phase {
				out = append(out, item)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
