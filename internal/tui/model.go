// Package tui is the terminal practice client: search previous-year
// questions, read model answers, and submit answers for scoring.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/pyq"
)

const requestTimeout = 90 * time.Second

type focus int

const (
	focusList focus = iota
	focusKeywords
	focusDraft
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	filterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
)

// subjectChoices cycles with "s"; "" means all subjects.
var subjectChoices = append([]string{""}, models.Subjects...)

var examChoices = []models.ExamType{"", models.ExamPrelims, models.ExamMains}

// presetChoices cycles with "y"; the first entry is the starting range.
var presetChoices = []models.YearPreset{models.PresetLast5Years, models.PresetLast10Years, models.PresetAllYears}

// Model is the bubbletea model for the practice client.
type Model struct {
	ctrl     *pyq.Controller
	signedIn bool
	now      func() time.Time

	focus    focus
	table    table.Model
	keywords textinput.Model
	draft    textarea.Model
	spinner  spinner.Model
	busy     int

	subject int
	exam    int
	preset  int
	page    int

	status string
	err    error
	width  int
}

func NewModel(ctrl *pyq.Controller, signedIn bool) Model {
	t := table.New(
		table.WithColumns(columnsForWidth(100)),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	kw := textinput.New()
	kw.Placeholder = "keywords, comma separated"
	kw.CharLimit = 200

	ta := textarea.New()
	ta.Placeholder = "Write your answer. Option letter for MCQs."
	ta.SetHeight(8)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctrl:     ctrl,
		signedIn: signedIn,
		now:      time.Now,
		table:    t,
		keywords: kw,
		draft:    ta,
		spinner:  sp,
		busy:     1,
		width:    100,
	}
}

// ── Messages ────────────────────────────────────────────

type searchDoneMsg struct{ err error }

type panelDoneMsg struct {
	state pyq.PanelState
	err   error
}

type submitDoneMsg struct {
	resp *models.SubmitAnswerResponse
	err  error
}

func (m Model) params() models.SearchParams {
	p := models.SearchParams{
		Subject:  subjectChoices[m.subject],
		ExamType: examChoices[m.exam],
		Limit:    models.DefaultSearchLimit,
		Offset:   m.page * models.DefaultSearchLimit,
	}
	for _, k := range strings.Split(m.keywords.Value(), ",") {
		if k = strings.TrimSpace(k); k != "" {
			p.Keywords = append(p.Keywords, k)
		}
	}
	presetChoices[m.preset].Apply(&p, m.now())
	return p
}

func (m Model) searchCmd() tea.Cmd {
	ctrl, params := m.ctrl, m.params()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return searchDoneMsg{err: ctrl.Search(ctx, params)}
	}
}

func (m Model) toggleCmd(id uuid.UUID) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		state, err := ctrl.ToggleModelAnswer(ctx, id)
		return panelDoneMsg{state: state, err: err}
	}
}

func (m Model) submitCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := ctrl.Submit(ctx)
		return submitDoneMsg{resp: resp, err: err}
	}
}

// startBusy runs cmd with the spinner going.
func (m Model) startBusy(cmd tea.Cmd) (Model, tea.Cmd) {
	m.busy++
	m.err = nil
	if m.busy == 1 {
		return m, tea.Batch(cmd, m.spinner.Tick)
	}
	return m, cmd
}

// ── Update ──────────────────────────────────────────────

// Init runs the first search; busy starts at 1 for it.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.searchCmd(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columnsForWidth(msg.Width))
		m.table.SetHeight(max(msg.Height/2-4, 5))
		m.draft.SetWidth(max(msg.Width-6, 20))
		return m, nil

	case spinner.TickMsg:
		if m.busy == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case searchDoneMsg:
		m.busy = max(m.busy-1, 0)
		m.err = msg.err
		m.refreshRows()
		return m, nil

	case panelDoneMsg:
		m.busy = max(m.busy-1, 0)
		m.err = msg.err
		return m, nil

	case submitDoneMsg:
		m.busy = max(m.busy-1, 0)
		m.err = msg.err
		if msg.err == nil {
			m.focus = focusList
			m.draft.Blur()
			m.table.Focus()
			m.status = fmt.Sprintf("Answer saved: %.2f marks", derefFloat(msg.resp.Answer.AwardedMarks))
			m.refreshRows()
		}
		return m, nil

	case tea.KeyMsg:
		switch m.focus {
		case focusKeywords:
			return m.updateKeywords(msg)
		case focusDraft:
			return m.updateDraft(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.focus = focusKeywords
		m.table.Blur()
		return m, m.keywords.Focus()
	case "s":
		m.subject = (m.subject + 1) % len(subjectChoices)
		m.page = 0
		return m.startBusy(m.searchCmd())
	case "e":
		m.exam = (m.exam + 1) % len(examChoices)
		m.page = 0
		return m.startBusy(m.searchCmd())
	case "y":
		m.preset = (m.preset + 1) % len(presetChoices)
		m.page = 0
		return m.startBusy(m.searchCmd())
	case "n":
		if snap := m.ctrl.Snapshot(); (m.page+1)*models.DefaultSearchLimit < snap.Count {
			m.page++
			return m.startBusy(m.searchCmd())
		}
		return m, nil
	case "p":
		if m.page > 0 {
			m.page--
			return m.startBusy(m.searchCmd())
		}
		return m, nil
	case "m", "enter":
		if q, ok := m.selected(); ok {
			return m.startBusy(m.toggleCmd(q.ID))
		}
		return m, nil
	case "a":
		q, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.StartDraft(q.ID); err != nil {
			m.err = err
			return m, nil
		}
		m.draft.SetValue(m.ctrl.Snapshot().Panel.Draft)
		m.focus = focusDraft
		m.table.Blur()
		return m, m.draft.Focus()
	case "esc":
		m.ctrl.Close()
		m.status = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateKeywords(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.focus = focusList
		m.keywords.Blur()
		m.table.Focus()
		m.page = 0
		return m.startBusy(m.searchCmd())
	case "esc":
		m.focus = focusList
		m.keywords.Blur()
		m.table.Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.keywords, cmd = m.keywords.Update(msg)
	return m, cmd
}

func (m Model) updateDraft(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		if err := m.ctrl.UpdateDraft(m.draft.Value()); err != nil {
			m.err = err
			return m, nil
		}
		return m.startBusy(m.submitCmd())
	case "esc":
		m.ctrl.Close()
		m.focus = focusList
		m.draft.Blur()
		m.table.Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	return m, cmd
}

func (m Model) selected() (models.ExamQuestion, bool) {
	snap := m.ctrl.Snapshot()
	i := m.table.Cursor()
	if i < 0 || i >= len(snap.Questions) {
		return models.ExamQuestion{}, false
	}
	return snap.Questions[i], true
}

func (m *Model) refreshRows() {
	snap := m.ctrl.Snapshot()
	rows := make([]table.Row, len(snap.Questions))
	for i, q := range snap.Questions {
		mark := ""
		if a, ok := snap.Answers[q.ID]; ok {
			mark = fmt.Sprintf("%.1f/%d", derefFloat(a.AwardedMarks), q.Marks)
		}
		rows[i] = table.Row{
			strconv.Itoa(q.Year), q.Subject, string(q.ExamType), string(q.QuestionType), mark, oneLine(q.QuestionText),
		}
	}
	m.table.SetRows(rows)
}

// ── View ────────────────────────────────────────────────

func (m Model) View() string {
	snap := m.ctrl.Snapshot()

	header := titleStyle.Render("UPSC previous year questions")
	if m.busy > 0 {
		header += " " + m.spinner.View()
	}

	filters := filterStyle.Render(fmt.Sprintf("subject: %s  exam: %s  years: %s  page %d",
		orAll(subjectChoices[m.subject]), orAll(string(examChoices[m.exam])), presetChoices[m.preset], m.page+1))
	found := mutedStyle.Render(fmt.Sprintf("Found %d results", snap.Count))

	parts := []string{header, filters, "Keywords: " + m.keywords.View(), found, m.table.View()}

	if panel := m.renderPanel(snap); panel != "" {
		parts = append(parts, panel)
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	} else if m.status != "" {
		parts = append(parts, okStyle.Render(m.status))
	}
	parts = append(parts, mutedStyle.Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderPanel(snap pyq.Snapshot) string {
	p := snap.Panel
	if p.State == pyq.PanelClosed {
		return ""
	}
	width := max(m.width-4, 20)
	style := panelStyle.Width(width)

	switch p.State {
	case pyq.PanelModelAnswer:
		if p.Loading {
			return style.Render("Generating model answer...")
		}
		return style.Render(titleStyle.Render("Model answer") + "\n" + p.ModelAnswer)
	case pyq.PanelDrafting:
		title := "Your answer"
		if p.Loading {
			title += " (evaluating...)"
		}
		return style.Render(titleStyle.Render(title) + "\n" + m.draft.View())
	case pyq.PanelSubmitted:
		if p.Result == nil {
			return ""
		}
		return style.Render(titleStyle.Render("Evaluation") + "\n" + p.Result.Feedback)
	}
	return ""
}

func (m Model) help() string {
	switch m.focus {
	case focusKeywords:
		return "enter search • esc cancel"
	case focusDraft:
		return "ctrl+s submit • esc discard"
	}
	h := "↑/↓ move • m model answer • / keywords • s subject • e exam • y years • n/p page • q quit"
	if m.signedIn {
		h = "a answer • " + h
	}
	return h
}

func columnsForWidth(width int) []table.Column {
	text := max(width-60, 20)
	return []table.Column{
		{Title: "Year", Width: 6},
		{Title: "Subject", Width: 14},
		{Title: "Exam", Width: 8},
		{Title: "Type", Width: 12},
		{Title: "Score", Width: 8},
		{Title: "Question", Width: text},
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
