package app

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/labops/runcontrol/internal/completion"
	"github.com/labops/runcontrol/internal/history"
	"github.com/labops/runcontrol/internal/run"
	"github.com/labops/runcontrol/internal/schedule"
	"github.com/labops/runcontrol/internal/selection"
	"github.com/labops/runcontrol/internal/workcell"
	"github.com/labops/runcontrol/pkg/client"
)

type status int

const (
	statusLoading status = iota
	statusReady
	statusError
)

// Deps carries the collaborators the console model drives. They are
// constructed once per session by the console command.
type Deps struct {
	Client          *client.Client
	RunID           string
	LabID           string
	MaxScheduleTime time.Duration
	Bridge          *Bridge
	Coordinator     *schedule.Coordinator
	Gate            *schedule.WarningsGate
	History         *history.Store
}

// drawerState receives the selection's empty/non-empty transitions.
// Selection mutations only happen inside Update, so reads from View
// never race.
type drawerState struct {
	open bool
}

func (d *drawerState) OpenDrawer()  { d.open = true }
func (d *drawerState) CloseDrawer() { d.open = false }

// Model represents the Bubble Tea program state for one run view.
type Model struct {
	deps    Deps
	spinner spinner.Model
	state   status
	err     error

	run      run.Run
	sel      *selection.Model
	tracker  *completion.Tracker
	resolver *workcell.Resolver
	drawer   *drawerState

	instructions table.Model

	workcells   []client.Workcell
	workcellIdx int
	sessions    []client.Session
	sessionIdx  int // 0 = new session

	stats    *client.SchedulerStats
	notice   string
	failure  string
	warnings map[string]string
	landed   string // session id of the last successful schedule
	bulk     bool

	showHistory bool
	records     []history.Record

	viewportWidth  int
	viewportHeight int
}

// New creates the root model with dependency references.
func New(deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		deps:         deps,
		spinner:      sp,
		state:        statusLoading,
		drawer:       &drawerState{},
		resolver:     workcell.NewResolver(deps.Client.Workcells()),
		instructions: createTable(instructionColumnTitles, instructionColumnDefaults),
	}
}

// Init bootstraps async fetches, the spinner, and the render tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadRun(m.deps.Client, m.deps.RunID),
		loadWorkcells(m.deps.Client, m.deps.LabID),
		tickEvery(),
	)
}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.viewportWidth = msg.Width
		m.viewportHeight = msg.Height
		m.instructions.SetHeight(max(5, msg.Height-12))
		m.instructions.SetWidth(max(20, msg.Width-8))
		m.resizeColumns(max(10, msg.Width-10))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		// periodic repaint while a countdown or poll is running
		return m, tickEvery()

	case runLoadedMsg:
		m.state = statusReady
		m.err = nil
		m.run = msg.run
		m.sel = selection.New(m.run, m.drawer)
		m.tracker = completion.NewTracker(m.run, m.deps.Bridge)
		m.instructions.SetRows(instructionsToRows(m.run, m.sel))
		m.instructions.Focus()

	case workcellsLoadedMsg:
		m.workcells = msg.workcells
		m.workcellIdx = 0
		m.sessionIdx = 0
		if wc, ok := m.currentWorkcell(); ok {
			return m, loadSessions(m.resolver, wc.WorkcellID)
		}

	case sessionsLoadedMsg:
		if wc, ok := m.currentWorkcell(); ok && wc.WorkcellID == msg.workcellID {
			m.sessions = msg.sessions
			if m.sessionIdx > len(m.sessions) {
				m.sessionIdx = 0
			}
		}

	case sessionsErrMsg:
		m.notice = "could not list sessions: " + msg.err.Error()

	case instructionUpdatedMsg:
		return m.applyInstruction(msg.instruction)

	case instructionErrMsg:
		m.bulk = false
		m.notice = "instruction update failed: " + msg.err.Error()

	case dispatchDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		}

	case abortDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		}

	case scheduledMsg:
		m.landed = msg.sessionID

	case failureMsg:
		m.failure = msg.message

	case noticeMsg:
		m.notice = msg.message

	case warningsMsg:
		m.warnings = msg.warnings

	case allCompleteMsg:
		m.bulk = false
		m.notice = "all instructions complete"

	case statsMsg:
		m.stats = msg.stats

	case historyLoadedMsg:
		m.records = msg.records
		m.showHistory = true

	case errMsg:
		m.state = statusError
		m.err = msg
	}

	if m.state != statusReady {
		return m, nil
	}

	var cmd tea.Cmd
	m.instructions, cmd = m.instructions.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// modal surfaces swallow everything except their own keys
	switch {
	case m.failure != "":
		if key == "enter" || key == "esc" {
			m.failure = ""
		}
		return m, nil
	case m.warnings != nil:
		switch key {
		case "y":
			m.warnings = nil
			return m, acceptWarnings(m.deps.Gate)
		case "n", "esc":
			m.warnings = nil
			m.deps.Gate.Decline()
		}
		return m, nil
	case m.landed != "":
		if key == "enter" || key == "esc" {
			m.landed = ""
		}
		return m, nil
	case m.showHistory:
		if key == "v" || key == "esc" || key == "q" {
			m.showHistory = false
		}
		return m, nil
	}

	if key == "q" {
		return m, tea.Quit
	}

	if m.state != statusReady {
		return m, nil
	}

	switch key {
	case " ":
		m.toggleAtCursor(false)
	case "r":
		m.toggleAtCursor(true)
	case "h":
		m.toggleHumanAtCursor(false)
	case "H":
		m.toggleHumanAtCursor(true)
	case "a":
		m.sel.SelectAll()
		m.refreshRows()
	case "w":
		m.cycleWorkcell(1)
		if wc, ok := m.currentWorkcell(); ok {
			return m, loadSessions(m.resolver, wc.WorkcellID)
		}
	case "W":
		m.cycleWorkcell(-1)
		if wc, ok := m.currentWorkcell(); ok {
			return m, loadSessions(m.resolver, wc.WorkcellID)
		}
	case "e":
		if len(m.sessions) > 0 {
			m.sessionIdx = (m.sessionIdx + 1) % (len(m.sessions) + 1)
		}
	case "d":
		if m.drawer.open && m.deps.Coordinator.State() == schedule.StateReady {
			if req, ok := m.buildRequest(); ok {
				return m, dispatch(m.deps.Gate, req)
			}
		}
	case "b":
		if m.deps.Coordinator.State().Abortable() {
			return m, abort(m.deps.Coordinator)
		}
	case "c":
		if instr, ok := m.instructionAtCursor(); ok && !instr.Completed() {
			return m, completeInstruction(m.deps.Client, m.deps.RunID, instr.ID)
		}
	case "u":
		if instr, ok := m.instructionAtCursor(); ok && instr.Completed() {
			return m, undoInstruction(m.deps.Client, m.deps.RunID, instr.ID)
		}
	case "m":
		return m.startBulkComplete()
	case "v":
		return m, loadHistory(m.deps.History, m.deps.RunID)
	case "R":
		m.state = statusLoading
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, loadRun(m.deps.Client, m.deps.RunID))
	}

	var cmd tea.Cmd
	m.instructions, cmd = m.instructions.Update(msg)
	return m, cmd
}

func (m *Model) toggleAtCursor(shiftHeld bool) {
	if instr, ok := m.instructionAtCursor(); ok {
		m.sel.Toggle(instr.SequenceNo, shiftHeld)
		m.refreshRows()
	}
}

func (m *Model) toggleHumanAtCursor(shiftHeld bool) {
	if instr, ok := m.instructionAtCursor(); ok {
		m.sel.ToggleHuman(instr.SequenceNo, shiftHeld)
		m.refreshRows()
	}
}

func (m Model) instructionAtCursor() (run.Instruction, bool) {
	cursor := m.instructions.Cursor()
	sorted := m.run.Sorted()
	if cursor < 0 || cursor >= len(sorted) {
		return run.Instruction{}, false
	}
	return sorted[cursor], true
}

func (m *Model) refreshRows() {
	m.instructions.SetRows(instructionsToRows(m.run, m.sel))
}

// eligibleWorkcells filters the lab's workcells against the current
// selection size.
func (m Model) eligibleWorkcells() []client.Workcell {
	selected := 0
	if m.sel != nil {
		selected = m.sel.Count()
	}
	return workcell.Eligible(m.workcells, selected, m.run.NonCompletedCount())
}

func (m Model) currentWorkcell() (client.Workcell, bool) {
	eligible := m.eligibleWorkcells()
	if len(eligible) == 0 {
		return client.Workcell{}, false
	}
	idx := m.workcellIdx
	if idx >= len(eligible) {
		idx = 0
	}
	return eligible[idx], true
}

func (m *Model) cycleWorkcell(step int) {
	eligible := m.eligibleWorkcells()
	if len(eligible) == 0 {
		return
	}
	if m.workcellIdx >= len(eligible) {
		m.workcellIdx = 0
	}
	m.workcellIdx = (m.workcellIdx + step + len(eligible)) % len(eligible)
	m.sessionIdx = 0
	m.sessions = nil
}

// buildRequest assembles the submission from the current selection and
// drawer choices.
func (m Model) buildRequest() (client.SubmitRequest, bool) {
	wc, ok := m.currentWorkcell()
	if !ok || m.sel == nil || m.sel.Count() == 0 {
		return client.SubmitRequest{}, false
	}

	req := client.SubmitRequest{
		RunID:            m.deps.RunID,
		InstructionIdxs:  m.sel.Sequences(),
		XHuman:           m.sel.HumanSequences(),
		WorkcellID:       wc.WorkcellID,
		IsTestSubmission: wc.IsTest,
		MaxScheduleTime:  int(m.deps.MaxScheduleTime.Seconds()),
	}

	if m.sessionIdx > 0 && m.sessionIdx <= len(m.sessions) {
		id := m.sessions[m.sessionIdx-1].ID
		req.SessionID = &id
	}

	return req, true
}

// applyInstruction folds an updated instruction into the run copy and
// drives the dependent trackers. During a bulk completion the next
// instruction is completed as soon as the previous one lands.
func (m Model) applyInstruction(instr run.Instruction) (tea.Model, tea.Cmd) {
	m.run = m.run.WithInstruction(instr)
	m.sel.SetRun(m.run)
	m.tracker.OnCompletionEvent(m.run)
	m.refreshRows()

	if m.bulk && m.tracker.InProgress() {
		if next, ok := m.nextToComplete(); ok {
			return m, completeInstruction(m.deps.Client, m.deps.RunID, next)
		}
	}
	if !m.tracker.InProgress() {
		m.bulk = false
	}

	return m, nil
}

func (m Model) startBulkComplete() (tea.Model, tea.Cmd) {
	m.tracker.StartBulkComplete(m.run)
	if !m.tracker.InProgress() {
		m.notice = "run is already complete"
		return m, nil
	}

	m.bulk = true
	if next, ok := m.nextToComplete(); ok {
		return m, completeInstruction(m.deps.Client, m.deps.RunID, next)
	}
	return m, nil
}

func (m Model) nextToComplete() (string, bool) {
	id := m.tracker.Snapshot().NextToCompleteID
	return id, id != ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
