package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labops/runcontrol/internal/history"
	"github.com/labops/runcontrol/internal/run"
	"github.com/labops/runcontrol/internal/schedule"
	"github.com/labops/runcontrol/internal/workcell"
	"github.com/labops/runcontrol/pkg/client"
)

func loadRun(c *client.Client, runID string) tea.Cmd {
	return func() tea.Msg {
		r, err := c.Runs().Get(context.Background(), runID)
		if err != nil {
			return errMsg(err)
		}
		return runLoadedMsg{run: *r}
	}
}

func loadWorkcells(c *client.Client, labID string) tea.Cmd {
	return func() tea.Msg {
		cells, err := c.Workcells().List(context.Background(), labID)
		if err != nil {
			return errMsg(err)
		}
		return workcellsLoadedMsg{workcells: cells}
	}
}

func loadSessions(resolver *workcell.Resolver, workcellID string) tea.Cmd {
	return func() tea.Msg {
		sessions, err := resolver.SessionsFor(context.Background(), workcellID)
		if err != nil {
			return sessionsErrMsg{workcellID: workcellID, err: err}
		}
		return sessionsLoadedMsg{workcellID: workcellID, sessions: sessions}
	}
}

func dispatch(gate *schedule.WarningsGate, req client.SubmitRequest) tea.Cmd {
	return func() tea.Msg {
		return dispatchDoneMsg{err: gate.Submit(context.Background(), req)}
	}
}

func acceptWarnings(gate *schedule.WarningsGate) tea.Cmd {
	return func() tea.Msg {
		return dispatchDoneMsg{err: gate.Accept(context.Background())}
	}
}

func abort(coord *schedule.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return abortDoneMsg{err: coord.Abort(context.Background())}
	}
}

func completeInstruction(c *client.Client, runID, instructionID string) tea.Cmd {
	return func() tea.Msg {
		instr, err := c.Runs().CompleteInstruction(context.Background(), runID, instructionID)
		if err != nil {
			return instructionErrMsg{id: instructionID, err: err}
		}
		return instructionUpdatedMsg{instruction: *instr}
	}
}

func undoInstruction(c *client.Client, runID, instructionID string) tea.Cmd {
	return func() tea.Msg {
		instr, err := c.Runs().UndoInstruction(context.Background(), runID, instructionID)
		if err != nil {
			return instructionErrMsg{id: instructionID, err: err}
		}
		return instructionUpdatedMsg{instruction: *instr}
	}
}

func loadHistory(store *history.Store, runID string) tea.Cmd {
	return func() tea.Msg {
		records, err := store.List(runID)
		if err != nil {
			return errMsg(err)
		}
		return historyLoadedMsg{records: records}
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type runLoadedMsg struct {
	run run.Run
}

type workcellsLoadedMsg struct {
	workcells []client.Workcell
}

type sessionsLoadedMsg struct {
	workcellID string
	sessions   []client.Session
}

type sessionsErrMsg struct {
	workcellID string
	err        error
}

type dispatchDoneMsg struct {
	err error
}

type abortDoneMsg struct {
	err error
}

type instructionUpdatedMsg struct {
	instruction run.Instruction
}

type instructionErrMsg struct {
	id  string
	err error
}

type historyLoadedMsg struct {
	records []history.Record
}

type tickMsg time.Time

type errMsg error
