package console

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/labops/runcontrol/cmd/console/app"
	"github.com/labops/runcontrol/internal/history"
	"github.com/labops/runcontrol/internal/schedule"
	"github.com/labops/runcontrol/internal/stats"
	"github.com/labops/runcontrol/pkg/client"
	"github.com/labops/runcontrol/pkg/env"
	"github.com/spf13/cobra"
)

const (
	usage   = "console <run-id>"
	short   = "Open the dispatch console for a run"
	long    = "This command starts the interactive run dispatch console"
	example = "runcontrol console 7c1f5c1e-2f6b-4a6e-9a34-b1d06f4f4a21"
)

// Cmd is the Cobra command entrypoint.
var Cmd = &cobra.Command{
	Use:        usage,
	Short:      short,
	Long:       long,
	Aliases:    []string{"c"},
	SuggestFor: []string{"tui", "terminal", "ui"},
	Example:    example,
	Args:       cobra.ExactArgs(1),
	RunE:       run,
}

func run(cmd *cobra.Command, args []string) error {
	runID := args[0]
	vars := env.Variables()

	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}
	c := client.New(cfg)

	store, err := history.Open(vars.HistoryPath)
	if err != nil {
		return err
	}

	downloads, err := app.NewDownloads("")
	if err != nil {
		return err
	}

	bridge := app.NewBridge()

	coord := schedule.New(schedule.Config{
		RunID:        runID,
		API:          c.Schedules(),
		Notifier:     bridge,
		Downloads:    downloads,
		Recorder:     store,
		PollInterval: vars.PollInterval,
	})
	defer coord.Close()

	gate := schedule.NewWarningsGate(coord, bridge)

	model := app.New(app.Deps{
		Client:          c,
		RunID:           runID,
		LabID:           vars.LabID,
		MaxScheduleTime: vars.MaxScheduleTime,
		Bridge:          bridge,
		Coordinator:     coord,
		Gate:            gate,
		History:         store,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	bridge.Attach(p.Send)

	poller := stats.NewPoller(c.Stats(), vars.StatsInterval, bridge.StatsUpdated)
	poller.Start()
	defer poller.Close()

	_, err = p.Run()
	return err
}
