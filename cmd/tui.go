package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/desertthunder/givecrm/internal/ui"
	"github.com/urfave/cli/v3"
)

// tuiLogPath receives log output while the TUI owns the terminal.
const tuiLogPath = "./tmp/givecrm-tui.log"

// DeliveriesBrowse launches the interactive delivery browser.
func (r *Runner) DeliveriesBrowse(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.openDeliveries()
	if err != nil {
		return err
	}
	defer closeFn()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.ConfigureLogger(fileLogger, r.config.Logging)
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, repo, r.engine)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
