package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/output"
	"github.com/matthewjhunter/chapterverse/internal/tui"
)

func swipeCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "swipe",
		Short: "Swipe through your deck in the terminal",
		Long: `Open the swipe deck. Drag the card with the arrow keys (or h/l) and press
enter to release it: past a quarter of the card width to the right saves the
book, to the left passes on it. 'a' and 'x' save and pass directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			// The deck owns the terminal; keep log lines off it.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "json", Output: logOut})

			e, err := engine()
			if err != nil {
				return err
			}

			deck := e.BuildDeck(ctx)
			session := e.NewSession(ctx, deck, chapterverse.SessionOptions{})
			model := tui.New(session, tui.Options{
				Failed:       deck.Source == chapterverse.SourceRemoteFailed,
				Err:          deck.Err,
				SavedCount:   e.SavedCount,
				ExitDuration: cfg.Swipe.ExitDuration,
			})

			final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			if err != nil {
				return fmt.Errorf("swipe deck: %w", err)
			}

			if err := e.Flush(ctx); err != nil {
				formatter().Warning("some saves did not reach disk: %v", err)
			}

			m := final.(tui.Model)
			return formatter().OutputSessionSummary(&output.SessionSummary{
				Liked:     m.Liked(),
				Passed:    m.Passed(),
				Remaining: session.Remaining(),
				Saved:     e.SavedCount(),
			})
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file while the deck is open")
	return cmd
}
