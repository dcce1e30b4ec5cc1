package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/output"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

const defaultConfigPath = "./config/config.yaml"

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
	injector     *do.RootScope
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chapterverse",
		Short: "Swipe through book recommendations ranked to your taste",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			injector = newContainer(cfg)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path, .yaml or .toml (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(preferencesCmd())
	rootCmd.AddCommand(deckCmd())
	rootCmd.AddCommand(swipeCmd())
	rootCmd.AddCommand(savedCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(unsaveCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		shutdown()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	loaded, err := storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// shutdown drains pending collection writes and signals. Safe to call twice.
func shutdown() {
	if injector == nil {
		return
	}
	injector.Shutdown()
	// Close is idempotent; calling it again surfaces the error the
	// container's shutdown hook saw.
	if opened != nil {
		if err := opened.Close(); err != nil {
			log := logging.Component("cli")
			log.Error().Err(err).Msg("shutdown failed")
		}
	}
	injector, opened = nil, nil
}

// opened is the engine resolved by this run, if any.
var opened *chapterverse.Engine

func engine() (*chapterverse.Engine, error) {
	e, err := do.Invoke[*chapterverse.Engine](injector)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	opened = e
	return e, nil
}

func formatter() *output.Formatter {
	return do.MustInvoke[*output.Formatter](injector)
}

func onboardCmd() *cobra.Command {
	var genres, vibes, themes []string
	var pace, length string

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Tell chapterverse what you like to read",
		Long: fmt.Sprintf(`Replace your reading preferences. Every submission replaces the previous
profile entirely.

Suggested genres: %v
Suggested vibes:  %v
Suggested themes: %v`, books.KnownGenres, books.KnownVibes, books.KnownThemes),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := formatter()

			p := books.Preferences{
				Genres: genres,
				Vibes:  vibes,
				Themes: themes,
				Pace:   books.ParsePace(pace),
				Length: books.ParseLength(length),
			}
			if pace != "" && p.Pace == "" {
				f.Warning("ignoring unknown pace %q", pace)
			}
			if length != "" && p.Length == "" {
				f.Warning("ignoring unknown length %q", length)
			}

			e, err := engine()
			if err != nil {
				return err
			}
			stored, err := e.SavePreferences(ctx, p)
			if err != nil {
				return fmt.Errorf("failed to save preferences: %w", err)
			}
			return f.OutputPreferences(&stored)
		},
	}

	cmd.Flags().StringSliceVarP(&genres, "genre", "g", nil, "genre you enjoy (repeatable)")
	cmd.Flags().StringSliceVar(&vibes, "vibe", nil, "vibe you enjoy (repeatable)")
	cmd.Flags().StringSliceVar(&themes, "theme", nil, "theme you enjoy (repeatable)")
	cmd.Flags().StringVar(&pace, "pace", "", "slow-burn, fast-paced or variety")
	cmd.Flags().StringVar(&length, "length", "", "short, medium, epic or any")
	return cmd
}

func preferencesCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Show your reading preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := engine()
			if err != nil {
				return err
			}
			if reset {
				if err := e.ClearPreferences(ctx); err != nil {
					return fmt.Errorf("failed to clear preferences: %w", err)
				}
			}
			p, err := e.Preferences(ctx)
			if err != nil {
				return fmt.Errorf("failed to load preferences: %w", err)
			}
			return formatter().OutputPreferences(p)
		},
	}

	cmd.Flags().BoolVar(&reset, "clear", false, "forget your preferences first")
	return cmd
}

func deckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deck",
		Short: "Show the ranked deck without swiping",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine()
			if err != nil {
				return err
			}
			deck := e.BuildDeck(context.Background())
			return formatter().OutputDeck(deckResult(deck))
		},
	}
}

func deckResult(deck chapterverse.Deck) *output.DeckResult {
	r := &output.DeckResult{
		Source: string(deck.Source),
		Books:  deck.Books,
		Scores: deck.Scores,
	}
	if deck.Err != nil {
		r.Error = deck.Err.Error()
	}
	return r
}

func savedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List your saved books",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine()
			if err != nil {
				return err
			}
			return formatter().OutputBookList(e.Saved())
		},
	}
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <book-id>",
		Short: "Save a book without swiping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := engine()
			if err != nil {
				return err
			}
			b, added, err := e.Save(ctx, args[0])
			if err != nil {
				return err
			}
			if err := e.Flush(ctx); err != nil {
				formatter().Warning("saved in memory but not on disk: %v", err)
			}
			return formatter().OutputSaveResult(&output.SaveResult{
				Action:  "save",
				Book:    b,
				Changed: added,
				Count:   e.SavedCount(),
			})
		},
	}
}

func unsaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsave <book-id>",
		Short: "Remove a book from your saved books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := engine()
			if err != nil {
				return err
			}
			b, ok := e.FindBook(args[0])
			if !ok {
				b = books.Book{ID: args[0]}
			}
			removed := e.Unsave(args[0])
			if err := e.Flush(ctx); err != nil {
				formatter().Warning("removed in memory but not on disk: %v", err)
			}
			return formatter().OutputSaveResult(&output.SaveResult{
				Action:  "unsave",
				Book:    b,
				Changed: removed,
				Count:   e.SavedCount(),
			})
		},
	}
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the local catalog in its stored order",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine()
			if err != nil {
				return err
			}
			return formatter().OutputBookList(e.Catalog())
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the user id sent with recommendation requests and signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine()
			if err != nil {
				return err
			}
			return formatter().OutputUserID(e.UserID(context.Background()))
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = defaultConfigPath
			}

			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := storage.DefaultConfig().Marshal(configPath)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
