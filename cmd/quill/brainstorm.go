package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FearYourSelf/forge-and-quill/internal/config"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/capture"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/live"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/playback"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/providers/geminilive"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
	"github.com/FearYourSelf/forge-and-quill/pkg/store/postgres"
)

// hardwareDevices acquires the real microphone and speaker.
type hardwareDevices struct{}

func (hardwareDevices) OpenOutput() (live.OutputDevice, error) {
	return playback.OpenDevice()
}

func (hardwareDevices) OpenInput() (capture.Source, error) {
	return capture.NewDevice(), nil
}

func newBrainstormCmd(flags *rootFlags) *cobra.Command {
	var loadName string

	cmd := &cobra.Command{
		Use:   "brainstorm",
		Short: "Start a live voice brainstorming session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadApp(flags)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return fmt.Errorf("no API key: set GEMINI_API_KEY or api_key in the config file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			docs := document.NewStore()
			release, err := wirePersistence(ctx, cfg, docs, loadName)
			if err != nil {
				return err
			}
			defer release()

			dispatch := tools.NewDispatcher(docs, logger)
			transport := geminilive.New(cfg.APIKey, geminilive.WithLogger(logger))
			session := live.NewSession(live.SessionConfig{
				Model:         cfg.Live.Model,
				Voice:         cfg.Live.Voice,
				ContextBudget: cfg.Live.ContextBudget,
			}, transport, docs, dispatch, hardwareDevices{}, logger)
			defer session.Close()

			if err := session.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Brainstorming. Speak freely; Ctrl-C to stop.")

			for {
				select {
				case <-ctx.Done():
					return session.Stop()
				case ev, ok := <-session.Events():
					if !ok {
						return nil
					}
					printEvent(cmd, ev)
					if state, isState := ev.(*live.StateChangedEvent); isState {
						if state.To == live.StateIdle || state.To == live.StateError {
							return nil
						}
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&loadName, "load", "", "saved character to load before the session")
	return cmd
}

func printEvent(cmd *cobra.Command, ev live.Event) {
	switch ev := ev.(type) {
	case *live.StateChangedEvent:
		fmt.Fprintf(cmd.OutOrStdout(), "session: %s -> %s\n", ev.From, ev.To)
	case *live.ToolAppliedEvent:
		fmt.Fprintf(cmd.OutOrStdout(), "document updated: %s\n", ev.Name)
	case *live.SessionErrorEvent:
		fmt.Fprintf(cmd.ErrOrStderr(), "session error: %s\n", ev.Message)
	}
}

// wirePersistence loads a saved character and hangs the auto-save hook off
// the document store, when the database is configured. The returned release
// func drains the connection pool; callers defer it for the life of the
// command.
func wirePersistence(ctx context.Context, cfg *config.Config, docs *document.Store, loadName string) (func(), error) {
	if cfg.Database.DSN == "" {
		if loadName != "" {
			return nil, fmt.Errorf("--load requires a configured database DSN")
		}
		return func() {}, nil
	}

	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN}, nil)
	if err != nil {
		return nil, fmt.Errorf("open character store: %w", err)
	}

	if loadName != "" {
		snap, err := store.Load(ctx, loadName)
		if err != nil {
			store.Close()
			return nil, err
		}
		docs.Reset(snap)
	}
	if cfg.Database.AutoSave {
		name := cfg.Database.SaveName
		if loadName != "" {
			name = loadName
		}
		docs.SetApplyHook(store.AutoSaveHook(docs, name))
	}
	return store.Close, nil
}
