package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/chat"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var loadName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Brainstorm over text chat instead of voice",
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
			writer, err := chat.NewCoWriter(ctx, cfg.APIKey, chat.Config{
				Model:         cfg.Chat.Model,
				ContextBudget: cfg.Live.ContextBudget,
			}, docs, dispatch, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Chatting with your co-writer. /quit to exit.")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == "/quit", line == "/exit":
					return nil
				case line == "/show":
					printSnapshot(cmd, docs.Snapshot())
					continue
				}

				reply, err := writer.Send(ctx, line)
				if err != nil {
					if errors.Is(err, ctx.Err()) {
						return nil
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, reply)
			}
		},
	}

	cmd.Flags().StringVar(&loadName, "load", "", "saved character to load before the chat")
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap document.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name: %s\nRole: %s\nAge: %s\nPersonality: %s\nBackstory: %s\nBiography: %s\n",
		snap.Profile.Name, snap.Profile.Role, snap.Profile.Age,
		snap.Profile.Personality, snap.Profile.Backstory, snap.Profile.Biography)
	if len(snap.World) > 0 {
		fmt.Fprintln(out, "World:")
		for _, entry := range snap.World {
			fmt.Fprintf(out, "  [%s] %s: %s\n", entry.Category, entry.Title, entry.Description)
		}
	}
	fmt.Fprintf(out, "Draft:\n%s\n", snap.Draft)
}
