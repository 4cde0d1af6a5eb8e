package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FearYourSelf/forge-and-quill/internal/config"
	"github.com/FearYourSelf/forge-and-quill/pkg/store/postgres"
)

func newCharacterCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Manage saved characters",
	}
	cmd.AddCommand(
		newCharacterListCmd(flags),
		newCharacterShowCmd(flags),
		newCharacterDeleteCmd(flags),
	)
	return cmd
}

func openStore(cmd *cobra.Command, flags *rootFlags) (*postgres.Store, *config.Config, error) {
	cfg, logger, err := loadApp(flags)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, nil, fmt.Errorf("no database DSN: set database.dsn or QUILL_DATABASE_DSN")
	}
	store, err := postgres.New(cmd.Context(), postgres.Config{DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newCharacterListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			metas, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved characters")
				return nil
			}
			for _, meta := range metas {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", meta.Name, meta.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newCharacterShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved character document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSnapshot(cmd, snap)
			return nil
		},
	}
}

func newCharacterDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(cmd.Context(), args[0])
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadApp(flags)
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return fmt.Errorf("no database DSN: set database.dsn or QUILL_DATABASE_DSN")
			}
			return postgres.Migrate(cmd.Context(), cfg.Database.DSN)
		},
	}
}
