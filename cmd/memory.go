package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/model"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the correction store",
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored corrections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var memoryHistoryCmd = &cobra.Command{
	Use:   "history <field>",
	Short: "Show prior corrections for a field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		history, err := st.FieldHistory(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	},
}

var noteDocID string

var memoryNoteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Record a manual context note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		note, err := st.RecordContextNote(ctx, noteDocID, strings.Join(args, " "))
		if err != nil {
			return err
		}

		zap.L().Info("context note recorded", zap.String("id", note.ID))
		return nil
	},
}

var memoryExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export stored field corrections as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		registry, err := loadRegistry()
		if err != nil {
			return eris.Wrap(err, "load schema")
		}

		export := make(map[string][]model.FieldCorrection)
		for _, name := range registry.Names() {
			history, err := st.FieldHistory(ctx, name)
			if err != nil {
				return err
			}
			if len(history) > 0 {
				export[name] = history
			}
		}

		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal export")
		}
		if err := os.WriteFile(args[0], append(data, '\n'), 0o644); err != nil {
			return eris.Wrapf(err, "write %s", args[0])
		}

		zap.L().Info("corrections exported",
			zap.String("path", args[0]),
			zap.Int("fields", len(export)),
		)
		return nil
	},
}

func init() {
	memoryNoteCmd.Flags().StringVar(&noteDocID, "doc-id", "", "document set the note applies to")
	memoryCmd.AddCommand(memoryStatsCmd, memoryHistoryCmd, memoryNoteCmd, memoryExportCmd)
	rootCmd.AddCommand(memoryCmd)
}
