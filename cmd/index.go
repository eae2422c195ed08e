package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/docproc"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Chunk documents and add them to the vector index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		proc, err := docproc.NewProcessor(cfg.Documents.ChunkSize, cfg.Documents.ChunkOverlap)
		if err != nil {
			return err
		}
		chunks, failed := proc.ProcessFiles(args)
		if len(failed) > 0 {
			zap.L().Warn("some documents were skipped", zap.Strings("failed", failed))
		}
		if len(chunks) == 0 {
			return eris.New("no readable documents")
		}

		idx, err := openIndex()
		if err != nil {
			return err
		}
		if err := idx.AddChunks(ctx, chunks); err != nil {
			return err
		}

		zap.L().Info("documents indexed",
			zap.Int("documents", len(args)-len(failed)),
			zap.Int("chunks", len(chunks)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
