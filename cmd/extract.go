package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/docproc"
	"github.com/sells-group/finsheet/internal/evaluate"
	"github.com/sells-group/finsheet/internal/genai"
	"github.com/sells-group/finsheet/internal/pipeline"
	"github.com/sells-group/finsheet/internal/report"
	"github.com/sells-group/finsheet/internal/review"
	anthropicpkg "github.com/sells-group/finsheet/pkg/anthropic"
)

var (
	extractDocID string
	extractOut   string
	extractXLSX  string
	extractYes   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract financial fields from documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Init store
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
		evaluator, err := evaluate.New(cfg.Thresholds)
		if err != nil {
			return err
		}

		// Chunk and index the documents
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

		// Build pipeline
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		gen := genai.New(anthropicClient, genai.Config{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		})
		session := review.NewSession(registry, st, review.NewConsoleProvider(os.Stdin, os.Stdout))

		p := pipeline.NewExtractionPipeline(registry, evaluator, idx, gen, session)
		p.SkipOptionalReview = extractYes
		p.TopK = cfg.Index.TopK

		docID := extractDocID
		if docID == "" {
			docID = filepath.Base(args[0])
		}

		run, err := p.Run(ctx, docID)
		if err != nil {
			return eris.Wrap(err, "extraction run")
		}

		zap.L().Info("extraction complete",
			zap.String("document_id", docID),
			zap.String("decision", string(run.Decision)),
			zap.Float64("confidence", run.Result.Confidence),
			zap.Int("missing", len(run.Result.MissingFields)),
			zap.Bool("reviewed", run.Reviewed),
		)

		if extractOut != "" {
			if err := report.WriteJSON(extractOut, run.Result); err != nil {
				return err
			}
		}
		if extractXLSX != "" {
			if err := report.WriteXLSX(extractXLSX, registry, run.Result); err != nil {
				return err
			}
		}

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Result.Output())
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractDocID, "doc-id", "", "document set identifier (defaults to the first file name)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "write the output record as JSON to this path")
	extractCmd.Flags().StringVar(&extractXLSX, "xlsx", "", "write the result workbook to this path")
	extractCmd.Flags().BoolVar(&extractYes, "yes", false, "accept results in the optional-review band without a session")
	rootCmd.AddCommand(extractCmd)
}
