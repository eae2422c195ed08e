package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/evaluate"
	"github.com/sells-group/finsheet/internal/genai"
	"github.com/sells-group/finsheet/internal/pipeline"
	"github.com/sells-group/finsheet/internal/review"
	anthropicpkg "github.com/sells-group/finsheet/pkg/anthropic"
)

var (
	askDocID string
	askYes   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question over the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.Join(args, " ")

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
		idx, err := openIndex()
		if err != nil {
			return err
		}

		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		gen := genai.New(anthropicClient, genai.Config{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		})
		session := review.NewSession(registry, st, review.NewConsoleProvider(os.Stdin, os.Stdout))

		p := pipeline.NewQAPipeline(evaluator, idx, gen, st, session)
		p.SkipOptionalReview = askYes
		p.TopK = cfg.Index.TopK

		run, err := p.Ask(ctx, askDocID, question)
		if err != nil {
			return eris.Wrap(err, "qa run")
		}

		zap.L().Info("question answered",
			zap.String("decision", string(run.Decision)),
			zap.Float64("confidence", run.Result.Confidence),
			zap.Bool("memory_hit", run.Result.Memory != nil),
			zap.Bool("reviewed", run.Reviewed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Result)
	},
}

func init() {
	askCmd.Flags().StringVar(&askDocID, "doc-id", "", "document set identifier recorded with corrections")
	askCmd.Flags().BoolVar(&askYes, "yes", false, "accept answers in the optional-review band without a session")
	rootCmd.AddCommand(askCmd)
}
