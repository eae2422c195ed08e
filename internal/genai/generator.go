// Package genai implements the extraction and Q&A generators on top of
// the Anthropic API.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/pipeline"
	"github.com/sells-group/finsheet/internal/schema"
	"github.com/sells-group/finsheet/pkg/anthropic"
)

// maxFieldConcurrency limits concurrent CreateMessage calls during the
// per-field fan-out.
const maxFieldConcurrency = 5

// defaultRequestsPerSecond paces outgoing API calls.
const defaultRequestsPerSecond = 2

const systemText = "You are a financial analyst extracting data from corporate filings. Answer only from the provided document excerpts. Return valid JSON when asked for JSON. Use null for values not present in the excerpts."

const fieldPrompt = `Find the value of one financial field in the document excerpts from the system prompt.

Field: %s
Also known as: %s
Value type: %s

Return a valid JSON object:
{"value": <number or null if not found>, "confidence": <0.0-1.0>}`

const answerPrompt = `Answer the question using only the document excerpts below.

Question: %s

Excerpts:
%s

Answer in plain prose. If the excerpts do not contain the answer, say that the information is not available.`

// Generator calls the Anthropic API once per schema field for
// extraction, and once per question for Q&A. It satisfies
// pipeline.Generator.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// Config carries the generator tunables.
type Config struct {
	Model             string
	MaxTokens         int64
	RequestsPerSecond float64
}

// New creates a Generator. Zero config values fall back to defaults.
func New(client anthropic.Client, cfg Config) *Generator {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	return &Generator{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// fieldAnswer is the JSON shape requested from the model per field.
type fieldAnswer struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractFields fans out one request per field against a shared, cached
// system prompt holding the document excerpts. A field whose response
// cannot be parsed is reported missing, not fatal; a transport error
// aborts the whole extraction.
func (g *Generator) ExtractFields(ctx context.Context, registry *schema.Registry, passages []model.Passage) (*pipeline.Extraction, error) {
	system := anthropic.BuildCachedSystemBlocks(systemText + "\n\nDocument excerpts:\n" + renderPassages(passages))

	// One sequential request warms the prompt cache before the fan-out.
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "genai: rate limit wait")
	}
	primer, err := anthropic.PrimerRequest(ctx, g.client, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 16,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: "Acknowledge receipt of the excerpts."}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "genai: warm cache")
	}
	primer.Usage.LogCost(g.model, "extract_primer")

	out := &pipeline.Extraction{
		Values:     make(map[string]any),
		Confidence: make(map[string]float64),
	}
	var mu sync.Mutex
	var usage anthropic.TokenUsage

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxFieldConcurrency)
	for _, spec := range registry.Fields {
		spec := spec
		grp.Go(func() error {
			if err := g.limiter.Wait(gctx); err != nil {
				return eris.Wrap(err, "genai: rate limit wait")
			}
			resp, err := g.client.CreateMessage(gctx, anthropic.MessageRequest{
				Model:     g.model,
				MaxTokens: g.maxTokens,
				System:    system,
				Messages: []anthropic.Message{{
					Role:    "user",
					Content: fmt.Sprintf(fieldPrompt, spec.Name, strings.Join(spec.Aliases, ", "), string(spec.Type)),
				}},
			})
			if err != nil {
				return eris.Wrapf(err, "genai: extract %s", spec.Name)
			}

			value, conf, ok := parseFieldAnswer(resp.Text(), spec)
			mu.Lock()
			usage.InputTokens += resp.Usage.InputTokens
			usage.OutputTokens += resp.Usage.OutputTokens
			usage.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
			usage.CacheReadInputTokens += resp.Usage.CacheReadInputTokens
			if ok {
				out.Values[spec.Name] = value
				out.Confidence[spec.Name] = conf
			}
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	usage.LogCost(g.model, "extract")
	return out, nil
}

// Answer asks one free-form question over the passages.
func (g *Generator) Answer(ctx context.Context, question string, passages []model.Passage) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "genai: rate limit wait")
	}
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    []anthropic.SystemBlock{{Text: systemText}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(answerPrompt, question, renderPassages(passages)),
		}},
	})
	if err != nil {
		return "", eris.Wrap(err, "genai: answer")
	}
	resp.Usage.LogCost(g.model, "qa")
	return strings.TrimSpace(resp.Text()), nil
}

// parseFieldAnswer decodes a per-field response and coerces the value to
// the field's declared type. Returns ok=false when the response does not
// parse or the value is null.
func parseFieldAnswer(text string, spec schema.FieldSpec) (any, float64, bool) {
	var ans fieldAnswer
	if err := json.Unmarshal([]byte(cleanJSON(text)), &ans); err != nil {
		zap.L().Warn("genai: unparseable field answer",
			zap.String("field", spec.Name),
			zap.Error(err),
		)
		return nil, 0, false
	}
	if ans.Value == nil {
		return nil, 0, false
	}

	value, err := coerceValue(ans.Value, spec.Type)
	if err != nil {
		zap.L().Warn("genai: field value does not match schema type",
			zap.String("field", spec.Name),
			zap.Any("value", ans.Value),
			zap.Error(err),
		)
		return nil, 0, false
	}
	return value, ans.Confidence, true
}

// coerceValue converts a decoded JSON value into the field type's Go
// representation. Strings go through the schema parser so thousands
// separators and comma decimals are handled the same as human input.
func coerceValue(v any, t schema.FieldType) (any, error) {
	switch raw := v.(type) {
	case string:
		return t.ParseText(raw)
	case float64:
		switch t {
		case schema.TypeDecimal:
			return raw, nil
		case schema.TypeInteger:
			if raw != math.Trunc(raw) {
				return nil, eris.Errorf("genai: %v is not an integer", raw)
			}
			return int64(raw), nil
		case schema.TypeYear:
			if raw != math.Trunc(raw) {
				return nil, eris.Errorf("genai: %v is not a year", raw)
			}
			n := int64(raw)
			if n < schema.MinYear || n > schema.MaxYear {
				return nil, eris.Errorf("genai: year %d out of range", n)
			}
			return n, nil
		}
	}
	return nil, eris.Errorf("genai: unsupported value type %T", v)
}

// cleanJSON strips markdown code fences and surrounding prose from a
// model response, keeping the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// renderPassages formats retrieval hits for prompt inclusion, tagged
// with their source so the model can cite it.
func renderPassages(passages []model.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, p.DocumentID, p.Text)
	}
	return b.String()
}
