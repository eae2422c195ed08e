// Package docproc turns source documents (PDF, JSON, plain text) into
// overlapping text chunks ready for indexing.
package docproc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chunking defaults: characters per chunk and overlap between adjacent
// chunks.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is one indexable slice of a document.
type Chunk struct {
	DocumentID string
	Position   int
	Text       string
}

// Processor converts files to chunks. The zero value is not usable; use
// NewProcessor.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

// NewProcessor creates a Processor. Non-positive sizes fall back to the
// defaults; an overlap at or above the chunk size is an error.
func NewProcessor(chunkSize, chunkOverlap int) (*Processor, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		return nil, eris.Errorf("docproc: overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// ProcessFiles converts each file to chunks. A file that fails to parse
// is logged and skipped; the batch never aborts. The returned failed
// list names the skipped files.
func (p *Processor) ProcessFiles(paths []string) (chunks []Chunk, failed []string) {
	for _, path := range paths {
		c, err := p.ProcessFile(path)
		if err != nil {
			zap.L().Error("docproc: document skipped",
				zap.String("path", path),
				zap.Error(err),
			)
			failed = append(failed, path)
			continue
		}
		chunks = append(chunks, c...)
	}
	return chunks, failed
}

// ProcessFile extracts text from one file and chunks it. The document
// id is the file's base name.
func (p *Processor) ProcessFile(path string) ([]Chunk, error) {
	text, err := ExtractText(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, eris.Errorf("docproc: %s contains no extractable text", path)
	}
	return p.Split(filepath.Base(path), text), nil
}

// Split cuts text into fixed-size chunks with overlap. Positions are
// sequential from 0.
func (p *Processor) Split(documentID, text string) []Chunk {
	runes := []rune(text)
	step := p.chunkSize - p.chunkOverlap

	var chunks []Chunk
	for start, pos := 0, 0; start < len(runes); start, pos = start+step, pos+1 {
		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Position:   pos,
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ExtractText reads a file and returns its plain text. PDF and JSON get
// format-specific handling; anything else is treated as plain text.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".json":
		return extractJSON(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "docproc: read %s", path)
		}
		return string(data), nil
	}
}

func extractPDF(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "docproc: read %s", path)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrapf(err, "docproc: parse pdf %s", path)
	}

	var b strings.Builder
	for pageIndex := 1; pageIndex <= r.NumPage(); pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			zap.L().Warn("docproc: unreadable pdf page",
				zap.String("path", path),
				zap.Int("page", pageIndex),
				zap.Error(err),
			)
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractJSON flattens a JSON document into "path: value" lines so the
// chunker and retriever can treat it like prose.
func extractJSON(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "docproc: read %s", path)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", eris.Wrapf(err, "docproc: parse json %s", path)
	}

	var lines []string
	flattenJSON("", doc, &lines)
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func flattenJSON(prefix string, v any, lines *[]string) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenJSON(key, child, lines)
		}
	case []any:
		for i, child := range node {
			flattenJSON(fmt.Sprintf("%s[%d]", prefix, i), child, lines)
		}
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", prefix, node))
	}
}
