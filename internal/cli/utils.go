// Package cli provides CLI output helpers for docuchat.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// previewLen is how many characters of a chunk the text format shows.
const previewLen = 200

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and the chunks it was grounded on.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Message.Content)
	fmt.Fprintf(w, "\n(%s, %s, %dms)\n", ans.Message.Timestamp, ans.Model, ans.Took.Milliseconds())
	if ans.Retrieved.Len() > 0 {
		fmt.Fprintln(w, "\n--- Sources ---")
		for _, sc := range ans.Retrieved.Chunks {
			writeScoredChunk(w, sc)
		}
	}
	return nil
}

func writeScoredChunk(w io.Writer, sc *models.ScoredChunk) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s #%d\n", sc.Rank, sc.Score, sc.Chunk.Source, sc.Chunk.Index)
	fmt.Fprintf(w, "%s\n", utils.Truncate(sc.Chunk.Content, previewLen))
}

// WriteReport writes what a build phase did.
func WriteReport(w io.Writer, report *models.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Processed %d document(s) into %d chunk(s) in %s\n",
		report.Documents, report.Chunks, report.Took.Round(time.Millisecond))
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", s.Source, s.Reason)
	}
	return nil
}

// WriteChunks writes chunks in order, showing each one in full.
func WriteChunks(w io.Writer, chunks []*models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		if chunks == nil {
			chunks = []*models.Chunk{}
		}
		return writeJSON(w, chunks)
	}
	fmt.Fprintf(w, "%d chunk(s)\n", len(chunks))
	for _, c := range chunks {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s #%d (%d chars) %s\n", c.Source, c.Index, len([]rune(c.Content)), c.ID)
		fmt.Fprintf(w, "%s\n", c.Content)
	}
	return nil
}

// WriteMessage writes one transcript line, e.g. "[09:30] assistant: text".
func WriteMessage(w io.Writer, msg *models.Message) {
	fmt.Fprintf(w, "[%s] %s: %s\n", msg.Timestamp, msg.Role, msg.Content)
}
