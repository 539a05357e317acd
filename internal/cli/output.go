// Package cli provides CLI output formatting for Kanshi.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(value string) (OutputFormat, error) {
	switch value {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", value)
	}
}

func writeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteSignals writes a signal list in the given format.
func WriteSignals(w io.Writer, signals []models.Signal, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, signals)
	}
	fmt.Fprintf(w, "\n%d signal(s)\n\n", len(signals))
	for _, sig := range signals {
		writeOneSignal(w, &sig)
	}
	return nil
}

func writeOneSignal(w io.Writer, sig *models.Signal) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%s/%s] %s", sig.Source, sig.Type, sig.Timestamp.Format(time.RFC3339))
	if sig.AuthorHandle != "" {
		fmt.Fprintf(w, " by %s", sig.AuthorHandle)
	}
	fmt.Fprintln(w)
	if sig.URL != "" {
		fmt.Fprintf(w, "URL: %s\n", sig.URL)
	}
	if len(sig.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(sig.Tags, ", "))
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(sig.Text, 300))
}

// WriteKnowledgeResults writes semantic search hits in the given format.
func WriteKnowledgeResults(w io.Writer, results []models.KnowledgeSearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	fmt.Fprintf(w, "\n%d result(s)\n\n", len(results))
	for _, hit := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Score: %.4f | Doc: %s\n", hit.Score, hit.DocTitle)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(hit.Text, 300))
	}
	return nil
}

// WriteChatReply writes an assistant reply with its citations.
func WriteChatReply(w io.Writer, msg *models.ChatMessage, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, msg)
	}
	fmt.Fprintf(w, "\n%s\n", msg.Content)
	if len(msg.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for i, cite := range msg.Sources {
			fmt.Fprintf(w, "  %d. [%s] %s", i+1, cite.Type, cite.Title)
			if cite.URL != "" {
				fmt.Fprintf(w, " (%s)", cite.URL)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// WriteVolume writes volume buckets as an aligned table.
func WriteVolume(w io.Writer, buckets []models.VolumeBucket, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, buckets)
	}
	for _, b := range buckets {
		label := b.Bucket
		if b.Source != "" {
			label += " " + b.Source
		}
		if b.Type != "" {
			label += " " + b.Type
		}
		fmt.Fprintf(w, "%-30s %d\n", label, b.Count)
	}
	return nil
}
