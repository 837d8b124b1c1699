// Package cli provides output helpers for the Keikaku command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteChangeRecords writes a revision diff to w in the given format.
func WriteChangeRecords(w io.Writer, changes []models.ChangeRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"changes": changes})
	}
	if len(changes) == 0 {
		fmt.Fprintln(w, "No changes between revisions.")
		return nil
	}
	fmt.Fprintf(w, "%d change(s):\n\n", len(changes))
	for _, ch := range changes {
		switch ch.Type {
		case models.ChangeAdded:
			fmt.Fprintf(w, "  + added    %-6s %s\n", ch.NewChunkID, utils.Truncate(ch.Summary, 80))
		case models.ChangeModified:
			fmt.Fprintf(w, "  ~ modified %-6s %s\n", ch.NewChunkID, utils.Truncate(ch.Summary, 80))
		case models.ChangeRemoved:
			fmt.Fprintf(w, "  - removed  %-6s %s\n", ch.OldChunkID, utils.Truncate(ch.Summary, 80))
		}
	}
	return nil
}

// WriteBacklog writes backlog items to w in the given format.
func WriteBacklog(w io.Writer, items []models.BacklogItem, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"items": items})
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "Backlog is empty.")
		return nil
	}
	fmt.Fprintf(w, "%d backlog item(s):\n\n", len(items))
	for i, item := range items {
		fmt.Fprintf(w, "%2d. %s", i+1, item.Title)
		if item.Priority != "" {
			fmt.Fprintf(w, " [%s]", item.Priority)
		}
		if item.Estimate != "" {
			fmt.Fprintf(w, " (%s)", item.Estimate)
		}
		fmt.Fprintln(w)
		if item.Description != "" {
			fmt.Fprintf(w, "    %s\n", utils.Truncate(item.Description, 200))
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
