package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/keikaku/internal/models"
)

// backlogItemJSON is the shape expected from the provider. Unknown fields are
// ignored; only the title is mandatory.
type backlogItemJSON struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Estimate    string `json:"estimate"`
}

// ParseBacklog extracts backlog items from a provider response. The contract
// is parse-or-fail, tried in order:
//
//  1. the whole trimmed response as a JSON array,
//  2. the body of a ```-fenced block,
//  3. the substring from the first '[' to the last ']'.
//
// Items without a title are dropped. An error is returned when no variant
// parses or every parsed item is untitled; the caller decides whether that
// fails the job.
func ParseBacklog(raw string) ([]models.BacklogItem, error) {
	candidates := []string{strings.TrimSpace(raw)}
	if fenced := stripFences(raw); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if embedded := embeddedArray(raw); embedded != "" {
		candidates = append(candidates, embedded)
	}

	for _, candidate := range candidates {
		var parsed []backlogItemJSON
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		items := make([]models.BacklogItem, 0, len(parsed))
		for _, it := range parsed {
			title := strings.TrimSpace(it.Title)
			if title == "" {
				continue
			}
			items = append(items, models.BacklogItem{
				Title:       title,
				Description: strings.TrimSpace(it.Description),
				Priority:    strings.ToLower(strings.TrimSpace(it.Priority)),
				Estimate:    strings.TrimSpace(it.Estimate),
			})
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("provider response contains no backlog items")
		}
		return items, nil
	}
	return nil, fmt.Errorf("provider response is not a JSON backlog array")
}

// stripFences returns the body of a markdown code fence, or "" when the
// response is not fenced.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		if tag := strings.TrimSpace(s[:nl]); tag == "" || len(tag) <= 8 {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// embeddedArray returns the outermost bracketed span of the response, for
// providers that wrap the array in prose.
func embeddedArray(raw string) string {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
