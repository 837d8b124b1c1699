// Package chunker splits requirements text into titled, ordered chunks.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/keikaku/internal/models"
)

// DefaultFallbackSize is the content length above which a document with no
// usable section structure is split into fixed-size slices.
const DefaultFallbackSize = 1200

// defaultTitle is the synthetic title for chunks without a detected heading.
const defaultTitle = "General"

var (
	// markdownHeading matches "# Title" through "###### Title".
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	// numericHeading matches outline prefixes like "1 Scope", "2.3. Auth",
	// "4) Export": digits and dots, a separator, then text.
	numericHeading = regexp.MustCompile(`^\d+(?:\.\d+)*(?:[.)\-:]\s*|\s+)(\S.*)$`)
)

// Chunker splits a document into heading-delimited chunks.
type Chunker struct {
	fallbackSize int
}

// NewChunker creates a chunker. fallbackSize <= 0 selects DefaultFallbackSize.
func NewChunker(fallbackSize int) *Chunker {
	if fallbackSize <= 0 {
		fallbackSize = DefaultFallbackSize
	}
	return &Chunker{fallbackSize: fallbackSize}
}

type draft struct {
	title string
	lines []string
}

// Chunk splits text into ordered chunks. Headings (numeric outline, all-caps,
// or markdown) open a new chunk; non-blank lines accumulate into the current
// one; blank lines are skipped. A heading that gathers no content before the
// next heading or end of input produces no chunk. When the scan yields exactly
// one chunk whose content exceeds the fallback size, the content is re-split
// into fixed-size "General <n>" slices instead.
//
// Returned chunk ids are dense and sequential ("CH-01", "CH-02", ...); the
// same text always yields identical chunks. Returns nil for empty input.
func (c *Chunker) Chunk(text string) []models.Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var drafts []draft
	cur := draft{title: defaultTitle}
	flush := func() {
		if len(cur.lines) > 0 {
			drafts = append(drafts, cur)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if title, ok := headingTitle(trimmed); ok {
			flush()
			cur = draft{title: title}
			continue
		}
		cur.lines = append(cur.lines, trimmed)
	}
	flush()
	if len(drafts) == 0 {
		return nil
	}

	if len(drafts) == 1 {
		if content := strings.Join(drafts[0].lines, "\n"); len(content) > c.fallbackSize {
			return c.fallbackSplit(content)
		}
	}

	chunks := make([]models.Chunk, 0, len(drafts))
	for i, d := range drafts {
		chunks = append(chunks, models.Chunk{
			ID:      chunkID(i),
			Index:   i,
			Title:   d.title,
			Content: strings.Join(d.lines, "\n"),
		})
	}
	return chunks
}

// fallbackSplit slices content into consecutive fallbackSize-sized chunks
// titled "General 1", "General 2", ... so that concatenating the contents in
// order reproduces content exactly.
func (c *Chunker) fallbackSplit(content string) []models.Chunk {
	var chunks []models.Chunk
	for start := 0; start < len(content); start += c.fallbackSize {
		end := start + c.fallbackSize
		if end > len(content) {
			end = len(content)
		}
		i := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:      chunkID(i),
			Index:   i,
			Title:   fmt.Sprintf("%s %d", defaultTitle, i+1),
			Content: content[start:end],
		})
	}
	return chunks
}

func chunkID(index int) string {
	return fmt.Sprintf("CH-%02d", index+1)
}

// headingTitle reports whether line is a heading candidate and returns its title.
func headingTitle(line string) (string, bool) {
	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := numericHeading.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return capsHeading(line)
}

// capsHeading detects an all-caps section line: at least 4 letters, none
// lowercase. Trailing separator punctuation is stripped from the title, so
// both "REQUISITOS" and "REQUISITOS DEL SISTEMA:" qualify.
func capsHeading(line string) (string, bool) {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return "", false
			}
			letters++
		}
	}
	if letters < 4 {
		return "", false
	}
	title := strings.TrimRight(line, " \t:.-")
	if title == "" {
		return "", false
	}
	return title, true
}
