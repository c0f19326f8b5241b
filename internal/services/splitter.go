package services

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// Chunk is one retrievable unit of text produced by the splitter. Index is
// the chunk's position within its source document.
type Chunk struct {
	SourceReference string
	WorkspaceID     string
	Text            string
	Index           int
}

// DocumentSplitter cuts a raw document into chunks whose boundaries follow
// the document's own structure. The rule is picked from the source reference,
// first match wins:
//
//  1. *.md            split before every H2 heading, heading kept with its
//                     section; text before the first H2 becomes a preface chunk
//  2. *_docs.txt      split on separator lines ("---")
//  3. clickup_*       whole document as a single chunk
//  4. anything else   split on the literal token "Issue"
//
// Only rule 4 output may be re-split when a piece is oversized; rules 1-3
// produce semantic units that must stay intact.
type DocumentSplitter interface {
	Split(reference, workspaceID, content string) []Chunk
}

type documentSplitter struct {
	log          *logger.Logger
	chunkSize    int
	chunkOverlap int
	recursive    textsplitter.RecursiveCharacter
}

func NewDocumentSplitter(log *logger.Logger, chunkSize, chunkOverlap int) DocumentSplitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &documentSplitter{
		log:          log.With("service", "DocumentSplitter"),
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		recursive: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

func (s *documentSplitter) Split(reference, workspaceID, content string) []Chunk {
	ref := strings.ToLower(strings.TrimSpace(reference))

	var parts []string
	switch {
	case strings.HasSuffix(ref, ".md"):
		parts = splitMarkdownSections(content)
	case strings.HasSuffix(ref, "_docs.txt"):
		parts = splitGuideEntries(content)
	case strings.HasPrefix(ref, "clickup_"):
		if text := strings.TrimSpace(content); text != "" {
			parts = []string{text}
		}
	default:
		parts = s.splitIssues(content)
	}

	chunks := make([]Chunk, 0, len(parts))
	for i, text := range parts {
		chunks = append(chunks, Chunk{
			SourceReference: reference,
			WorkspaceID:     workspaceID,
			Text:            text,
			Index:           i,
		})
	}
	return chunks
}

// splitMarkdownSections starts a new section at every line beginning with
// "## ". The heading stays with the text that follows it.
func splitMarkdownSections(content string) []string {
	var sections []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if text := strings.TrimSpace(strings.Join(current, "\n")); text != "" {
			sections = append(sections, text)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return sections
}

func splitGuideEntries(content string) []string {
	var entries []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if text := strings.TrimSpace(strings.Join(current, "\n")); text != "" {
			entries = append(entries, text)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return entries
}

// splitIssues cuts support-ticket text on the literal token "Issue" and
// re-prepends the token to every non-empty piece, so each incident keeps its
// leading marker. Pieces larger than chunkSize*4 bytes are re-split with the
// generic recursive splitter.
func (s *documentSplitter) splitIssues(content string) []string {
	pieces := strings.Split(content, "Issue")
	issues := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if p := strings.TrimSpace(piece); p != "" {
			issues = append(issues, "Issue"+p)
		}
	}

	limit := s.chunkSize * 4
	out := make([]string, 0, len(issues))
	for _, text := range issues {
		if len(text) <= limit {
			out = append(out, text)
			continue
		}
		parts, err := s.recursive.SplitText(text)
		if err != nil || len(parts) == 0 {
			s.log.Warn("recursive re-split failed; keeping oversized chunk",
				"bytes", len(text),
				"chunk_size", s.chunkSize,
			)
			out = append(out, text)
			continue
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
