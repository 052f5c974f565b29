// Package document handles paginated markdown documents: splitting converted
// markdown into pages, grouping pages into overlapping chunks for retrieval,
// and deriving the deterministic identifiers that key the vector store.
package document

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Default chunking parameters. A chunk is a window of consecutive pages;
// consecutive chunks share DefaultOverlap pages so that clauses spanning a
// page boundary land in at least one chunk intact.
const (
	DefaultChunkPages = 5
	DefaultOverlap    = 1
)

// pageDelim matches the page markers emitted by the document conversion step,
// e.g. "<!----- PAGE 12 ------->". Dash counts vary between converter
// versions, so the run lengths are not anchored.
var pageDelim = regexp.MustCompile(`(?i)<!-+\s*PAGE\s+\d+\s*-+>`)

// Document is a named, paginated markdown text produced by the external
// conversion step. It is immutable once loaded.
type Document struct {
	Name  string
	Pages []string
}

// Chunk is a contiguous, overlapping window of pages from one document.
type Chunk struct {
	DocumentName string
	Index        int
	Text         string
	Summary      string
}

// ID returns the chunk's content identifier.
func (c Chunk) ID() string {
	return ContentID(c.DocumentName, c.Index)
}

// SplitPages splits raw markdown on the page delimiter, trims each page and
// drops empty ones. Page order is preserved.
func SplitPages(text string) []string {
	parts := pageDelim.Split(text, -1)
	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

// New builds a Document from a file name and its raw markdown text.
func New(name, text string) Document {
	return Document{Name: name, Pages: SplitPages(text)}
}

// Chunks groups the document's pages into overlapping windows of size pages.
// Documents with at most size pages yield a single chunk. Otherwise windows
// start every size-overlap pages; the final window may be shorter, and no
// window starts after one has already reached the end of the document.
func (d Document) Chunks(size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkPages
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
	}

	if len(d.Pages) == 0 {
		return nil
	}
	if len(d.Pages) <= size {
		return []Chunk{{
			DocumentName: d.Name,
			Index:        0,
			Text:         strings.Join(d.Pages, "\n"),
		}}
	}

	step := size - overlap
	var chunks []Chunk
	for start := 0; start < len(d.Pages); start += step {
		end := min(start+size, len(d.Pages))
		chunks = append(chunks, Chunk{
			DocumentName: d.Name,
			Index:        len(chunks),
			Text:         strings.Join(d.Pages[start:end], "\n"),
		})
		if start+size >= len(d.Pages) {
			break
		}
	}
	return chunks
}

// ContentID derives the stable identifier for a chunk: the md5 hex digest of
// "{name}-chunk{index}". Identical inputs always produce the identical id,
// which is what makes re-indexing overwrite in place instead of duplicating.
func ContentID(name string, index int) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s-chunk%d", name, index))
	return hex.EncodeToString(sum[:])
}
