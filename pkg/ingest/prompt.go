package ingest

import (
	"fmt"
	"strings"
)

// summaryPrompt builds the summarization prompt for one chunk. Only the
// first chunk asks the model to identify the document's official title, so
// the title is extracted once per document rather than guessed per chunk.
func summaryPrompt(chunk, fileName string, includeIdentity bool) string {
	var identitySection string
	if includeIdentity {
		identitySection = "First, inspect the chunk for an official document title, short title, or citation " +
			"(e.g. \"Constitution of Nepal 2015\", \"Contract Act 2056 (1999)\"). " +
			"If found, start your answer with 'DocumentTitle: <extracted title>'.\n\n"
	}

	var sb strings.Builder
	sb.WriteString("You are a legal-domain summarization assistant.\n\n")
	sb.WriteString(identitySection)
	sb.WriteString(`Then, in concise bullet points, extract:
- section / article numbers
- definitions
- obligations
- rights
- penalties
- jurisdiction
- effective / promulgation dates
- parties or entities involved
- keywords crucial for search.

**Important:** Write the entire summary **only in English**, even if the source text is Nepali. When translating Nepali legal terms, provide an English equivalent followed by the original transliteration in parentheses if the original wording carries legal significance.

The goal is to build a vector store that can answer precise user queries.

`)
	fmt.Fprintf(&sb, "Always append a final line 'SourceDoc: %s'.\n\n%s\n", fileName, chunk)
	return sb.String()
}
